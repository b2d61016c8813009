package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"loan-origination-api/models"
)

// AssignmentStrategy selects how RegisterAssignment stays race-free.
type AssignmentStrategy string

const (
	// StrategyUniqueIndex inserts against the live-pair unique index and
	// treats a conflict as "already registered".
	StrategyUniqueIndex AssignmentStrategy = "unique_index"
	// StrategyRowLock serializes registrations of one pair on an anchor row
	// in loan_application_assignment_lock before reading and inserting. The
	// anchor always exists when it is locked, so InnoDB never takes a gap
	// lock on an absent pair and concurrent callers queue instead of
	// deadlocking.
	StrategyRowLock AssignmentStrategy = "row_lock"
)

const registerSavePoint = "register_assignment"

// ParseAssignmentStrategy parses ASSIGNMENT_STRATEGY. Empty means unique_index.
func ParseAssignmentStrategy(raw string) (AssignmentStrategy, error) {
	switch AssignmentStrategy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", StrategyUniqueIndex:
		return StrategyUniqueIndex, nil
	case StrategyRowLock:
		return StrategyRowLock, nil
	default:
		return "", fmt.Errorf("unknown assignment strategy %q", raw)
	}
}

// AssignmentLedger keeps the ordered set of credit-manager assignments of a
// loan application. It never updates an existing row.
//
// sequence_order is stored as given: the ledger does not check it for
// uniqueness or contiguity within a loan application.
type AssignmentLedger struct {
	strategy AssignmentStrategy
	logger   *charmlog.Logger
	now      func() time.Time
	newID    func() (string, error)

	// afterMiss runs when the unique_index pre-read found no live row,
	// before the insert is attempted. Nil outside tests.
	afterMiss func()
}

func NewAssignmentLedger(strategy AssignmentStrategy, logger *charmlog.Logger) *AssignmentLedger {
	if strategy == "" {
		strategy = StrategyUniqueIndex
	}
	if logger == nil {
		logger = charmlog.Default()
	}
	return &AssignmentLedger{
		strategy: strategy,
		logger:   logger,
		now:      time.Now,
		newID:    newUUIDv7,
	}
}

// Strategy returns the configured concurrency strategy.
func (l *AssignmentLedger) Strategy() AssignmentStrategy {
	return l.strategy
}

// RegisterAssignment returns the live assignment for (loanApplicationID,
// creditManagerID), creating it as PENDING with the given sequence order and
// active flag when none exists. An existing row is returned untouched and
// sequenceOrder/active are ignored. created is true only when this call
// inserted the row.
func (l *AssignmentLedger) RegisterAssignment(scope *Scope, loanApplicationID, creditManagerID string, sequenceOrder int, active bool) (assignment *models.LoanApplicationAssignment, created bool, err error) {
	tx, err := scope.session()
	if err != nil {
		return nil, false, err
	}
	if err := requireID("loan_application_id", loanApplicationID); err != nil {
		return nil, false, err
	}
	if err := requireID("credit_manager_id", creditManagerID); err != nil {
		return nil, false, err
	}

	id, err := l.newID()
	if err != nil {
		return nil, false, err
	}
	now := l.now().UTC()
	pending := &models.LoanApplicationAssignment{
		ID:                id,
		LoanApplicationID: loanApplicationID,
		CreditManagerID:   creditManagerID,
		SequenceOrder:     sequenceOrder,
		Status:            models.AssignmentStatusPending,
		Active:            active,
		IsDeleted:         false,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	switch l.strategy {
	case StrategyRowLock:
		assignment, created, err = l.registerWithRowLock(tx, pending)
	default:
		assignment, created, err = l.registerWithUniqueIndex(tx, pending)
	}
	if err != nil {
		return nil, false, err
	}

	if created {
		l.logger.Debug("assignment created",
			"loan_application_id", loanApplicationID,
			"credit_manager_id", creditManagerID,
			"sequence_order", sequenceOrder,
			"assignment_id", assignment.ID)
	} else {
		l.logger.Debug("assignment already registered",
			"loan_application_id", loanApplicationID,
			"credit_manager_id", creditManagerID,
			"assignment_id", assignment.ID)
	}
	return assignment, created, nil
}

func (l *AssignmentLedger) registerWithUniqueIndex(tx *gorm.DB, pending *models.LoanApplicationAssignment) (*models.LoanApplicationAssignment, bool, error) {
	existing, err := findLiveAssignment(tx, pending.LoanApplicationID, pending.CreditManagerID, nil)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}
	if l.afterMiss != nil {
		l.afterMiss()
	}
	return l.insertOrAdopt(tx, pending)
}

// insertOrAdopt inserts pending unless the live-pair index already holds a
// row, in which case that row is read back and returned.
func (l *AssignmentLedger) insertOrAdopt(tx *gorm.DB, pending *models.LoanApplicationAssignment) (*models.LoanApplicationAssignment, bool, error) {
	res := tx.Clauses(livePairConflict(tx)).Create(pending)
	if res.Error != nil {
		if !isLiveAssignmentConflict(res.Error) {
			return nil, false, res.Error
		}
	} else if res.RowsAffected > 0 {
		return pending, true, nil
	}
	return adoptLiveAssignment(tx, pending.LoanApplicationID, pending.CreditManagerID)
}

// livePairConflict targets the live-pair index so a primary-key collision
// still fails. The target predicate must match the index text. MySQL has no
// conflict target and renders ON DUPLICATE KEY UPDATE for any unique key.
func livePairConflict(tx *gorm.DB) clause.OnConflict {
	onConflict := clause.OnConflict{DoNothing: true}
	var predicate string
	switch tx.Dialector.Name() {
	case "postgres":
		predicate = "is_deleted = FALSE"
	case "sqlite":
		predicate = "is_deleted = 0"
	default:
		return onConflict
	}
	onConflict.Columns = []clause.Column{{Name: "loan_application_id"}, {Name: "credit_manager_id"}}
	onConflict.TargetWhere = clause.Where{Exprs: []clause.Expression{clause.Expr{SQL: predicate}}}
	return onConflict
}

func (l *AssignmentLedger) registerWithRowLock(tx *gorm.DB, pending *models.LoanApplicationAssignment) (*models.LoanApplicationAssignment, bool, error) {
	if err := lockAssignmentPair(tx, pending.LoanApplicationID, pending.CreditManagerID, pending.CreatedAt); err != nil {
		return nil, false, err
	}
	// The anchor lock is held until commit, so a plain read sees any
	// assignment committed by the previous holder.
	existing, err := findLiveAssignment(tx, pending.LoanApplicationID, pending.CreditManagerID, nil)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	// Keep the enclosing transaction usable if the insert still collides.
	if err := tx.SavePoint(registerSavePoint).Error; err != nil {
		return nil, false, err
	}
	if err := tx.Create(pending).Error; err != nil {
		if !isLiveAssignmentConflict(err) {
			return nil, false, err
		}
		if rbErr := tx.RollbackTo(registerSavePoint).Error; rbErr != nil {
			return nil, false, rbErr
		}
		return adoptLiveAssignment(tx, pending.LoanApplicationID, pending.CreditManagerID)
	}
	return pending, true, nil
}

// lockAssignmentPair creates the pair's anchor row if needed and locks it
// for the rest of the transaction.
func lockAssignmentPair(tx *gorm.DB, loanApplicationID, creditManagerID string, now time.Time) error {
	anchor := &models.LoanApplicationAssignmentLock{
		LoanApplicationID: loanApplicationID,
		CreditManagerID:   creditManagerID,
		CreatedAt:         now,
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(anchor).Error; err != nil {
		return fmt.Errorf("create assignment anchor: %w", err)
	}

	var held models.LoanApplicationAssignmentLock
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("loan_application_id = ? AND credit_manager_id = ?", loanApplicationID, creditManagerID).
		Take(&held).Error
	if err != nil {
		return fmt.Errorf("lock assignment anchor: %w", err)
	}
	return nil
}

// adoptLiveAssignment reads the row that won a uniqueness race. The read
// locks in share mode so it sees the latest committed version even under a
// snapshot taken before the winner committed.
func adoptLiveAssignment(tx *gorm.DB, loanApplicationID, creditManagerID string) (*models.LoanApplicationAssignment, bool, error) {
	existing, err := findLiveAssignment(tx, loanApplicationID, creditManagerID, shareLock(tx))
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, ErrAssignmentNotResolved
	}
	return existing, false, nil
}

// shareLock renders LOCK IN SHARE MODE on MySQL, which 5.7 and 8.0 both
// accept. FOR SHARE elsewhere.
func shareLock(tx *gorm.DB) clause.Expression {
	if tx.Dialector.Name() == "mysql" {
		return mysqlShareMode{}
	}
	return clause.Locking{Strength: "SHARE"}
}

// mysqlShareMode occupies the FOR clause slot, after LIMIT.
type mysqlShareMode struct{}

func (mysqlShareMode) Name() string { return "FOR" }

func (mysqlShareMode) Build(builder clause.Builder) {
	builder.WriteString("LOCK IN SHARE MODE")
}

func (m mysqlShareMode) MergeClause(c *clause.Clause) {
	c.Name = ""
	c.Expression = m
}

func findLiveAssignment(tx *gorm.DB, loanApplicationID, creditManagerID string, locking clause.Expression) (*models.LoanApplicationAssignment, error) {
	q := tx.Where("loan_application_id = ? AND credit_manager_id = ? AND is_deleted = ?", loanApplicationID, creditManagerID, false)
	if locking != nil {
		q = q.Clauses(locking)
	}

	var row models.LoanApplicationAssignment
	if err := q.First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// ListAssignments returns a loan application's assignments in review order.
func (l *AssignmentLedger) ListAssignments(scope *Scope, loanApplicationID string, includeDeleted bool) ([]models.LoanApplicationAssignment, error) {
	tx, err := scope.session()
	if err != nil {
		return nil, err
	}
	if err := requireID("loan_application_id", loanApplicationID); err != nil {
		return nil, err
	}

	q := tx.Where("loan_application_id = ?", loanApplicationID)
	if !includeDeleted {
		q = q.Where("is_deleted = ?", false)
	}

	var rows []models.LoanApplicationAssignment
	if err := q.Order("sequence_order ASC").Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func newUUIDv7() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
