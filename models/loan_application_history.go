package models

import (
	"errors"
	"regexp"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// HistoryAction classifies one entry in a loan application's audit trail.
type HistoryAction string

const (
	HistoryActionSubmitted  HistoryAction = "SUBMITTED"
	HistoryActionAssigned   HistoryAction = "ASSIGNED"
	HistoryActionReassigned HistoryAction = "REASSIGNED"
	HistoryActionApproved   HistoryAction = "APPROVED"
	HistoryActionRejected   HistoryAction = "REJECTED"
	HistoryActionEscalated  HistoryAction = "ESCALATED"
	HistoryActionReturned   HistoryAction = "RETURNED"
	HistoryActionCommented  HistoryAction = "COMMENTED"
	HistoryActionDisbursed  HistoryAction = "DISBURSED"
)

// KnownHistoryActions lists the actions the workflow layer emits today.
var KnownHistoryActions = []HistoryAction{
	HistoryActionSubmitted,
	HistoryActionAssigned,
	HistoryActionReassigned,
	HistoryActionApproved,
	HistoryActionRejected,
	HistoryActionEscalated,
	HistoryActionReturned,
	HistoryActionCommented,
	HistoryActionDisbursed,
}

var historyActionPattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]{0,63}$`)

// Valid reports whether the action is a well-formed tag. Tags outside
// KnownHistoryActions are still valid.
func (a HistoryAction) Valid() bool {
	return historyActionPattern.MatchString(string(a))
}

// Known reports whether the action is one of KnownHistoryActions.
func (a HistoryAction) Known() bool {
	for _, known := range KnownHistoryActions {
		if a == known {
			return true
		}
	}
	return false
}

// ErrHistoryImmutable is returned when something tries to modify or remove a history entry.
var ErrHistoryImmutable = errors.New("loan application history is append-only")

// LoanApplicationHistory is one immutable fact in a loan application's audit trail.
// A nil Remarks means no remarks were given.
type LoanApplicationHistory struct {
	ID                string        `gorm:"primaryKey;column:id;type:varchar(36)" json:"id"`
	LoanApplicationID string        `gorm:"column:loan_application_id;type:varchar(64);not null" json:"loan_application_id"`
	PerformedByID     string        `gorm:"column:performed_by_id;type:varchar(64);not null" json:"performed_by_id"`
	Action            HistoryAction `gorm:"column:action;type:varchar(64);not null" json:"action"`
	Remarks           *string       `gorm:"column:remarks" json:"remarks"`
	CreatedAt         time.Time     `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// TableName specifies the table for LoanApplicationHistory.
func (LoanApplicationHistory) TableName() string {
	return "loan_application_history"
}

func (h *LoanApplicationHistory) BeforeCreate(tx *gorm.DB) error {
	if h.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		h.ID = id.String()
	}
	return nil
}

func (h *LoanApplicationHistory) BeforeUpdate(tx *gorm.DB) error {
	return ErrHistoryImmutable
}

func (h *LoanApplicationHistory) BeforeDelete(tx *gorm.DB) error {
	return ErrHistoryImmutable
}
