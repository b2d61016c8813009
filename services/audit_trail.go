package services

import (
	"time"

	"loan-origination-api/models"
)

// AuditTrailRecorder appends immutable entries to a loan application's
// history. It never checks that the referenced application or user exist.
type AuditTrailRecorder struct {
	now func() time.Time
}

func NewAuditTrailRecorder() *AuditTrailRecorder {
	return &AuditTrailRecorder{now: time.Now}
}

// RecordAction appends one history entry inside scope and returns it.
// A nil remarks is stored as "no remarks" (NULL); an empty string is stored
// as an empty string. Storage errors are returned unchanged.
func (r *AuditTrailRecorder) RecordAction(scope *Scope, loanApplicationID, performedByID string, action models.HistoryAction, remarks *string) (*models.LoanApplicationHistory, error) {
	tx, err := scope.session()
	if err != nil {
		return nil, err
	}
	if err := requireID("loan_application_id", loanApplicationID); err != nil {
		return nil, err
	}
	if err := requireID("performed_by_id", performedByID); err != nil {
		return nil, err
	}
	if !action.Valid() {
		return nil, &ValidationError{Field: "action", Reason: "must be an upper-case tag such as ASSIGNED"}
	}

	entry := &models.LoanApplicationHistory{
		LoanApplicationID: loanApplicationID,
		PerformedByID:     performedByID,
		Action:            action,
		CreatedAt:         r.now().UTC(),
	}
	if remarks != nil {
		remarksCopy := *remarks
		entry.Remarks = &remarksCopy
	}

	if err := tx.Create(entry).Error; err != nil {
		return nil, err
	}
	return entry, nil
}

// ListHistory returns a loan application's history, oldest first.
func (r *AuditTrailRecorder) ListHistory(scope *Scope, loanApplicationID string) ([]models.LoanApplicationHistory, error) {
	tx, err := scope.session()
	if err != nil {
		return nil, err
	}
	if err := requireID("loan_application_id", loanApplicationID); err != nil {
		return nil, err
	}

	var entries []models.LoanApplicationHistory
	if err := tx.Where("loan_application_id = ?", loanApplicationID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
