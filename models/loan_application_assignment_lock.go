package models

import "time"

// LoanApplicationAssignmentLock is the per-pair anchor row locked by the
// row_lock registration strategy. It exists so the locking read always has a
// row to lock, whether or not an assignment has been written for the pair.
type LoanApplicationAssignmentLock struct {
	LoanApplicationID string    `gorm:"primaryKey;column:loan_application_id;type:varchar(64)"`
	CreditManagerID   string    `gorm:"primaryKey;column:credit_manager_id;type:varchar(64)"`
	CreatedAt         time.Time `gorm:"column:created_at"`
}

// TableName specifies the table for LoanApplicationAssignmentLock.
func (LoanApplicationAssignmentLock) TableName() string {
	return "loan_application_assignment_lock"
}
