package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AssignmentStatus is the review state of one assignment. Only PENDING is
// written by the ledger; the remaining values belong to the review workflow.
type AssignmentStatus string

const (
	AssignmentStatusPending   AssignmentStatus = "PENDING"
	AssignmentStatusInReview  AssignmentStatus = "IN_REVIEW"
	AssignmentStatusApproved  AssignmentStatus = "APPROVED"
	AssignmentStatusRejected  AssignmentStatus = "REJECTED"
	AssignmentStatusEscalated AssignmentStatus = "ESCALATED"
)

// LoanApplicationAssignment is one credit manager's slot in a loan
// application's review sequence. At most one row with IsDeleted=false exists
// per (LoanApplicationID, CreditManagerID).
type LoanApplicationAssignment struct {
	ID                string           `gorm:"primaryKey;column:id;type:varchar(36)" json:"id"`
	LoanApplicationID string           `gorm:"column:loan_application_id;type:varchar(64);not null" json:"loan_application_id"`
	CreditManagerID   string           `gorm:"column:credit_manager_id;type:varchar(64);not null" json:"credit_manager_id"`
	SequenceOrder     int              `gorm:"column:sequence_order;not null" json:"sequence_order"`
	Status            AssignmentStatus `gorm:"column:status;type:varchar(32);not null" json:"status"`
	Active            bool             `gorm:"column:active;not null" json:"active"`
	IsDeleted         bool             `gorm:"column:is_deleted;not null" json:"is_deleted"`
	CreatedAt         time.Time        `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time        `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table for LoanApplicationAssignment.
func (LoanApplicationAssignment) TableName() string {
	return "loan_application_assignment"
}

func (a *LoanApplicationAssignment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		a.ID = id.String()
	}
	return nil
}
