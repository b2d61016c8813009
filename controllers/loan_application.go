package controllers

import (
	"errors"
	"net/http"
	"strconv"

	charmlog "github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"loan-origination-api/middleware"
	"loan-origination-api/models"
	"loan-origination-api/services"
	"loan-origination-api/utils"
)

// LoanApplicationController exposes the assignment ledger and audit trail
// of loan applications over HTTP.
type LoanApplicationController struct {
	txm      *services.TxManager
	ledger   *services.AssignmentLedger
	recorder *services.AuditTrailRecorder
	notifier *services.AssignmentNotifier
	logger   *charmlog.Logger
}

func NewLoanApplicationController(
	txm *services.TxManager,
	ledger *services.AssignmentLedger,
	recorder *services.AuditTrailRecorder,
	notifier *services.AssignmentNotifier,
	logger *charmlog.Logger,
) *LoanApplicationController {
	if logger == nil {
		logger = charmlog.Default()
	}
	return &LoanApplicationController{
		txm:      txm,
		ledger:   ledger,
		recorder: recorder,
		notifier: notifier,
		logger:   logger,
	}
}

type registerAssignmentRequest struct {
	CreditManagerID string  `json:"credit_manager_id" binding:"required"`
	SequenceOrder   *int    `json:"sequence_order" binding:"required"`
	Active          *bool   `json:"active"`
	Remarks         *string `json:"remarks"`
}

type recordHistoryRequest struct {
	Action  string  `json:"action" binding:"required"`
	Remarks *string `json:"remarks"`
}

// RegisterAssignment registers a credit manager on a loan application and,
// when the assignment is new, logs ASSIGNED in the same transaction.
func (lc *LoanApplicationController) RegisterAssignment(c *gin.Context) {
	loanApplicationID, ok := loanApplicationParam(c)
	if !ok {
		return
	}

	var req registerAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	creditManagerID := utils.SanitizeInput(req.CreditManagerID)
	if !utils.ValidateIdentifier(creditManagerID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid credit_manager_id"})
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	performedBy := middleware.CurrentUserID(c)

	var (
		assignment *models.LoanApplicationAssignment
		created    bool
	)
	err := lc.txm.WithinScope(c.Request.Context(), func(scope *services.Scope) error {
		var err error
		assignment, created, err = lc.ledger.RegisterAssignment(scope, loanApplicationID, creditManagerID, *req.SequenceOrder, active)
		if err != nil {
			return err
		}
		if !created {
			return nil
		}
		_, err = lc.recorder.RecordAction(scope, loanApplicationID, performedBy, models.HistoryActionAssigned, utils.SanitizeOptional(req.Remarks))
		return err
	})
	if err != nil {
		lc.respondError(c, err, "Failed to register assignment")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		lc.notifier.NotifyAssignedAsync(c.Request.Context(), assignment)
	}

	c.JSON(status, gin.H{
		"success": true,
		"created": created,
		"data":    assignment,
	})
}

// GetAssignments lists a loan application's assignments in review order.
func (lc *LoanApplicationController) GetAssignments(c *gin.Context) {
	loanApplicationID, ok := loanApplicationParam(c)
	if !ok {
		return
	}

	includeDeleted := false
	if raw := c.Query("include_deleted"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "include_deleted must be a boolean"})
			return
		}
		includeDeleted = parsed
	}

	rows, err := lc.ledger.ListAssignments(lc.txm.ReadScope(c.Request.Context()), loanApplicationID, includeDeleted)
	if err != nil {
		lc.respondError(c, err, "Failed to load assignments")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": rows,
		"meta": gin.H{"total": len(rows)},
	})
}

// RecordHistory appends an action performed by the authenticated user.
func (lc *LoanApplicationController) RecordHistory(c *gin.Context) {
	loanApplicationID, ok := loanApplicationParam(c)
	if !ok {
		return
	}

	var req recordHistoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	action, err := utils.ParseHistoryAction(req.Action)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !action.Known() {
		lc.logger.Info("recording unlisted history action", "loan_application_id", loanApplicationID, "action", action)
	}

	var entry *models.LoanApplicationHistory
	err = lc.txm.WithinScope(c.Request.Context(), func(scope *services.Scope) error {
		var err error
		entry, err = lc.recorder.RecordAction(scope, loanApplicationID, middleware.CurrentUserID(c), action, utils.SanitizeOptional(req.Remarks))
		return err
	})
	if err != nil {
		lc.respondError(c, err, "Failed to record history")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "data": entry})
}

// GetHistory returns a loan application's history, oldest first.
func (lc *LoanApplicationController) GetHistory(c *gin.Context) {
	loanApplicationID, ok := loanApplicationParam(c)
	if !ok {
		return
	}

	entries, err := lc.recorder.ListHistory(lc.txm.ReadScope(c.Request.Context()), loanApplicationID)
	if err != nil {
		lc.respondError(c, err, "Failed to load history")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": entries,
		"meta": gin.H{"total": len(entries)},
	})
}

func loanApplicationParam(c *gin.Context) (string, bool) {
	id := utils.SanitizeInput(c.Param("id"))
	if !utils.ValidateIdentifier(id) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid loan application id"})
		return "", false
	}
	return id, true
}

func (lc *LoanApplicationController) respondError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, services.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrAssignmentNotResolved):
		c.JSON(http.StatusConflict, gin.H{"error": "Assignment changed concurrently, please retry"})
	default:
		lc.logger.Error(message, "path", c.FullPath(), "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": message})
	}
}
