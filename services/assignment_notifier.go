package services

import (
	"context"
	"fmt"
	"html"
	"sync"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/felixgeelhaar/fortify/retry"

	"loan-origination-api/models"
)

// Mailer is the outgoing mail transport used by AssignmentNotifier.
type Mailer interface {
	Send(to []string, subject, html string) error
}

// AssignmentNotifier mails the review desk when a new assignment is created.
// It runs after the enclosing transaction has committed and is not part of
// the unit of work.
type AssignmentNotifier struct {
	mailer     Mailer
	recipients []string
	logger     *charmlog.Logger
	retryCfg   retry.Config

	pending sync.WaitGroup
}

func NewAssignmentNotifier(mailer Mailer, recipients []string, logger *charmlog.Logger) *AssignmentNotifier {
	if logger == nil {
		logger = charmlog.Default()
	}
	return &AssignmentNotifier{
		mailer:     mailer,
		recipients: append([]string(nil), recipients...),
		logger:     logger,
		retryCfg: retry.Config{
			MaxAttempts:   3,
			InitialDelay:  500 * time.Millisecond,
			BackoffPolicy: retry.BackoffExponential,
		},
	}
}

// Enabled reports whether there is a transport and at least one recipient.
func (n *AssignmentNotifier) Enabled() bool {
	return n != nil && n.mailer != nil && len(n.recipients) > 0
}

// NotifyAssigned sends the assignment mail, retrying transient SMTP failures.
func (n *AssignmentNotifier) NotifyAssigned(ctx context.Context, a *models.LoanApplicationAssignment) error {
	if !n.Enabled() || a == nil {
		return nil
	}

	subject := fmt.Sprintf("Loan application %s assigned to %s", a.LoanApplicationID, a.CreditManagerID)
	body := fmt.Sprintf(
		"<p>Loan application <b>%s</b> was assigned to credit manager <b>%s</b>.</p>"+
			"<p>Review position: %d<br>Status: %s<br>Assigned at: %s</p>",
		html.EscapeString(a.LoanApplicationID),
		html.EscapeString(a.CreditManagerID),
		a.SequenceOrder,
		html.EscapeString(string(a.Status)),
		a.CreatedAt.UTC().Format(time.RFC3339),
	)

	r := retry.New[struct{}](n.retryCfg)
	_, err := r.Do(persistentContext(ctx), func(context.Context) (struct{}, error) {
		return struct{}{}, n.mailer.Send(n.recipients, subject, body)
	})
	return err
}

// NotifyAssignedAsync sends in the background. The request context may end
// before the mail goes out, so only its values are kept.
func (n *AssignmentNotifier) NotifyAssignedAsync(ctx context.Context, a *models.LoanApplicationAssignment) {
	if !n.Enabled() || a == nil {
		return
	}
	ctx = persistentContext(ctx)
	n.pending.Add(1)
	go func() {
		defer n.pending.Done()
		if err := n.NotifyAssigned(ctx, a); err != nil {
			n.logger.Error("assignment notification failed",
				"loan_application_id", a.LoanApplicationID,
				"credit_manager_id", a.CreditManagerID,
				"err", err)
		}
	}()
}

// Wait blocks until every notification started by NotifyAssignedAsync has
// finished, or ctx is done. Call it after the HTTP server has stopped
// accepting requests.
func (n *AssignmentNotifier) Wait(ctx context.Context) error {
	if n == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		n.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func persistentContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return context.WithoutCancel(ctx)
}
