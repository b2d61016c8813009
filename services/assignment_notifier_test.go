package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"loan-origination-api/models"
)

type fakeMailer struct {
	mu       sync.Mutex
	failures int
	calls    int
	to       []string
	subject  string
	body     string
	sent     chan struct{}
}

func (m *fakeMailer) Send(to []string, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.calls <= m.failures {
		return errors.New("421 service not available")
	}
	m.to, m.subject, m.body = to, subject, body
	if m.sent != nil {
		close(m.sent)
	}
	return nil
}

func fastNotifier(mailer Mailer, recipients []string) *AssignmentNotifier {
	n := NewAssignmentNotifier(mailer, recipients, nil)
	n.retryCfg.InitialDelay = time.Millisecond
	return n
}

func sampleAssignment() *models.LoanApplicationAssignment {
	return &models.LoanApplicationAssignment{
		ID:                "asg-1",
		LoanApplicationID: "LOAN-<1>",
		CreditManagerID:   "CM-7",
		SequenceOrder:     2,
		Status:            models.AssignmentStatusPending,
		CreatedAt:         time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestNotifyAssignedRetriesTransientFailures(t *testing.T) {
	mailer := &fakeMailer{failures: 1}
	n := fastNotifier(mailer, []string{"desk@example.com"})

	if err := n.NotifyAssigned(context.Background(), sampleAssignment()); err != nil {
		t.Fatalf("NotifyAssigned returned error: %v", err)
	}
	if mailer.calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", mailer.calls)
	}
	if len(mailer.to) != 1 || mailer.to[0] != "desk@example.com" {
		t.Fatalf("unexpected recipients: %v", mailer.to)
	}
	if !strings.Contains(mailer.subject, "CM-7") {
		t.Fatalf("subject should name the credit manager: %q", mailer.subject)
	}
	if !strings.Contains(mailer.body, "LOAN-&lt;1&gt;") {
		t.Fatalf("body should escape identifiers: %q", mailer.body)
	}
}

func TestNotifyAssignedGivesUpAfterMaxAttempts(t *testing.T) {
	mailer := &fakeMailer{failures: 10}
	n := fastNotifier(mailer, []string{"desk@example.com"})

	if err := n.NotifyAssigned(context.Background(), sampleAssignment()); err == nil {
		t.Fatalf("expected error after exhausting retries")
	}
	if mailer.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", mailer.calls)
	}
}

func TestNotifyAssignedAsyncOutlivesRequestContext(t *testing.T) {
	mailer := &fakeMailer{sent: make(chan struct{})}
	n := fastNotifier(mailer, []string{"desk@example.com"})

	ctx, cancel := context.WithCancel(context.Background())
	n.NotifyAssignedAsync(ctx, sampleAssignment())
	cancel()

	select {
	case <-mailer.sent:
	case <-time.After(5 * time.Second):
		t.Fatalf("notification was not sent")
	}
}

func TestNotifierDisabledWithoutTransportOrRecipients(t *testing.T) {
	var nilNotifier *AssignmentNotifier
	if nilNotifier.Enabled() {
		t.Fatalf("nil notifier reported enabled")
	}
	if err := nilNotifier.NotifyAssigned(context.Background(), sampleAssignment()); err != nil {
		t.Fatalf("nil notifier returned error: %v", err)
	}

	mailer := &fakeMailer{}
	n := NewAssignmentNotifier(mailer, nil, nil)
	if n.Enabled() {
		t.Fatalf("notifier without recipients reported enabled")
	}
	if err := n.NotifyAssigned(context.Background(), sampleAssignment()); err != nil {
		t.Fatalf("disabled notifier returned error: %v", err)
	}
	if mailer.calls != 0 {
		t.Fatalf("disabled notifier sent mail")
	}
}

type blockingMailer struct {
	started chan struct{}
	release chan struct{}
	sent    atomic.Bool
}

func (m *blockingMailer) Send(to []string, subject, body string) error {
	close(m.started)
	<-m.release
	m.sent.Store(true)
	return nil
}

func TestNotifierWaitDrainsPendingSends(t *testing.T) {
	mailer := &blockingMailer{started: make(chan struct{}), release: make(chan struct{})}
	n := fastNotifier(mailer, []string{"desk@example.com"})

	n.NotifyAssignedAsync(context.Background(), sampleAssignment())
	<-mailer.started

	expired, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := n.Wait(expired); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline while the send is blocked, got %v", err)
	}

	close(mailer.release)
	if err := n.Wait(context.Background()); err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}
	if !mailer.sent.Load() {
		t.Fatalf("Wait returned before the send finished")
	}

	var nilNotifier *AssignmentNotifier
	if err := nilNotifier.Wait(context.Background()); err != nil {
		t.Fatalf("nil notifier Wait returned error: %v", err)
	}
}
