package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-crm/meridian/internal/invoices"
	jobmetrics "github.com/meridian-crm/meridian/internal/jobs"
)

// OverdueLister returns pending invoices past due with an outstanding balance.
type OverdueLister interface {
	ListOverdue(ctx context.Context, asOf time.Time) ([]invoices.InvoiceWithDetails, error)
}

// ContactLookup resolves a client's billing email. Empty string means the
// client has no address on file.
type ContactLookup interface {
	BillingEmail(ctx context.Context, clientID int64) (string, error)
}

// MailEnqueuer queues follow-up email tasks.
type MailEnqueuer interface {
	EnqueueSendEmail(ctx context.Context, payload SendEmailPayload) (*asynq.TaskInfo, error)
}

// OverdueScanJob walks pending invoices past their due date and queues a
// payment reminder for each client with an email on file.
type OverdueScanJob struct {
	Invoices OverdueLister
	Contacts ContactLookup
	Mail     MailEnqueuer
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	clock    func() time.Time
}

// NewOverdueScanJob initialises the overdue scan handler.
func NewOverdueScanJob(lister OverdueLister, contacts ContactLookup, mail MailEnqueuer, logger *slog.Logger, metrics *jobmetrics.Metrics) *OverdueScanJob {
	return &OverdueScanJob{
		Invoices: lister,
		Contacts: contacts,
		Mail:     mail,
		Logger:   logger,
		Metrics:  metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// WithNow overrides the job clock for testing.
func (j *OverdueScanJob) WithNow(fn func() time.Time) {
	if fn != nil {
		j.clock = fn
	}
}

// Handle executes the overdue scan.
func (j *OverdueScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Invoices == nil {
		return errors.New("overdue scan: handler not configured")
	}
	var payload OverdueScanPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}

	tracker := j.metrics().Track(TaskInvoiceOverdueScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	now := j.clock()
	logger := j.logger()
	logger.Info("starting overdue scan")

	overdue, err := j.Invoices.ListOverdue(ctx, now)
	if err != nil {
		resultErr = err
		logger.Error("list overdue invoices", slog.Any("error", err))
		return resultErr
	}
	j.metrics().SetOverdueInvoices(len(overdue))

	queued := 0
	for _, inv := range overdue {
		logger.Warn("invoice overdue",
			slog.String("number", inv.Number),
			slog.Int64("client_id", inv.ClientID),
			slog.String("balance", inv.Balance.String()),
			slog.Time("due_at", inv.DueAt),
		)
		if !payload.Notify || j.Mail == nil || j.Contacts == nil {
			continue
		}
		email, err := j.Contacts.BillingEmail(ctx, inv.ClientID)
		if err != nil {
			resultErr = err
			logger.Error("lookup billing email", slog.Int64("client_id", inv.ClientID), slog.Any("error", err))
			return resultErr
		}
		if email == "" {
			continue
		}
		if _, err := j.Mail.EnqueueSendEmail(ctx, SendEmailPayload{
			To:      email,
			Subject: fmt.Sprintf("Payment reminder for invoice %s", inv.Number),
			Body: fmt.Sprintf("Invoice %s was due on %s. The outstanding balance is %s.",
				inv.Number, inv.DueAt.Format("2006-01-02"), inv.Balance.Round(0).String()),
		}); err != nil {
			resultErr = err
			logger.Error("queue reminder", slog.String("number", inv.Number), slog.Any("error", err))
			return resultErr
		}
		queued++
	}

	logger.Info("completed overdue scan",
		slog.Int("overdue", len(overdue)),
		slog.Int("reminders_queued", queued),
		slog.Duration("duration", time.Since(now)),
	)
	return resultErr
}

func (j *OverdueScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskInvoiceOverdueScan))
	}
	return slog.Default().With(slog.String("job", TaskInvoiceOverdueScan))
}

func (j *OverdueScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
