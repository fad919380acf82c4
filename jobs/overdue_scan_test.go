package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-crm/meridian/internal/invoices"
)

type fakeOverdueLister struct {
	overdue []invoices.InvoiceWithDetails
	asOf    time.Time
}

func (f *fakeOverdueLister) ListOverdue(ctx context.Context, asOf time.Time) ([]invoices.InvoiceWithDetails, error) {
	f.asOf = asOf
	return f.overdue, nil
}

type fakeContacts struct {
	emails map[int64]string
}

func (f *fakeContacts) BillingEmail(ctx context.Context, clientID int64) (string, error) {
	return f.emails[clientID], nil
}

type fakeMail struct {
	sent []SendEmailPayload
}

func (f *fakeMail) EnqueueSendEmail(ctx context.Context, payload SendEmailPayload) (*asynq.TaskInfo, error) {
	f.sent = append(f.sent, payload)
	return &asynq.TaskInfo{}, nil
}

func overdueInvoice(number string, clientID int64, balance int64, due time.Time) invoices.InvoiceWithDetails {
	d := invoices.InvoiceWithDetails{Balance: decimal.NewFromInt(balance)}
	d.Number = number
	d.ClientID = clientID
	d.DueAt = due
	return d
}

func TestOverdueScanQueuesReminders(t *testing.T) {
	due := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	lister := &fakeOverdueLister{overdue: []invoices.InvoiceWithDetails{
		overdueInvoice("INV-2025-000003", 1, 150, due),
		overdueInvoice("INV-2025-000007", 2, 80, due),
	}}
	contacts := &fakeContacts{emails: map[int64]string{1: "billing@alpha.example"}}
	mail := &fakeMail{}

	job := NewOverdueScanJob(lister, contacts, mail, nil, nil)
	job.WithNow(func() time.Time {
		return time.Date(2025, 5, 10, 6, 0, 0, 0, time.UTC)
	})

	task, err := NewOverdueScanTask(OverdueScanPayload{Notify: true})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	require.Equal(t, time.Date(2025, 5, 10, 6, 0, 0, 0, time.UTC), lister.asOf)
	// Client 2 has no email on file, so only one reminder goes out.
	require.Len(t, mail.sent, 1)
	require.Equal(t, "billing@alpha.example", mail.sent[0].To)
	require.Contains(t, mail.sent[0].Subject, "INV-2025-000003")
	require.Contains(t, mail.sent[0].Body, "2025-04-01")
	require.Contains(t, mail.sent[0].Body, "150")
}

func TestOverdueScanNotifyDisabled(t *testing.T) {
	lister := &fakeOverdueLister{overdue: []invoices.InvoiceWithDetails{
		overdueInvoice("INV-2025-000001", 1, 40, time.Now().AddDate(0, 0, -10)),
	}}
	mail := &fakeMail{}

	job := NewOverdueScanJob(lister, &fakeContacts{}, mail, nil, nil)

	task, err := NewOverdueScanTask(OverdueScanPayload{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Empty(t, mail.sent)
}

func TestOverdueScanRejectsGarbagePayload(t *testing.T) {
	job := NewOverdueScanJob(&fakeOverdueLister{}, &fakeContacts{}, &fakeMail{}, nil, nil)

	err := job.Handle(context.Background(), asynq.NewTask(TaskInvoiceOverdueScan, []byte("{not json")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

type fakeWarmer struct {
	calls int
	err   error
}

func (f *fakeWarmer) Warm(ctx context.Context) error {
	f.calls++
	return f.err
}

func TestAnalyticsWarmupRunsWarmer(t *testing.T) {
	warmer := &fakeWarmer{}
	job := NewAnalyticsWarmupJob(warmer, nil, nil)

	require.NoError(t, job.Handle(context.Background(), NewAnalyticsWarmupTask()))
	require.Equal(t, 1, warmer.calls)
}
