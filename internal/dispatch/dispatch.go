// Package dispatch issues the forge action and turns its outcome into a
// notification plus a store reconciliation.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/runesmith/dashboard/internal/apiclient"
	"github.com/runesmith/dashboard/internal/toast"
)

// Forger submits a forge request to the backend.
type Forger interface {
	Forge(ctx context.Context) (*apiclient.ForgeResult, error)
}

// Notifier receives user-facing messages.
type Notifier interface {
	Push(msg string) toast.Toast
}

// Reconciler re-fetches artifacts and node status after a successful forge.
type Reconciler interface {
	Refresh(ctx context.Context)
}

// Outcome classifies a forge attempt.
type Outcome string

const (
	Created       Outcome = "created"
	RateLimited   Outcome = "rate_limited"
	Failed        Outcome = "failed"
	RequestFailed Outcome = "request_failed"
)

// Result describes what a forge attempt did.
type Result struct {
	Outcome    Outcome `json:"outcome"`
	StatusCode int     `json:"status_code,omitempty"`
	RetryAfter string  `json:"retry_after,omitempty"`
	JobName    string  `json:"job_name,omitempty"`
	Message    string  `json:"message"`
}

// Dispatcher runs forge requests. It never retries; a rate-limited or
// failed forge must be re-initiated by the user.
type Dispatcher struct {
	forger     Forger
	notifier   Notifier
	reconciler Reconciler
	logger     *slog.Logger
}

// New returns a Dispatcher.
func New(forger Forger, notifier Notifier, reconciler Reconciler, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{forger: forger, notifier: notifier, reconciler: reconciler, logger: logger}
}

// Forge submits one order, pushes exactly one notification describing the
// outcome and, on success, waits for the store to be reconciled.
func (d *Dispatcher) Forge(ctx context.Context) Result {
	res, err := d.forger.Forge(ctx)
	if err != nil {
		r := classify(err)
		d.logger.Warn("forge failed",
			slog.String("outcome", string(r.Outcome)),
			slog.Int("status", r.StatusCode),
			slog.String("error", err.Error()),
		)
		d.notifier.Push(r.Message)
		return r
	}

	r := Result{
		Outcome: Created,
		JobName: res.JobName,
		Message: fmt.Sprintf("Job %s created", res.JobName),
	}
	d.logger.Info("forge scheduled", slog.String("job_name", res.JobName))
	d.notifier.Push(r.Message)
	d.reconciler.Refresh(ctx)
	return r
}

func classify(err error) Result {
	var apiErr *apiclient.APIError
	if !errors.As(err, &apiErr) {
		return Result{Outcome: RequestFailed, Message: "Forge request failed"}
	}
	if apiErr.RateLimited() {
		return Result{
			Outcome:    RateLimited,
			StatusCode: apiErr.StatusCode,
			RetryAfter: apiErr.RetryAfter,
			Message:    RateLimitMessage(apiErr.RetryAfter),
		}
	}
	return Result{
		Outcome:    Failed,
		StatusCode: apiErr.StatusCode,
		Message:    fmt.Sprintf("Forge failed (HTTP %d).", apiErr.StatusCode),
	}
}

// RateLimitMessage formats the 429 notification, including the Retry-After
// value when the backend sent one.
func RateLimitMessage(retryAfter string) string {
	msg := "Rate limited (HTTP 429)."
	if retryAfter != "" {
		msg += fmt.Sprintf(" Retry after: %s.", retryAfter)
	}
	return msg
}
