package dispatch_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/runesmith/dashboard/internal/apiclient"
	"github.com/runesmith/dashboard/internal/dispatch"
	"github.com/runesmith/dashboard/internal/toast"
)

type stubForger struct {
	res *apiclient.ForgeResult
	err error
}

func (s stubForger) Forge(context.Context) (*apiclient.ForgeResult, error) {
	return s.res, s.err
}

type recordingNotifier struct {
	msgs []string
}

func (n *recordingNotifier) Push(msg string) toast.Toast {
	n.msgs = append(n.msgs, msg)
	return toast.Toast{ID: uint64(len(n.msgs)), Message: msg}
}

type countingReconciler struct {
	calls int
}

func (r *countingReconciler) Refresh(context.Context) { r.calls++ }

func run(t *testing.T, f dispatch.Forger) (dispatch.Result, *recordingNotifier, *countingReconciler) {
	t.Helper()
	n := &recordingNotifier{}
	r := &countingReconciler{}
	d := dispatch.New(f, n, r, slog.New(slog.NewTextHandler(io.Discard, nil)))
	res := d.Forge(context.Background())
	if len(n.msgs) != 1 {
		t.Fatalf("notifications: got %d, want exactly 1 (%v)", len(n.msgs), n.msgs)
	}
	if n.msgs[0] != res.Message {
		t.Errorf("notification %q does not match result message %q", n.msgs[0], res.Message)
	}
	return res, n, r
}

func TestForge_Success(t *testing.T) {
	res, n, r := run(t, stubForger{res: &apiclient.ForgeResult{JobName: "enchant-7"}})

	if res.Outcome != dispatch.Created {
		t.Errorf("outcome: got %q, want created", res.Outcome)
	}
	if n.msgs[0] != "Job enchant-7 created" {
		t.Errorf("message: got %q", n.msgs[0])
	}
	if r.calls != 1 {
		t.Errorf("reconcile calls: got %d, want 1", r.calls)
	}
	if toast.IsError(n.msgs[0]) {
		t.Error("success message should not classify as error")
	}
}

func TestForge_RateLimitedWithRetryAfter(t *testing.T) {
	res, n, r := run(t, stubForger{err: &apiclient.APIError{StatusCode: 429, RetryAfter: "5"}})

	if res.Outcome != dispatch.RateLimited {
		t.Errorf("outcome: got %q, want rate_limited", res.Outcome)
	}
	msg := n.msgs[0]
	if !strings.Contains(msg, "429") || !strings.Contains(msg, "5") {
		t.Errorf("message should mention 429 and 5: %q", msg)
	}
	if msg != "Rate limited (HTTP 429). Retry after: 5." {
		t.Errorf("message: got %q", msg)
	}
	if r.calls != 0 {
		t.Error("rate-limited forge must not reconcile")
	}
}

func TestForge_RateLimitedWithoutRetryAfter(t *testing.T) {
	res, n, _ := run(t, stubForger{err: &apiclient.APIError{StatusCode: 429}})

	if res.Outcome != dispatch.RateLimited {
		t.Errorf("outcome: got %q, want rate_limited", res.Outcome)
	}
	if n.msgs[0] != "Rate limited (HTTP 429)." {
		t.Errorf("message: got %q", n.msgs[0])
	}
	if strings.Contains(n.msgs[0], "Retry after") {
		t.Error("retry-after clause should be omitted")
	}
}

func TestForge_OtherStatus(t *testing.T) {
	for _, code := range []int{400, 401, 500, 503} {
		t.Run(fmt.Sprint(code), func(t *testing.T) {
			res, n, r := run(t, stubForger{err: fmt.Errorf("wrapped: %w", &apiclient.APIError{StatusCode: code})})

			if res.Outcome != dispatch.Failed {
				t.Errorf("outcome: got %q, want failed", res.Outcome)
			}
			want := fmt.Sprintf("Forge failed (HTTP %d).", code)
			if n.msgs[0] != want {
				t.Errorf("message: got %q, want %q", n.msgs[0], want)
			}
			if res.StatusCode != code {
				t.Errorf("StatusCode: got %d, want %d", res.StatusCode, code)
			}
			if r.calls != 0 {
				t.Error("failed forge must not reconcile")
			}
		})
	}
}

func TestForge_NetworkFailure(t *testing.T) {
	res, n, r := run(t, stubForger{err: errors.New("dial tcp: connection refused")})

	if res.Outcome != dispatch.RequestFailed {
		t.Errorf("outcome: got %q, want request_failed", res.Outcome)
	}
	if n.msgs[0] != "Forge request failed" {
		t.Errorf("message: got %q", n.msgs[0])
	}
	if r.calls != 0 {
		t.Error("failed forge must not reconcile")
	}
}
