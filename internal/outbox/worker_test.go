package outbox

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/venuedesk/go-venue-relay/internal/domain"
	"github.com/venuedesk/go-venue-relay/internal/provider"
	"github.com/venuedesk/go-venue-relay/internal/repo"
)

func newOutboxDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("outbox_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// scriptClient replays a fixed sequence of call outcomes.
type scriptClient struct {
	mu      sync.Mutex
	script  []scriptStep
	methods []string
}

type scriptStep struct {
	res *provider.Result
	err error
}

func (c *scriptClient) Call(_ context.Context, method, _ string) (*provider.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.methods = append(c.methods, method)
	if len(c.script) == 0 {
		return &provider.Result{OK: true}, nil
	}
	step := c.script[0]
	c.script = c.script[1:]
	return step.res, step.err
}

func (c *scriptClient) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.methods)
}

// instantBackoff keeps retried rows due immediately so a follow-up pass can
// pick them up without sleeping.
func instantBackoff() Backoff {
	return Backoff{Base: time.Nanosecond, Max: time.Nanosecond, rnd: func() float64 { return 0 }}
}

func TestWorker_SuccessMarksSent(t *testing.T) {
	db := newOutboxDB(t)
	ctx := context.Background()

	msg, err := repo.EnqueueOutbox(ctx, db, 42, "sendMessage", `{"text":"hi"}`)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	client := &scriptClient{script: []scriptStep{{res: &provider.Result{OK: true}}}}
	w := &Worker{DB: db, Client: client, Backoff: instantBackoff()}

	n, err := w.ProcessOnce(ctx)
	if err != nil || n != 1 {
		t.Fatalf("pass: n=%d err=%v", n, err)
	}

	got, err := repo.GetOutbox(ctx, db, msg.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.OutboxStatusSent || got.SentAt == nil {
		t.Fatalf("expected SENT, got %+v", got)
	}
}

func TestWorker_RetryAfterOverridesBackoff(t *testing.T) {
	db := newOutboxDB(t)
	ctx := context.Background()

	msg, err := repo.EnqueueOutbox(ctx, db, 42, "sendMessage", "{}")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	// Local backoff would push the row out an hour; the provider says 5s.
	client := &scriptClient{script: []scriptStep{
		{res: &provider.Result{ErrorCode: 429, Description: "Too Many Requests", RetryAfter: 5 * time.Second}},
	}}
	w := &Worker{
		DB:      db,
		Client:  client,
		Backoff: Backoff{Base: time.Hour, Max: time.Hour, rnd: func() float64 { return 0.5 }},
	}

	before := time.Now().UTC()
	if _, err := w.ProcessOnce(ctx); err != nil {
		t.Fatalf("pass: %v", err)
	}

	got, _ := repo.GetOutbox(ctx, db, msg.ID)
	if got.Status != domain.OutboxStatusNew || got.Attempts != 1 {
		t.Fatalf("throttled row must stay NEW with one attempt: %+v", got)
	}
	want := before.Add(5 * time.Second)
	if d := got.NextAttemptAt.Sub(want); d < -time.Second || d > 2*time.Second {
		t.Fatalf("retry-after not honored: want ~%v got %v", want, got.NextAttemptAt)
	}
}

func TestWorker_TransportErrorReschedulesWithBackoff(t *testing.T) {
	db := newOutboxDB(t)
	ctx := context.Background()

	msg, err := repo.EnqueueOutbox(ctx, db, 42, "sendMessage", "{}")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	client := &scriptClient{script: []scriptStep{{err: errors.New("connection refused")}}}
	w := &Worker{
		DB:      db,
		Client:  client,
		Backoff: Backoff{Base: 20 * time.Second, Max: time.Hour, rnd: func() float64 { return 0.5 }},
	}

	before := time.Now().UTC()
	if _, err := w.ProcessOnce(ctx); err != nil {
		t.Fatalf("pass: %v", err)
	}

	got, _ := repo.GetOutbox(ctx, db, msg.ID)
	if got.Status != domain.OutboxStatusNew || got.Attempts != 1 {
		t.Fatalf("transport failure must reschedule: %+v", got)
	}
	if got.LastError == nil || *got.LastError != "connection refused" {
		t.Fatalf("last_error not recorded: %+v", got.LastError)
	}
	// First retry of a fresh row: Base * 2^0 with a pinned neutral roll.
	want := before.Add(20 * time.Second)
	if d := got.NextAttemptAt.Sub(want); d < -time.Second || d > 2*time.Second {
		t.Fatalf("backoff schedule: want ~%v got %v", want, got.NextAttemptAt)
	}
}

func TestWorker_PermanentRejectionFails(t *testing.T) {
	db := newOutboxDB(t)
	ctx := context.Background()

	msg, err := repo.EnqueueOutbox(ctx, db, 42, "sendMessage", "{}")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	client := &scriptClient{script: []scriptStep{
		{res: &provider.Result{ErrorCode: 400, Description: "Bad Request: chat not found"}},
	}}
	w := &Worker{DB: db, Client: client, Backoff: instantBackoff()}

	if _, err := w.ProcessOnce(ctx); err != nil {
		t.Fatalf("pass: %v", err)
	}

	got, _ := repo.GetOutbox(ctx, db, msg.ID)
	if got.Status != domain.OutboxStatusFailed {
		t.Fatalf("permanent rejection must be FAILED: %+v", got)
	}
	if got.LastError == nil || *got.LastError != "Bad Request: chat not found" {
		t.Fatalf("last_error not recorded: %+v", got.LastError)
	}
}

func TestWorker_AttemptExhaustionFails(t *testing.T) {
	db := newOutboxDB(t)
	ctx := context.Background()

	msg, err := repo.EnqueueOutbox(ctx, db, 42, "sendMessage", "{}")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	client := &scriptClient{script: []scriptStep{
		{res: &provider.Result{ErrorCode: 500, Description: "Internal Server Error"}},
		{res: &provider.Result{ErrorCode: 500, Description: "Internal Server Error"}},
	}}
	w := &Worker{DB: db, Client: client, MaxAttempts: 2, Backoff: instantBackoff()}

	// First pass: one attempt left in the budget, so reschedule.
	if _, err := w.ProcessOnce(ctx); err != nil {
		t.Fatalf("pass 1: %v", err)
	}
	got, _ := repo.GetOutbox(ctx, db, msg.ID)
	if got.Status != domain.OutboxStatusNew || got.Attempts != 1 {
		t.Fatalf("after pass 1: %+v", got)
	}

	// Second pass: budget exhausted, terminal.
	if _, err := w.ProcessOnce(ctx); err != nil {
		t.Fatalf("pass 2: %v", err)
	}
	got, _ = repo.GetOutbox(ctx, db, msg.ID)
	if got.Status != domain.OutboxStatusFailed {
		t.Fatalf("after pass 2: %+v", got)
	}
	if client.calls() != 2 {
		t.Fatalf("expected 2 provider calls, got %d", client.calls())
	}
}

func TestWorker_FailThenSucceedAcrossPasses(t *testing.T) {
	db := newOutboxDB(t)
	ctx := context.Background()

	msg, err := repo.EnqueueOutbox(ctx, db, 42, "sendMessage", "{}")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	client := &scriptClient{script: []scriptStep{
		{err: errors.New("timeout")},
		{res: &provider.Result{OK: true}},
	}}
	w := &Worker{DB: db, Client: client, Backoff: instantBackoff()}

	if _, err := w.ProcessOnce(ctx); err != nil {
		t.Fatalf("pass 1: %v", err)
	}
	if _, err := w.ProcessOnce(ctx); err != nil {
		t.Fatalf("pass 2: %v", err)
	}

	got, _ := repo.GetOutbox(ctx, db, msg.ID)
	if got.Status != domain.OutboxStatusSent {
		t.Fatalf("expected SENT after recovery: %+v", got)
	}
	if got.Attempts != 1 {
		t.Fatalf("expected exactly one failed attempt recorded, got %d", got.Attempts)
	}
}

func TestWorker_EmptyOutboxIsNoop(t *testing.T) {
	db := newOutboxDB(t)
	client := &scriptClient{}
	w := &Worker{DB: db, Client: client, Backoff: instantBackoff()}

	n, err := w.ProcessOnce(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("empty pass: n=%d err=%v", n, err)
	}
	if client.calls() != 0 {
		t.Fatalf("no provider calls expected, got %d", client.calls())
	}
}
