package repo

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestTryAcquireClaim_FirstWinsSecondLoses(t *testing.T) {
	db := newRelayDB(t)
	ctx := context.Background()

	won, err := TryAcquireClaim(ctx, db, "notify:1:42")
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if !won {
		t.Fatalf("first claim must win")
	}

	won, err = TryAcquireClaim(ctx, db, "notify:1:42")
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if won {
		t.Fatalf("second claim must lose")
	}
}

func TestTryAcquireClaim_DistinctKeysIndependent(t *testing.T) {
	db := newRelayDB(t)
	ctx := context.Background()

	for _, key := range []string{"notify:1:42", "notify:1:43", "notify:2:42"} {
		won, err := TryAcquireClaim(ctx, db, key)
		if err != nil {
			t.Fatalf("claim %q: %v", key, err)
		}
		if !won {
			t.Fatalf("claim %q should win, keys are independent", key)
		}
	}
}

func TestTryAcquireClaim_Concurrent_ExactlyOneWinner(t *testing.T) {
	db := newRelayDB(t)
	ctx := context.Background()

	const goroutines = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	start := make(chan struct{})
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			won, err := TryAcquireClaim(ctx, db, "race-key")
			if err != nil {
				t.Errorf("claim: %v", err)
				return
			}
			if won {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	close(start)
	wg.Wait()

	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
}

func TestHasClaim(t *testing.T) {
	db := newRelayDB(t)
	ctx := context.Background()

	exists, err := HasClaim(ctx, db, "missing")
	if err != nil {
		t.Fatalf("HasClaim: %v", err)
	}
	if exists {
		t.Fatalf("missing key must not exist")
	}

	if _, err := TryAcquireClaim(ctx, db, "present"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	exists, err = HasClaim(ctx, db, "present")
	if err != nil {
		t.Fatalf("HasClaim: %v", err)
	}
	if !exists {
		t.Fatalf("claimed key must exist")
	}
}

func TestPruneClaims_RemovesOnlyOldRows(t *testing.T) {
	db := newRelayDB(t)
	ctx := context.Background()

	if _, err := TryAcquireClaim(ctx, db, "old"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := TryAcquireClaim(ctx, db, "fresh"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	// Age the first row past the cutoff.
	aged := time.Now().UTC().Add(-48 * time.Hour)
	if err := db.Table("idempotency_claims").Where("key = ?", "old").
		Update("created_at", aged).Error; err != nil {
		t.Fatalf("age row: %v", err)
	}

	n, err := PruneClaims(ctx, db, time.Now().UTC().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("PruneClaims: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 pruned, got %d", n)
	}

	if exists, _ := HasClaim(ctx, db, "old"); exists {
		t.Fatalf("old claim should be gone")
	}
	if exists, _ := HasClaim(ctx, db, "fresh"); !exists {
		t.Fatalf("fresh claim must survive")
	}
}
