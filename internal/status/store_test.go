package status

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return New(rdb), mr
}

func TestGetStatus_AbsentIsNotAnError(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	val, ok, err := st.GetStatus(ctx, "processing", "nope")
	if err != nil {
		t.Fatalf("expected no error for absent key, got %v", err)
	}
	if ok || val != "" {
		t.Fatalf("expected absent, got %q ok=%v", val, ok)
	}
}

func TestGetProgress_AbsentDefaultsToZero(t *testing.T) {
	st, _ := newTestStore(t)

	pct, err := st.GetProgress(context.Background(), "processing", "nope")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if pct != 0 {
		t.Fatalf("expected 0, got %d", pct)
	}
}

func TestClaim_OnlyFirstCallerWins(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	claimed, err := st.Claim(ctx, "processing", "doc1", "pending", time.Hour)
	if err != nil {
		t.Fatalf("claim error: %v", err)
	}
	if !claimed {
		t.Fatalf("expected first claim to win")
	}

	claimed, err = st.Claim(ctx, "processing", "doc1", "pending", time.Hour)
	if err != nil {
		t.Fatalf("claim error: %v", err)
	}
	if claimed {
		t.Fatalf("expected second claim to lose")
	}
}

func TestSetStatus_KeepsClaimTTL(t *testing.T) {
	st, mr := newTestStore(t)
	ctx := context.Background()

	if _, err := st.Claim(ctx, "processing", "doc1", "pending", time.Hour); err != nil {
		t.Fatalf("claim error: %v", err)
	}
	if err := st.SetStatus(ctx, "processing", "doc1", "done"); err != nil {
		t.Fatalf("set status error: %v", err)
	}

	// Terminal write must not clear the expiry horizon.
	if ttl := mr.TTL("processing:status:doc1"); ttl <= 0 || ttl > time.Hour {
		t.Fatalf("expected TTL preserved, got %v", ttl)
	}

	mr.FastForward(2 * time.Hour)
	_, ok, err := st.GetStatus(ctx, "processing", "doc1")
	if err != nil {
		t.Fatalf("get status error: %v", err)
	}
	if ok {
		t.Fatalf("expected done status to expire with the claim TTL")
	}
}

func TestClear_RemovesBothKeys(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := st.Claim(ctx, "processing", "doc1", "pending", time.Hour); err != nil {
		t.Fatalf("claim error: %v", err)
	}
	if err := st.ResetProgress(ctx, "processing", "doc1", time.Hour); err != nil {
		t.Fatalf("reset progress error: %v", err)
	}
	if err := st.Clear(ctx, "processing", "doc1"); err != nil {
		t.Fatalf("clear error: %v", err)
	}

	if _, ok, _ := st.GetStatus(ctx, "processing", "doc1"); ok {
		t.Fatalf("expected status cleared")
	}
	claimed, err := st.Claim(ctx, "processing", "doc1", "pending", time.Hour)
	if err != nil {
		t.Fatalf("claim error: %v", err)
	}
	if !claimed {
		t.Fatalf("expected id to be claimable again after clear")
	}
}

func TestScanIDs_WalksNamespace(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if _, err := st.Claim(ctx, "model", id, "queued", time.Hour); err != nil {
			t.Fatalf("claim error: %v", err)
		}
	}
	// Different namespace must not leak into the scan.
	if _, err := st.Claim(ctx, "processing", "x", "pending", time.Hour); err != nil {
		t.Fatalf("claim error: %v", err)
	}

	ids, err := st.ScanIDs(ctx, "model")
	if err != nil {
		t.Fatalf("scan error: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("expected 3 ids, got %d (%v)", len(ids), ids)
	}
	seen := make(map[string]bool)
	for _, id := range ids {
		seen[id] = true
	}
	for _, want := range []string{"a", "b", "c"} {
		if !seen[want] {
			t.Fatalf("expected id %q in scan result %v", want, ids)
		}
	}
}
