package gateway

import (
	"testing"
	"time"

	"github.com/olzhas-a/dispatch-core/pkg/uuid"
)

func TestLimiter_GenericBudget(t *testing.T) {
	l := NewLimiter(time.Hour)
	defer l.Stop()
	connID := uuid.New()

	for i := 1; i <= RuleGeneric.Limit; i++ {
		if !l.Allow(connID, RuleGeneric) {
			t.Fatalf("message %d should be allowed", i)
		}
	}
	if l.Allow(connID, RuleGeneric) {
		t.Fatalf("message %d should be rejected", RuleGeneric.Limit+1)
	}
}

func TestLimiter_LocationBudget(t *testing.T) {
	l := NewLimiter(time.Hour)
	defer l.Stop()
	connID := uuid.New()

	for i := 1; i <= RuleLocation.Limit; i++ {
		if !l.Allow(connID, RuleLocation) {
			t.Fatalf("location update %d should be allowed", i)
		}
	}
	if l.Allow(connID, RuleLocation) {
		t.Fatalf("location update %d should be rejected", RuleLocation.Limit+1)
	}
}

func TestLimiter_RulesAreIndependent(t *testing.T) {
	l := NewLimiter(time.Hour)
	defer l.Stop()
	connID := uuid.New()

	for i := 0; i < RuleGeneric.Limit; i++ {
		l.Allow(connID, RuleGeneric)
	}
	if l.Allow(connID, RuleGeneric) {
		t.Fatal("generic budget should be exhausted")
	}
	if !l.Allow(connID, RuleLocation) {
		t.Fatal("location budget must not be drained by generic messages")
	}
}

func TestLimiter_ConnectionsAreIndependent(t *testing.T) {
	l := NewLimiter(time.Hour)
	defer l.Stop()

	a, b := uuid.New(), uuid.New()
	for i := 0; i < RuleGeneric.Limit; i++ {
		l.Allow(a, RuleGeneric)
	}
	if l.Allow(a, RuleGeneric) {
		t.Fatal("first connection should be exhausted")
	}
	if !l.Allow(b, RuleGeneric) {
		t.Fatal("second connection must have its own budget")
	}
}

func TestLimiter_WindowRefills(t *testing.T) {
	l := NewLimiter(time.Hour)
	defer l.Stop()
	connID := uuid.New()

	rule := Rule{Name: "tiny", Limit: 2, Window: 50 * time.Millisecond}
	l.Allow(connID, rule)
	l.Allow(connID, rule)
	if l.Allow(connID, rule) {
		t.Fatal("third action inside the window should be rejected")
	}

	time.Sleep(60 * time.Millisecond)
	if !l.Allow(connID, rule) {
		t.Fatal("bucket must fully refill at the window boundary")
	}
}

func TestLimiter_SweepDropsExpiredBuckets(t *testing.T) {
	l := NewLimiter(time.Hour)
	defer l.Stop()
	connID := uuid.New()

	rule := Rule{Name: "tiny", Limit: 2, Window: 10 * time.Millisecond}
	l.Allow(connID, rule)

	l.sweep(time.Now().Add(time.Second))

	total := 0
	for _, shard := range l.shards {
		shard.mu.Lock()
		total += len(shard.buckets)
		shard.mu.Unlock()
	}
	if total != 0 {
		t.Fatalf("expected all buckets swept, %d left", total)
	}
}

func TestLimiter_Forget(t *testing.T) {
	l := NewLimiter(time.Hour)
	defer l.Stop()
	connID := uuid.New()

	for i := 0; i < RuleGeneric.Limit; i++ {
		l.Allow(connID, RuleGeneric)
	}
	l.Forget(connID)

	if !l.Allow(connID, RuleGeneric) {
		t.Fatal("forgotten connection should start with a fresh budget")
	}
}
