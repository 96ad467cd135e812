package gateway

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/olzhas-a/dispatch-core/pkg/metrics"
	"github.com/olzhas-a/dispatch-core/pkg/uuid"
)

// Rule is one fixed-window budget. Buckets fully refill at the window
// boundary, which is slightly bursty at the edges; accepted for simplicity.
type Rule struct {
	Name   string
	Limit  int
	Window time.Duration
}

var (
	// RuleGeneric budgets ordinary client messages.
	RuleGeneric = Rule{Name: "generic", Limit: 20, Window: 10 * time.Second}
	// RuleLocation is the looser, higher-frequency budget for live tracking.
	RuleLocation = Rule{Name: "location", Limit: 60, Window: 60 * time.Second}
)

const (
	limiterShards        = 16
	defaultSweepInterval = time.Minute
)

type bucket struct {
	windowStart time.Time
	count       int
	window      time.Duration
}

type limiterShard struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

// Limiter tracks one bucket per (connection, rule). State is process-local;
// each gateway instance enforces its own budgets. Expired buckets are swept
// periodically so dead connections do not pin memory.
type Limiter struct {
	shards [limiterShards]*limiterShard
	stop   chan struct{}
	once   sync.Once
}

func NewLimiter(sweepInterval time.Duration) *Limiter {
	if sweepInterval <= 0 {
		sweepInterval = defaultSweepInterval
	}

	l := &Limiter{stop: make(chan struct{})}
	for i := range l.shards {
		l.shards[i] = &limiterShard{buckets: make(map[string]*bucket)}
	}

	go l.sweepLoop(sweepInterval)

	return l
}

// Allow consumes one action from the bucket and reports whether it fit the
// budget. The first action over the limit is rejected, e.g. the 21st message
// inside a 20/10s window.
func (l *Limiter) Allow(connID uuid.UUID, rule Rule) bool {
	key := connID.String() + "|" + rule.Name
	shard := l.shards[shardIndex(key)]

	shard.mu.Lock()
	defer shard.mu.Unlock()

	now := time.Now()
	b, ok := shard.buckets[key]
	if !ok || now.Sub(b.windowStart) >= rule.Window {
		b = &bucket{windowStart: now, window: rule.Window}
		shard.buckets[key] = b
	}

	b.count++
	if b.count > rule.Limit {
		metrics.RateLimitRejectionsTotal.WithLabelValues("dispatch", rule.Name).Inc()
		return false
	}
	return true
}

// Forget drops all buckets of a connection, called when it disconnects.
func (l *Limiter) Forget(connID uuid.UUID) {
	prefix := connID.String() + "|"
	for _, shard := range l.shards {
		shard.mu.Lock()
		for key := range shard.buckets {
			if len(key) > len(prefix) && key[:len(prefix)] == prefix {
				delete(shard.buckets, key)
			}
		}
		shard.mu.Unlock()
	}
}

func (l *Limiter) Stop() {
	l.once.Do(func() { close(l.stop) })
}

func (l *Limiter) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.sweep(time.Now())
		}
	}
}

// sweep removes buckets whose window has long passed; they hold no budget
// state anymore, only memory.
func (l *Limiter) sweep(now time.Time) {
	for _, shard := range l.shards {
		shard.mu.Lock()
		for key, b := range shard.buckets {
			if now.Sub(b.windowStart) >= 2*b.window {
				delete(shard.buckets, key)
			}
		}
		shard.mu.Unlock()
	}
}

func shardIndex(key string) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % limiterShards)
}
