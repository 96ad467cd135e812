package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/olzhas-a/dispatch-core/internal/domain/models"
	"github.com/olzhas-a/dispatch-core/pkg/logger"
	"github.com/olzhas-a/dispatch-core/pkg/uuid"
)

func testEvent() models.StatusChangedEvent {
	return models.StatusChangedEvent{
		RequestID: uuid.New(),
		OwnerID:   uuid.New(),
		At:        time.Now(),
	}
}

func TestBus_DeliversToAllSubscribers(t *testing.T) {
	bus := NewBus(logger.InitLogger("bus-test", logger.LevelError))

	var wg sync.WaitGroup
	wg.Add(2)
	var mu sync.Mutex
	got := 0

	h := func(ctx context.Context, e models.Event) error {
		mu.Lock()
		got++
		mu.Unlock()
		wg.Done()
		return nil
	}
	bus.Subscribe(models.StatusChangedEvent{}.EventType(), h)
	bus.Subscribe(models.StatusChangedEvent{}.EventType(), h)

	bus.Publish(context.Background(), testEvent())

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handlers were not invoked")
	}

	mu.Lock()
	defer mu.Unlock()
	if got != 2 {
		t.Fatalf("expected 2 deliveries, got %d", got)
	}
}

func TestBus_FailingHandlerDoesNotBlockOthers(t *testing.T) {
	bus := NewBus(logger.InitLogger("bus-test", logger.LevelError))

	delivered := make(chan struct{})
	bus.Subscribe(models.StatusChangedEvent{}.EventType(), func(ctx context.Context, e models.Event) error {
		panic("boom")
	})
	bus.Subscribe(models.StatusChangedEvent{}.EventType(), func(ctx context.Context, e models.Event) error {
		close(delivered)
		return errors.New("logged, not propagated")
	})

	bus.Publish(context.Background(), testEvent())

	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("second handler was not invoked")
	}
}

func TestBus_PublishWithoutSubscribersIsNoop(t *testing.T) {
	bus := NewBus(logger.InitLogger("bus-test", logger.LevelError))
	bus.Publish(context.Background(), testEvent())
}

func TestBus_PublishSurvivesCancelledContext(t *testing.T) {
	bus := NewBus(logger.InitLogger("bus-test", logger.LevelError))

	delivered := make(chan struct{})
	bus.Subscribe(models.StatusChangedEvent{}.EventType(), func(ctx context.Context, e models.Event) error {
		if err := ctx.Err(); err != nil {
			t.Errorf("handler context should not inherit cancellation: %v", err)
		}
		close(delivered)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bus.Publish(ctx, testEvent())

	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not invoked")
	}
}
