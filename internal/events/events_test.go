package events

import (
	"context"
	"testing"
	"time"

	"tokokas/backend/internal/domain"
	"tokokas/backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Env: "development", Level: "error"})
}

func TestPublishDoesNotWaitOnSubscribers(t *testing.T) {
	bus := NewBus(testLogger())

	release := make(chan struct{})
	delivered := make(chan domain.SaleCompleted, 1)
	bus.Subscribe(func(event domain.SaleCompleted) {
		<-release
		delivered <- event
	})

	returned := make(chan struct{})
	go func() {
		bus.Publish(context.Background(), domain.SaleCompleted{TransactionID: "tx-slow"})
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatalf("Publish must return while a subscriber is still busy")
	}

	close(release)
	select {
	case event := <-delivered:
		if event.TransactionID != "tx-slow" {
			t.Fatalf("unexpected event %+v", event)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("subscriber never received the event")
	}
}

func TestSubscribersRunInSubscriptionOrder(t *testing.T) {
	bus := NewBus(testLogger())

	order := make(chan int, 2)
	bus.Subscribe(func(domain.SaleCompleted) { order <- 1 })
	bus.Subscribe(func(domain.SaleCompleted) { order <- 2 })

	bus.Publish(context.Background(), domain.SaleCompleted{TransactionID: "tx-order"})

	for want := 1; want <= 2; want++ {
		select {
		case got := <-order:
			if got != want {
				t.Fatalf("expected subscriber %d, got %d", want, got)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("subscriber %d never ran", want)
		}
	}
}
