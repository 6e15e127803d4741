package eventing

import (
	"context"
	"errors"
	"testing"
)

type thingHappened struct {
	ID int
}

func TestPublishDeliversToSubscribers(t *testing.T) {
	bus := NewInMemoryBus()
	var seen []int
	bus.Subscribe(TypeOf[thingHappened](), func(ctx context.Context, event any) error {
		seen = append(seen, event.(thingHappened).ID)
		return nil
	})
	bus.Subscribe(TypeOf[thingHappened](), func(ctx context.Context, event any) error {
		seen = append(seen, event.(thingHappened).ID*10)
		return nil
	})

	if err := bus.Publish(context.Background(), thingHappened{ID: 7}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(seen) != 2 || seen[0] != 7 || seen[1] != 70 {
		t.Fatalf("unexpected deliveries %v", seen)
	}
}

func TestPublishWithoutSubscribersIsNoOp(t *testing.T) {
	bus := NewInMemoryBus()
	if err := bus.Publish(context.Background(), thingHappened{}); err != nil {
		t.Fatalf("publish: %v", err)
	}
}

func TestPublishNilEvent(t *testing.T) {
	bus := NewInMemoryBus()
	if err := bus.Publish(context.Background(), nil); !errors.Is(err, ErrNilEvent) {
		t.Fatalf("expected ErrNilEvent, got %v", err)
	}
}

func TestPublishReturnsFirstHandlerError(t *testing.T) {
	bus := NewInMemoryBus()
	first := errors.New("first")
	var secondRan bool
	bus.Subscribe(TypeOf[thingHappened](), func(ctx context.Context, event any) error {
		return first
	})
	bus.Subscribe(TypeOf[thingHappened](), func(ctx context.Context, event any) error {
		secondRan = true
		return errors.New("second")
	})

	err := bus.Publish(context.Background(), thingHappened{})
	if !errors.Is(err, first) {
		t.Fatalf("expected first error, got %v", err)
	}
	if !secondRan {
		t.Fatal("second handler should still run")
	}
}

func TestTypeNameUnwrapsPointers(t *testing.T) {
	value := TypeName(thingHappened{})
	pointer := TypeName(&thingHappened{})
	if value == "" || value != pointer {
		t.Fatalf("value %q, pointer %q", value, pointer)
	}
	if TypeOf[thingHappened]() != value {
		t.Fatalf("TypeOf mismatch: %q vs %q", TypeOf[thingHappened](), value)
	}
}
