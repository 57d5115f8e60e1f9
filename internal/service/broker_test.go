package service_test

import (
	"testing"
	"time"

	"github.com/msomdec/realty/internal/domain"
	"github.com/msomdec/realty/internal/service"
)

func TestBroker_DeliversToSubscribers(t *testing.T) {
	b := service.NewBroker()
	ch1, cancel1 := b.Subscribe()
	defer cancel1()
	ch2, cancel2 := b.Subscribe()
	defer cancel2()

	b.Publish(service.ListingEvent{Kind: "created", Listing: domain.Listing{ID: 5}})

	for i, ch := range []<-chan service.ListingEvent{ch1, ch2} {
		select {
		case ev := <-ch:
			if ev.Kind != "created" || ev.Listing.ID != 5 {
				t.Fatalf("subscriber %d: unexpected event %+v", i, ev)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d: no event", i)
		}
	}
}

func TestBroker_UnsubscribeStopsDelivery(t *testing.T) {
	b := service.NewBroker()
	ch, cancel := b.Subscribe()
	if b.Subscribers() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", b.Subscribers())
	}

	cancel()
	cancel()
	if b.Subscribers() != 0 {
		t.Fatalf("expected 0 subscribers, got %d", b.Subscribers())
	}

	b.Publish(service.ListingEvent{Kind: "deleted"})
	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel after unsubscribe")
	}
}

func TestBroker_SlowSubscriberDoesNotBlock(t *testing.T) {
	b := service.NewBroker()
	_, cancel := b.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Publish(service.ListingEvent{Kind: "updated"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
}
