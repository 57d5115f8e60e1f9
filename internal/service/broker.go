package service

import (
	"sync"

	"github.com/msomdec/realty/internal/domain"
)

// ListingEvent describes a change to a listing.
type ListingEvent struct {
	Kind    string // "created", "updated" or "deleted"
	Listing domain.Listing
}

// Broker fans listing changes out to live subscribers.
type Broker struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan ListingEvent
}

// NewBroker creates an empty Broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[int]chan ListingEvent)}
}

// Subscribe registers a subscriber. The returned function removes it and
// closes the channel; it is safe to call more than once.
func (b *Broker) Subscribe() (<-chan ListingEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan ListingEvent, 8)
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
			close(ch)
		})
	}
}

// Publish delivers ev to every subscriber without blocking. A subscriber
// whose buffer is full misses the event.
func (b *Broker) Publish(ev ListingEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribers returns the number of active subscribers.
func (b *Broker) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
