// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.

// Package eventbus decouples chain state changes from the P2P
// broadcaster: the node orchestrator's mining loop publishes a Block
// event after appending a block it sealed, and the orchestrator's P2P
// subscriber floods it without the chain package importing p2p.
// Mempool admissions publish no event.
package eventbus

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// Topic names the kind of event published.
type Topic string

const (
	// TopicBlockAccepted is published by the node's mining loop after
	// chain.Store.AppendBlock accepts a block it sealed. Blocks appended
	// from peers are not published here.
	TopicBlockAccepted Topic = "block.accepted"
	// TopicTransactionAdmitted names a mempool-admission event; no
	// component in this module publishes it.
	TopicTransactionAdmitted Topic = "transaction.admitted"
)

// Listener receives a published event's payload.
type Listener func(payload interface{})

// Bus is a shared, mutation-serialized topic-keyed listener registry.
type Bus struct {
	mu        sync.RWMutex
	listeners map[Topic]map[uint32]Listener
	nextID    uint32
}

// New constructs an empty Bus.
func New() *Bus {
	return &Bus{listeners: make(map[Topic]map[uint32]Listener)}
}

// Subscribe registers listener on topic, returning an id for Unsubscribe.
func (b *Bus) Subscribe(topic Topic, listener Listener) uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.listeners[topic] == nil {
		b.listeners[topic] = make(map[uint32]Listener)
	}
	b.nextID++
	id := b.nextID
	b.listeners[topic][id] = listener
	return id
}

// Unsubscribe removes the listener registered under id for topic.
func (b *Bus) Unsubscribe(topic Topic, id uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()

	found := false
	if set, ok := b.listeners[topic]; ok {
		if _, ok := set[id]; ok {
			delete(set, id)
			found = true
		}
	}
	log.WithField("topic", topic).WithField("found", found).Trace("eventbus: unsubscribing")
}

// Publish delivers payload to every listener on topic, synchronously
// and in registration order is not guaranteed (map iteration).
func (b *Bus) Publish(topic Topic, payload interface{}) {
	b.mu.RLock()
	listeners := make([]Listener, 0, len(b.listeners[topic]))
	for _, l := range b.listeners[topic] {
		listeners = append(listeners, l)
	}
	b.mu.RUnlock()

	for _, l := range listeners {
		l(payload)
	}
}
