// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

// Package eventbus implements the message queues of §6.4/§5: a bounded,
// round-aware inbound queue feeding the execution context, and a
// multi-consumer outbound fan-out for gossip and local listeners.
// Adapted from the teacher's util/nativeutils/eventbus.Subscriber
// (topic-keyed Subscribe/Unsubscribe over a Listener) — same shape,
// generalized to this package's message.Topic and with the bounded,
// priority-aware inbound queue the teacher's event bus never needed.
package eventbus

import (
	"sync"

	"succinctattestation/internal/message"
)

// Listener receives messages published on a subscribed topic.
type Listener interface {
	Notify(message.Message)
}

// ListenerFunc adapts a plain function to a Listener.
type ListenerFunc func(message.Message)

// Notify implements Listener.
func (f ListenerFunc) Notify(m message.Message) { f(m) }

// Bus is the outbound fan-out: single-producer, multi-consumer.
// Gossip (the Network collaborator) and any local listeners all
// subscribe the same way.
type Bus struct {
	mu        sync.RWMutex
	listeners map[message.Topic]map[uint32]Listener
	nextID    uint32
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{listeners: make(map[message.Topic]map[uint32]Listener)}
}

// Subscribe registers listener for topic, returning an id for later
// Unsubscribe.
func (b *Bus) Subscribe(topic message.Topic, listener Listener) uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID

	if b.listeners[topic] == nil {
		b.listeners[topic] = make(map[uint32]Listener)
	}

	b.listeners[topic][id] = listener

	return id
}

// Unsubscribe removes a previously registered listener.
func (b *Bus) Unsubscribe(topic message.Topic, id uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.listeners[topic], id)
}

// Publish fans msg out to every listener subscribed to its topic. Best
// effort: the core treats the network/gossip path as unreliable (§6.3).
func (b *Bus) Publish(msg message.Message) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, l := range b.listeners[msg.Topic] {
		l.Notify(msg)
	}
}

// InboundQueue is the bounded, round-aware queue an ExecutionCtx pumps
// (§4.3 step 3, §5 Back-pressure). When full, it drops the oldest
// message whose round is not ahead of currentRound(); a message for a
// future round always gets room, preempting older, now-irrelevant
// entries for the present round.
type InboundQueue struct {
	mu           sync.Mutex
	notEmpty     *sync.Cond
	items        []message.Message
	capacity     int
	currentRound func() uint64
	closed       bool
}

// NewInboundQueue returns a queue bounded at capacity. currentRound
// reports the consensus loop's present round, used for the
// future-round-preempts-low-priority back-pressure rule.
func NewInboundQueue(capacity int, currentRound func() uint64) *InboundQueue {
	q := &InboundQueue{capacity: capacity, currentRound: currentRound}
	q.notEmpty = sync.NewCond(&q.mu)

	return q
}

// Push enqueues msg, applying back-pressure if the queue is full.
func (q *InboundQueue) Push(msg message.Message) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	if len(q.items) >= q.capacity {
		q.evictOneLocked(msg)
	}

	q.items = append(q.items, msg)
	q.notEmpty.Signal()
}

// evictOneLocked drops the oldest message whose round is not ahead of
// the current round, making room for incoming (future-round messages
// preempt, §5). If every queued message is already future-round, the
// oldest of those is dropped instead (last resort).
func (q *InboundQueue) evictOneLocked(incoming message.Message) {
	cur := q.currentRound()

	for i, m := range q.items {
		if m.Header.Round <= cur {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return
		}
	}

	if len(q.items) > 0 {
		q.items = q.items[1:]
	}
}

// Pop blocks until a message is available or the queue is closed, in
// which case ok is false.
func (q *InboundQueue) Pop() (msg message.Message, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.notEmpty.Wait()
	}

	if len(q.items) == 0 {
		return message.Message{}, false
	}

	msg = q.items[0]
	q.items = q.items[1:]

	return msg, true
}

// TryPop returns immediately with ok=false if nothing is queued.
func (q *InboundQueue) TryPop() (msg message.Message, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return message.Message{}, false
	}

	msg = q.items[0]
	q.items = q.items[1:]

	return msg, true
}

// Close unblocks any waiting Pop, used on cancellation.
func (q *InboundQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.notEmpty.Broadcast()
}

// Len reports the number of queued messages.
func (q *InboundQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}
