package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"succinctattestation/internal/message"
)

func TestPublishFansOutToAllSubscribers(t *testing.T) {
	b := New()

	var got1, got2 message.Message
	b.Subscribe(message.TopicQuorum, ListenerFunc(func(m message.Message) { got1 = m }))
	b.Subscribe(message.TopicQuorum, ListenerFunc(func(m message.Message) { got2 = m }))

	msg := message.Message{Topic: message.TopicQuorum, Header: message.Header{Round: 5}}
	b.Publish(msg)

	assert.Equal(t, uint64(5), got1.Header.Round)
	assert.Equal(t, uint64(5), got2.Header.Round)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()

	count := 0
	id := b.Subscribe(message.TopicBlock, ListenerFunc(func(message.Message) { count++ }))
	b.Unsubscribe(message.TopicBlock, id)

	b.Publish(message.Message{Topic: message.TopicBlock})
	assert.Equal(t, 0, count)
}

func TestInboundQueuePushPop(t *testing.T) {
	q := NewInboundQueue(2, func() uint64 { return 10 })

	q.Push(message.Message{Header: message.Header{Round: 10}})
	q.Push(message.Message{Header: message.Header{Round: 10}})

	msg, ok := q.TryPop()
	require.True(t, ok)
	assert.Equal(t, uint64(10), msg.Header.Round)
	assert.Equal(t, 1, q.Len())
}

func TestInboundQueueFutureRoundPreemptsOldEntries(t *testing.T) {
	q := NewInboundQueue(1, func() uint64 { return 10 })

	q.Push(message.Message{Header: message.Header{Round: 10}})
	q.Push(message.Message{Header: message.Header{Round: 11}})

	msg, ok := q.TryPop()
	require.True(t, ok)
	assert.Equal(t, uint64(11), msg.Header.Round, "future-round message should have preempted the current-round one")
	assert.Equal(t, 0, q.Len())
}

func TestInboundQueueCloseUnblocksPop(t *testing.T) {
	q := NewInboundQueue(4, func() uint64 { return 0 })

	done := make(chan struct{})

	go func() {
		_, ok := q.Pop()
		assert.False(t, ok)
		close(done)
	}()

	q.Close()
	<-done
}
