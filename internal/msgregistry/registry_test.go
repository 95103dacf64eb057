package msgregistry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"succinctattestation/internal/message"
)

func TestPutAndTake(t *testing.T) {
	r := New()
	msg := message.Message{Topic: message.TopicCandidate}

	r.Put(5, 2, msg)
	r.Put(5, 2, msg)
	r.Put(5, 3, msg)

	require.Equal(t, 3, r.Len())

	got := r.Take(5, 2)
	assert.Len(t, got, 2)
	assert.Equal(t, 1, r.Len())

	assert.Empty(t, r.Take(5, 2))
}

func TestRemoveRoundEvictsEverythingForThatRound(t *testing.T) {
	r := New()
	msg := message.Message{Topic: message.TopicCandidate}

	r.Put(5, 0, msg)
	r.Put(5, 1, msg)
	r.Put(6, 0, msg)

	r.RemoveRound(5)

	assert.Equal(t, 1, r.Len())
	assert.Empty(t, r.Take(5, 0))
	assert.Len(t, r.Take(6, 0), 1)
}

func TestTakeOnUnknownRoundIsNil(t *testing.T) {
	r := New()
	assert.Nil(t, r.Take(99, 0))
}
