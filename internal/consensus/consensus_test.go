package consensus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"succinctattestation/internal/attestation"
	"succinctattestation/internal/block"
	"succinctattestation/internal/config"
	"succinctattestation/internal/eventbus"
	"succinctattestation/internal/key"
	"succinctattestation/internal/message"
	"succinctattestation/internal/provisioner"
)

func fixtureProvisioners(t *testing.T) (*provisioner.Set, *key.EdSigner) {
	t.Helper()

	signer := key.NewEdSigner([]byte("loop-fixture-seed"))
	p := provisioner.New()
	p.Add(signer.PubKeyBytes(), provisioner.Stake{Amount: 100, StartHeight: 0, EndHeight: 1000})

	return p, signer
}

func TestRoundCommitteesIsCachedAndDeterministic(t *testing.T) {
	p, signer := fixtureProvisioners(t)
	rc := NewRoundCommittees(1, []byte("seed"), p)

	c1 := rc.Committee(0, StepValidationName)
	c2 := rc.Committee(0, StepValidationName)
	assert.Same(t, c1, c2, "same iteration/step must hit the cache")

	assert.True(t, c1.IsMember(signer.PubKeyBytes()))
	assert.Equal(t, signer.PubKeyBytes(), rc.Generator(0))
}

func TestProposalHandlerVerifyRejectsWrongGenerator(t *testing.T) {
	p, _ := fixtureProvisioners(t)
	rc := NewRoundCommittees(1, []byte("seed"), p)

	other := key.NewEdSigner([]byte("someone-else"))
	h := NewProposalHandler(key.EdVerifier{})

	blk := &block.Block{Header: block.Header{Height: 1}}
	blk.Header.Hash = block.MerkleRoot([][32]byte{{1}})

	msg := message.Message{
		Topic:     message.TopicCandidate,
		Header:    message.Header{Round: 1, Iteration: 0, PubKeyBLS: other.PubKeyBytes(), BlockHash: blk.Header.Hash},
		Candidate: blk,
	}

	err := h.Verify(msg, rc)
	assert.ErrorIs(t, err, ErrNotCommitteeMember)
}

func TestProposalHandlerHandleTimeoutOnlyInEmergency(t *testing.T) {
	h := NewProposalHandler(key.EdVerifier{})

	assert.Nil(t, h.HandleTimeout(RoundUpdate{}, config.RelaxIterationThreshold-1))
	assert.NotNil(t, h.HandleTimeout(RoundUpdate{}, config.RelaxIterationThreshold))
}

func TestValidationHandlerReachesQuorumWithSingleMemberCommittee(t *testing.T) {
	p, signer := fixtureProvisioners(t)
	rc := NewRoundCommittees(1, []byte("seed"), p)
	registry := attestation.New(1)
	h := NewValidationHandler(registry, key.EdVerifier{})
	h.Reinitialize(message.Message{}, 1, 0)

	hash := [32]byte{9}
	vote := message.Vote{Kind: message.VoteValid, BlockHash: hash}
	hdr := message.Header{Round: 1, Iteration: 0, Step: uint8(StepValidationName), PubKeyBLS: signer.PubKeyBytes(), BlockHash: hash}
	sig, err := signer.Sign(hdr.SignableBytes(vote))
	require.NoError(t, err)

	msg := message.Message{Topic: message.TopicValidation, Header: hdr, Vote: vote, Signature: sig}

	outcome, err := h.Collect(msg, RoundUpdate{}, rc)
	require.NoError(t, err)
	require.Equal(t, Ready, outcome.Kind)
	assert.Equal(t, message.TopicRatification, outcome.Outbound.Topic)
}

func TestRatificationHandlerEmitsQuorumOnFailureVoteToo(t *testing.T) {
	p, signer := fixtureProvisioners(t)
	rc := NewRoundCommittees(1, []byte("seed"), p)
	registry := attestation.New(1)
	h := NewRatificationHandler(registry, key.EdVerifier{})
	h.Reinitialize(message.Message{}, 1, 0)

	vote := message.Vote{Kind: message.VoteNoQuorum}
	hdr := message.Header{Round: 1, Iteration: 0, Step: uint8(StepRatificationName), PubKeyBLS: signer.PubKeyBytes()}
	sig, err := signer.Sign(hdr.SignableBytes(vote))
	require.NoError(t, err)

	msg := message.Message{Topic: message.TopicRatification, Header: hdr, Vote: vote, Signature: sig}

	outcome, err := h.Collect(msg, RoundUpdate{}, rc)
	require.NoError(t, err)
	require.Equal(t, Ready, outcome.Kind)
	require.NotNil(t, outcome.Outbound.Quorum)
	assert.False(t, outcome.Outbound.Quorum.Result.IsSuccess())
	assert.Equal(t, message.RatificationNoQuorum, outcome.Outbound.Quorum.Result.Kind)
}

func TestSpinDelayNoopWhenUnset(t *testing.T) {
	t.Setenv("RUSK_CONSENSUS_SPIN_TIME", "")

	called := false
	SpinDelay(func(time.Duration) { called = true })

	assert.False(t, called)
}

func TestLoopSpinStashesFutureRoundMessageInRegistry(t *testing.T) {
	p, signer := fixtureProvisioners(t)
	keys := key.Keys{BLSPubKey: signer.PubKeyBytes(), Signer: signer}

	bus := eventbus.New()

	var currentRound uint64 = 1
	queue := eventbus.NewInboundQueue(16, func() uint64 { return currentRound })

	loop := NewLoop(p, nil, keys, key.EdVerifier{}, bus, queue)

	future := message.Message{Topic: message.TopicValidation, Header: message.Header{Round: 2, Iteration: 0}}
	queue.Push(future)

	blk := &block.Block{Header: block.Header{Height: 1}}
	blk.Header.Hash = block.MerkleRoot([][32]byte{{3}})

	hdr := message.Header{Round: 1, Iteration: 0, PubKeyBLS: signer.PubKeyBytes(), BlockHash: blk.Header.Hash}
	sig, err := signer.Sign(blk.Header.Hash[:])
	require.NoError(t, err)

	queue.Push(message.Message{Topic: message.TopicCandidate, Header: hdr, Candidate: blk, Signature: sig})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err = loop.Spin(ctx, 1, [32]byte{}, []byte("seed"))
	require.NoError(t, err)

	assert.Equal(t, 1, loop.FutureMsgs.Len(), "the round-2 message must be stashed, not lost or dispatched into round 1")
	assert.Len(t, loop.FutureMsgs.Take(2, 0), 1)
}

func TestLoopSpinReachesQuorumWithSingleProvisioner(t *testing.T) {
	p, signer := fixtureProvisioners(t)
	keys := key.Keys{BLSPubKey: signer.PubKeyBytes(), Signer: signer}

	bus := eventbus.New()

	var currentRound uint64 = 1
	queue := eventbus.NewInboundQueue(16, func() uint64 { return currentRound })

	loop := NewLoop(p, nil, keys, key.EdVerifier{}, bus, queue)

	blk := &block.Block{Header: block.Header{Height: 1}}
	blk.Header.Hash = block.MerkleRoot([][32]byte{{7}})

	hdr := message.Header{Round: 1, Iteration: 0, PubKeyBLS: signer.PubKeyBytes(), BlockHash: blk.Header.Hash}
	sig, err := signer.Sign(blk.Header.Hash[:])
	require.NoError(t, err)

	queue.Push(message.Message{Topic: message.TopicCandidate, Header: hdr, Candidate: blk, Signature: sig})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	result, err := loop.Spin(ctx, 1, [32]byte{}, []byte("seed"))
	require.NoError(t, err)
	require.NotNil(t, result.Quorum)
	assert.True(t, result.Quorum.Result.IsSuccess())
	assert.Equal(t, blk.Header.Hash, result.Quorum.Result.BlockHash)
}
