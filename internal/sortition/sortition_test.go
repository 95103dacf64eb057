package sortition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"succinctattestation/internal/provisioner"
)

func fixtureSet() *provisioner.Set {
	p := provisioner.New()
	p.Add([]byte("provisioner-A"), provisioner.Stake{Amount: 100, StartHeight: 0, EndHeight: 1000})
	p.Add([]byte("provisioner-B"), provisioner.Stake{Amount: 200, StartHeight: 0, EndHeight: 1000})
	p.Add([]byte("provisioner-C"), provisioner.Stake{Amount: 700, StartHeight: 0, EndHeight: 1000})
	return p
}

func TestGenerateIsDeterministic(t *testing.T) {
	p := fixtureSet()
	seed := []byte("round-seed")

	a := Generate(p, seed, 10, 2, 1, 64)
	b := Generate(p, seed, 10, 2, 1, 64)

	require.Equal(t, a.Size(), b.Size())

	for _, m := range a.Members {
		assert.Equal(t, m.Occurrences, b.OccurrencesOf(m.PublicKeyBLS))
	}
}

func TestGenerateProposalCommitteeIsSingleSeat(t *testing.T) {
	p := fixtureSet()
	c := Generate(p, []byte("seed"), 1, 0, 0, 1)
	assert.Equal(t, 1, c.Size())
	assert.Len(t, c.Members, 1)
}

func TestGenerateDistinctStepsDiffer(t *testing.T) {
	p := fixtureSet()
	seed := []byte("seed")

	a := Generate(p, seed, 1, 0, 0, 64)
	b := Generate(p, seed, 1, 0, 1, 64)

	different := false

	for _, m := range a.Members {
		if m.Occurrences != b.OccurrencesOf(m.PublicKeyBLS) {
			different = true
			break
		}
	}

	assert.True(t, different, "expected proposal and validation committees to diverge")
}

func TestGenerateStakeProportionality(t *testing.T) {
	p := fixtureSet()
	totals := map[string]int{}

	const draws = 300

	for i := 0; i < draws; i++ {
		c := Generate(p, []byte("seed"), uint64(i), 0, 0, 64)
		for _, m := range c.Members {
			totals[string(m.PublicKeyBLS)] += m.Occurrences
		}
	}

	grandTotal := 0
	for _, v := range totals {
		grandTotal += v
	}

	fracC := float64(totals["provisioner-C"]) / float64(grandTotal)
	// provisioner-C holds 700/1000 = 0.7 of the stake.
	assert.InDelta(t, 0.7, fracC, 0.05)
}

func TestGenerateEmptySetYieldsEmptyCommittee(t *testing.T) {
	p := provisioner.New()
	c := Generate(p, []byte("seed"), 1, 0, 0, 64)
	assert.Equal(t, 0, c.Size())
}
