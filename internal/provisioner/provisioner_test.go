package provisioner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddAndSortedOrder(t *testing.T) {
	p := New()
	p.Add([]byte("cccc"), Stake{Amount: 10, StartHeight: 0, EndHeight: 100})
	p.Add([]byte("aaaa"), Stake{Amount: 20, StartHeight: 0, EndHeight: 100})
	p.Add([]byte("bbbb"), Stake{Amount: 30, StartHeight: 0, EndHeight: 100})

	require.Equal(t, 3, p.Len())

	m0, err := p.MemberAt(0)
	require.NoError(t, err)
	assert.Equal(t, []byte("aaaa"), m0.PublicKeyBLS)

	m2, err := p.MemberAt(2)
	require.NoError(t, err)
	assert.Equal(t, []byte("cccc"), m2.PublicKeyBLS)
}

func TestTotalWeightAtRespectsEligibilityRange(t *testing.T) {
	p := New()
	p.Add([]byte("aaaa"), Stake{Amount: 100, StartHeight: 0, EndHeight: 9})
	p.Add([]byte("bbbb"), Stake{Amount: 50, StartHeight: 10, EndHeight: 20})

	assert.Equal(t, uint64(100), p.TotalWeightAt(5))
	assert.Equal(t, uint64(50), p.TotalWeightAt(15))
	assert.Equal(t, uint64(0), p.TotalWeightAt(30))
}

func TestAddAppendsStakeForExistingMember(t *testing.T) {
	p := New()
	p.Add([]byte("aaaa"), Stake{Amount: 10, StartHeight: 0, EndHeight: 100})
	p.Add([]byte("aaaa"), Stake{Amount: 5, StartHeight: 0, EndHeight: 100})

	require.Equal(t, 1, p.Len())
	m := p.GetMember([]byte("aaaa"))
	require.NotNil(t, m)
	assert.Len(t, m.Stakes, 2)
	assert.Equal(t, uint64(15), m.TotalStakeAt(0))
}

func TestMemberAtOutOfBounds(t *testing.T) {
	p := New()
	_, err := p.MemberAt(0)
	assert.Error(t, err)
}

func TestSubsetSizeAt(t *testing.T) {
	p := New()
	p.Add([]byte("aaaa"), Stake{Amount: 10, StartHeight: 0, EndHeight: 5})
	p.Add([]byte("bbbb"), Stake{Amount: 10, StartHeight: 0, EndHeight: 100})

	assert.Equal(t, 2, p.SubsetSizeAt(3))
	assert.Equal(t, 1, p.SubsetSizeAt(10))
}
