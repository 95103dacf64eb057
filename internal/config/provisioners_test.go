package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadProvisionersParsesYAMLFixture(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "provisioners.yaml")

	const doc = `
- pubkey_bls: "aabbcc"
  amount: 1000
  start_height: 0
  end_height: 0
- pubkey_bls: "112233"
  amount: 500
  start_height: 10
  end_height: 100
`

	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	set, err := LoadProvisioners(path)
	require.NoError(t, err)
	require.Equal(t, 2, set.Len())

	m := set.GetMember([]byte{0xaa, 0xbb, 0xcc})
	require.NotNil(t, m)
	assert.Equal(t, uint64(1000), m.TotalStakeAt(5))

	m2 := set.GetMember([]byte{0x11, 0x22, 0x33})
	require.NotNil(t, m2)
	assert.Equal(t, uint64(0), m2.TotalStakeAt(5), "stake not yet active before its start height")
	assert.Equal(t, uint64(500), m2.TotalStakeAt(50))
}

func TestLoadProvisionersRejectsBadHex(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "provisioners.yaml")

	require.NoError(t, os.WriteFile(path, []byte(`- pubkey_bls: "zz"
  amount: 1
`), 0o644))

	_, err := LoadProvisioners(path)
	assert.Error(t, err)
}
