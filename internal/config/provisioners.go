// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

package config

import (
	"encoding/hex"
	"os"

	"gopkg.in/yaml.v2"

	"succinctattestation/internal/provisioner"
)

// ProvisionerFixture is one entry of a devnet genesis provisioner list,
// the YAML shape a local testnet or integration test seeds its
// provisioner.Set from rather than pulling real stakes from a live chain.
type ProvisionerFixture struct {
	PubKeyBLSHex string `yaml:"pubkey_bls"`
	Amount       uint64 `yaml:"amount"`
	StartHeight  uint64 `yaml:"start_height"`
	EndHeight    uint64 `yaml:"end_height"`
}

// LoadProvisioners reads a YAML list of ProvisionerFixture entries from
// path and builds a provisioner.Set from them, for devnets and
// integration tests that need a deterministic, file-defined stake
// distribution instead of a live chain's.
func LoadProvisioners(path string) (*provisioner.Set, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var fixtures []ProvisionerFixture
	if err := yaml.Unmarshal(raw, &fixtures); err != nil {
		return nil, err
	}

	set := provisioner.New()

	for _, f := range fixtures {
		pub, err := hex.DecodeString(f.PubKeyBLSHex)
		if err != nil {
			return nil, err
		}

		end := f.EndHeight
		if end == 0 {
			end = ^uint64(0)
		}

		set.Add(pub, provisioner.Stake{Amount: f.Amount, StartHeight: f.StartHeight, EndHeight: end})
	}

	return set, nil
}
