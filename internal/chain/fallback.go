// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

package chain

import (
	"github.com/pkg/errors"

	"succinctattestation/internal/block"
)

// fallback replaces the current tip with remote, a sibling at the same
// height but a lower iteration (§4.6 "Fallback"). It reverts to the
// retained previous tip, blacklists the old tip's hash so it cannot be
// re-accepted by a stale retransmission, then accepts remote.
func (f *FSM) fallback(remote *block.Block) error {
	tip := f.acceptor.Tip()

	prevTip, ok := f.acceptor.PrevTip()
	if !ok {
		return errors.New("chain: no retained previous tip to fall back to")
	}

	if err := f.acceptor.TryRevert(prevTip); err != nil {
		chainLog.WithError(err).Warn("fallback revert failed")
		return err
	}

	f.blacklist.Add(tip.Hash)

	if err := f.acceptor.TryAcceptBlock(remote); err != nil {
		chainLog.WithError(err).Error("fallback re-accept failed after revert")
		return err
	}

	f.metrics.IncFallbackCount()

	chainLog.WithFields(map[string]interface{}{
		"height":   tip.Height,
		"old_hash": tip.Hash,
		"new_hash": remote.Header.Hash,
	}).Info("entering fallback")

	return nil
}
