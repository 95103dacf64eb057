// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

package consensus

import (
	"os"
	"strconv"
	"time"
)

// spinEnvVar configures a startup delay before the first round spins,
// giving a devnet's other nodes and seed data time to come up together.
// Grounded on the RUSK_CONSENSUS_SPIN_TIME handling in
// original_source/consensus/src/consensus.rs.
const spinEnvVar = "RUSK_CONSENSUS_SPIN_TIME"

// spinCheckpoints are the remaining-time thresholds the wait logs at,
// matching the cadence original_source's bootstrap watches for.
var spinCheckpoints = []time.Duration{
	15 * time.Minute,
	10 * time.Minute,
	5 * time.Minute,
	30 * time.Second,
	1 * time.Second,
}

// SpinDelay blocks until the UNIX time (in seconds) named by
// RUSK_CONSENSUS_SPIN_TIME, logging progress at each checkpoint it
// crosses. An unset, empty, or unparseable value, or a time that is not
// in the future, is a no-op: the same bypass original_source takes in
// tests, which always run with the variable unset. sleep defaults to
// time.Sleep; tests inject a stub to avoid real waits.
func SpinDelay(sleep func(time.Duration)) {
	if sleep == nil {
		sleep = time.Sleep
	}

	raw := os.Getenv(spinEnvVar)
	if raw == "" {
		return
	}

	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return
	}

	remaining := time.Until(time.Unix(secs, 0))
	if remaining <= 0 {
		return
	}

	for _, cp := range spinCheckpoints {
		if remaining <= cp {
			continue
		}

		sleep(remaining - cp)
		loopLog.Infof("consensus spin: %s remaining", cp)
		remaining = cp
	}

	sleep(remaining)
}
