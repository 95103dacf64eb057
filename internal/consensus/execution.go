// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

package consensus

import (
	"context"
	"time"

	"succinctattestation/internal/eventbus"
	"succinctattestation/internal/message"
	"succinctattestation/internal/msgregistry"
)

// pollInterval bounds how often ExecutionCtx checks the inbound queue
// between messages, trading a little latency for not needing a select
// over InboundQueue's condition-variable Pop.
const pollInterval = 5 * time.Millisecond

// ExecutionCtx drives one step to completion: pump the round's inbound
// queue, route each message to the active step handler (current
// iteration), to CollectFromPast (earlier iteration), or back onto the
// queue (future iteration), short-circuit on a stray Quorum message, and
// enforce the step deadline (§4.3 step 3-5).
type ExecutionCtx struct {
	Queue      *eventbus.InboundQueue
	Bus        *eventbus.Bus
	Handler    Handler
	RU         RoundUpdate
	RC         *RoundCommittees
	Iter       uint8
	Timeout    time.Duration
	FutureMsgs *msgregistry.Registry
}

// Run blocks until the step produces an outcome, its deadline elapses,
// or ctx is canceled.
func (e *ExecutionCtx) Run(ctx context.Context) (StepOutcome, error) {
	timer := time.NewTimer(e.Timeout)
	defer timer.Stop()

	poll := time.NewTicker(pollInterval)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return StepOutcome{}, ctx.Err()

		case <-timer.C:
			if req := e.Handler.HandleTimeout(e.RU, e.Iter); req != nil {
				e.Bus.Publish(*req)
			}

			return PendingOutcome(), nil

		case <-poll.C:
			msg, ok := e.Queue.TryPop()
			if !ok {
				continue
			}

			outcome, handled := e.route(msg)
			if !handled {
				continue
			}

			if outcome.Kind != Pending {
				return outcome, nil
			}
		}
	}
}

// route dispatches msg and reports whether it produced a definite
// outcome worth surfacing to the caller.
func (e *ExecutionCtx) route(msg message.Message) (StepOutcome, bool) {
	// A Quorum message always ends the current step immediately,
	// regardless of which iteration is active locally: the round is
	// over and the loop must move on (§4.4).
	if msg.Topic == message.TopicQuorum {
		return ReadyOutcome(msg), true
	}

	switch {
	case msg.Header.Round > e.RU.Round:
		// Belongs to a round we haven't reached yet; stash it in the
		// message registry rather than spinning it back through this
		// round's queue (§4.2 "Message registry").
		if e.FutureMsgs != nil {
			e.FutureMsgs.Put(msg.Header.Round, msg.Header.Iteration, msg)
		}

		return StepOutcome{}, false

	case msg.Header.Round < e.RU.Round:
		// Stale: the round it targeted is already decided.
		return StepOutcome{}, false

	case msg.Header.Iteration == e.Iter:
		outcome, err := e.Handler.Collect(msg, e.RU, e.RC)
		if err != nil {
			return FailOutcome(err), true
		}

		return outcome, true

	case msg.Header.Iteration < e.Iter:
		outcome, err := e.Handler.CollectFromPast(msg, e.RC)
		if err != nil {
			return FailOutcome(err), true
		}

		return outcome, outcome.Kind != Pending

	default:
		// Future-iteration message: not ours to handle yet, put it
		// back for the iteration that will eventually reach it.
		e.Queue.Push(msg)

		return StepOutcome{}, false
	}
}
