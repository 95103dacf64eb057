package chain

import (
	"net"
	"sync"

	"succinctattestation/internal/block"
	"succinctattestation/internal/message"
	"succinctattestation/internal/network"
)

type fakeOps struct{}

func (fakeOps) VerifyStateTransition(_ [32]byte, candidate *block.Block) ([32]byte, error) {
	return candidate.Header.StateRoot, nil
}

func (fakeOps) ExecuteStateTransition(_ [32]byte, candidate *block.Block, _ uint64) ([32]byte, uint64, []block.Fault, error) {
	return candidate.Header.StateRoot, 0, nil, nil
}

func (fakeOps) VerifyFaults(_ []block.Fault, _ uint64) error { return nil }

type stubAddr string

func (s stubAddr) Network() string { return "tcp" }
func (s stubAddr) String() string  { return string(s) }

type fakeNetwork struct {
	mu           sync.Mutex
	sentToPeer   []message.Message
	floodReqs    []network.Inventory
	broadcasts   []message.Message
}

func (f *fakeNetwork) Broadcast(msg message.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.broadcasts = append(f.broadcasts, msg)

	return nil
}

func (f *fakeNetwork) SendToPeer(msg message.Message, _ net.Addr) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sentToPeer = append(f.sentToPeer, msg)

	return nil
}

func (f *fakeNetwork) FloodRequest(inv network.Inventory, _ net.Addr, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.floodReqs = append(f.floodReqs, inv)

	return nil
}

func (f *fakeNetwork) PublicAddr() net.Addr { return stubAddr("local:0") }
