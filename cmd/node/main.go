// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

// Command node wires the Succinct Attestation consensus loop and chain
// sync FSM into a runnable process: load config, open the block store,
// build the provisioner set from genesis stakes, and drive rounds one
// after another until the process is asked to stop.
package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
	"gopkg.in/natefinch/lumberjack.v2"

	"succinctattestation/internal/attestation"
	"succinctattestation/internal/block"
	"succinctattestation/internal/chain"
	"succinctattestation/internal/config"
	"succinctattestation/internal/consensus"
	"succinctattestation/internal/database"
	"succinctattestation/internal/eventbus"
	"succinctattestation/internal/key"
	"succinctattestation/internal/message"
	"succinctattestation/internal/network"
	"succinctattestation/internal/provisioner"
)

var log = logrus.WithField("prefix", "main")

func main() {
	cfgPath := flag.String("config", "", "path to a TOML config overriding the protocol defaults")
	dbPath := flag.String("db", "chain.db", "path to the goleveldb block store")
	logPath := flag.String("log", "", "path to a rotated log file; stderr if empty")
	seedHex := flag.String("net-seed", "succinctattestation-devnet", "seed string the node's devnet signing key is derived from")
	provisionersPath := flag.String("provisioners", "", "path to a devnet provisioner YAML fixture; a single self-staked provisioner if empty")
	flag.Parse()

	setupLogging(*logPath)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}

	db, err := database.Open(*dbPath)
	if err != nil {
		log.WithError(err).Fatal("failed to open block store")
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			log.WithError(cerr).Warn("failed to close block store")
		}
	}()

	signer := key.NewEdSigner([]byte(*seedHex))
	keys := key.Keys{BLSPubKey: signer.PubKeyBytes(), Signer: signer}

	provisioners := provisioner.New()
	provisioners.Add(keys.BLSPubKey, provisioner.Stake{Amount: 1000, StartHeight: 0, EndHeight: ^uint64(0)})

	if *provisionersPath != "" {
		loaded, err := config.LoadProvisioners(*provisionersPath)
		if err != nil {
			log.WithError(err).Fatal("failed to load provisioner fixture")
		}

		provisioners = loaded
	}

	genesis := block.Header{Height: 0}

	acceptor := chain.NewAcceptor(db, nil, genesis)
	metrics := &chain.CounterMetrics{}

	gossip := &loggingNetwork{}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	restartConsensus := func() {
		log.Warn("chain FSM requested a consensus restart")
	}

	fsm := chain.NewFSM(acceptor, db, gossip, metrics, restartConsensus)
	attCache := attestation.NewCache()
	ingress := chain.NewQuorumIngress(fsm, attCache)

	bus := eventbus.New()
	queue := eventbus.NewInboundQueue(256, func() uint64 { return acceptor.Tip().Height + 1 })

	loopHandle := consensus.NewLoop(provisioners, nil, keys, key.EdVerifier{}, bus, queue)
	loopHandle.IterationDelay = time.Duration(cfg.Consensus.DelayMS) * time.Millisecond

	heartbeatInterval := time.Duration(cfg.Sync.ExpiryTimeoutMS) * time.Millisecond / 2

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-heartbeat.C:
				fsm.OnHeartbeat()
			}
		}
	}()

	log.WithField("pubkey_len", len(keys.BLSPubKey)).WithField("max_iterations", cfg.Consensus.MaxIterations).Info("starting node")

	runRounds(ctx, loopHandle, acceptor, ingress)
}

// runRounds drives successive consensus rounds, handing each winning
// quorum's block to the chain FSM through the attestation-attaching
// ingress point, and retrying a round that exhausts its iterations.
func runRounds(ctx context.Context, l *consensus.Loop, acceptor *chain.Acceptor, ingress *chain.QuorumIngress) {
	seed := []byte("genesis-seed")

	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			return
		default:
		}

		tip := acceptor.Tip()
		round := tip.Height + 1

		quorumMsg, err := l.Spin(ctx, round, tip.Hash, seed)
		if err != nil {
			if errors.Is(err, consensus.ErrRoundExhausted) {
				log.WithField("round", round).Warn("round exhausted, retrying")
				continue
			}

			if ctx.Err() != nil {
				return
			}

			log.WithError(err).WithField("round", round).Error("round failed")
			continue
		}

		if quorumMsg.Candidate == nil {
			log.WithField("round", round).Warn("quorum reached with no locally-held candidate, awaiting gossip")
			continue
		}

		quorumMsg.Candidate.Header.Attestation = quorumMsg.Quorum.Attestation
		seed = quorumMsg.Candidate.Header.Hash[:]

		if err := ingress.OnCandidate(quorumMsg.Candidate, nil); err != nil {
			log.WithError(err).WithField("round", round).Error("failed to accept winning candidate")
		}
	}
}

// loggingNetwork is a minimal Network collaborator for single-node
// devnets: there is no peer to gossip to, so every call only logs.
// Production wiring replaces this with the real gossip transport.
type loggingNetwork struct{}

func (loggingNetwork) Broadcast(msg message.Message) error {
	log.WithField("topic", msg.Topic).Debug("broadcast (no peers)")
	return nil
}

func (loggingNetwork) SendToPeer(msg message.Message, addr net.Addr) error {
	log.WithField("topic", msg.Topic).Debug("send to peer (no peers)")
	return nil
}

func (loggingNetwork) FloodRequest(inv network.Inventory, src net.Addr, hops int) error {
	log.Debug("flood request (no peers)")
	return nil
}

func (loggingNetwork) PublicAddr() net.Addr { return localAddr("127.0.0.1:0") }

type localAddr string

func (a localAddr) Network() string { return "tcp" }
func (a localAddr) String() string  { return string(a) }

func setupLogging(logPath string) {
	formatter := &prefixed.TextFormatter{FullTimestamp: true}

	var out io.Writer = os.Stderr
	if logPath != "" {
		out = &lumberjack.Logger{Filename: logPath, MaxSize: 100, MaxBackups: 5, MaxAge: 28, Compress: true}
	}

	logrus.SetFormatter(formatter)
	logrus.SetOutput(out)
	logrus.SetLevel(logrus.InfoLevel)
}

var _ network.Network = (*loggingNetwork)(nil)
