// Command shnode runs one storage provider node: it holds a forest of
// file commitments, serves chunk uploads/downloads over QUIC, and
// answers proof challenges on a tick schedule.
//
// A real deployment feeds shnode a chain.EventSource implementation that
// streams finalized blocks and their randomness beacon; wiring that
// connection is a host-chain integration concern this module declares
// out of scope (see chain.Client/chain.EventSource). Absent one, shnode
// free-runs its own tick clock off config.TickDuration and derives each
// tick's challenge seed locally, which is fine for trying a single node
// but is not a source of randomness multiple nodes could agree on.
//
// The storage-request lifecycle, transaction tracking, and forest-lock
// queueing (storagerequest, txmanager, forestlock) are driven by the
// BSP/MSP task handlers that call into this node over its RPC surface,
// not by the tick loop itself; this binary only owns what every role
// shares regardless of task: the forest, the chunk store, and proving.
package main

import (
	"context"
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/storagehub-network/sh-core/challenge"
	"github.com/storagehub-network/sh-core/config"
	"github.com/storagehub-network/sh-core/crypto"
	"github.com/storagehub-network/sh-core/forest"
	"github.com/storagehub-network/sh-core/persist"
	"github.com/storagehub-network/sh-core/storagerequest"
	"github.com/storagehub-network/sh-core/transport"
)

const (
	nodeCF       = "forest_nodes"
	ownerIndexCF = "owner_index"
	chunkStoreCF = "chunks"
)

// node bundles the components one running provider keeps alive for as
// long as the process runs.
type node struct {
	providerID string

	store     *persist.Store
	forest    *forest.Forest
	nodeStore *persist.NodeCF

	server    *transport.Server
	scheduler *challenge.Scheduler
	streams   *storagerequest.PaymentStreams
}

func main() {
	dataDir := flag.String("datadir", "./shnode-data", "directory holding the node's database")
	listenAddr := flag.String("listen", "0.0.0.0:4001", "QUIC listen address for chunk transport")
	providerID := flag.String("provider", "", "this node's provider id (required)")
	stake := flag.Uint64("stake", 0, "this provider's current stake, in the host chain's native unit")
	verbose := flag.Bool("verbose", false, "enable debug-level logging")
	flag.Parse()

	zerolog.TimeFieldFormat = time.RFC3339
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if *providerID == "" {
		log.Fatal().Msg("shnode: -provider is required")
	}

	if err := run(*dataDir, *listenAddr, *providerID, *stake); err != nil {
		log.Fatal().Err(err).Msg("shnode: exiting")
	}
}

func run(dataDir, listenAddr, providerID string, stake uint64) error {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	store, err := persist.Open(dataDir+"/shnode.db", []string{nodeCF, ownerIndexCF, chunkStoreCF}, nil)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer store.Close()

	ownerIndex := forest.NewPersistOwnerIndex(store, ownerIndexCF)
	nodeStore := persist.NewNodeCF(store, nodeCF)

	f := forest.New(ownerIndex)
	if err := f.Commit(nodeStore); err != nil {
		return fmt.Errorf("seeding forest root: %w", err)
	}

	tlsConfig, err := selfSignedTLSConfig(providerID)
	if err != nil {
		return fmt.Errorf("building transport tls config: %w", err)
	}
	chunks := newPersistChunkStore(store, chunkStoreCF)
	server := transport.NewServer(chunks, tlsConfig)

	scheduler := challenge.NewScheduler()
	scheduler.RegisterProvider(providerID, stake, f.Root(), 0)

	n := &node{
		providerID: providerID,
		store:      store,
		forest:     f,
		nodeStore:  nodeStore,
		server:     server,
		scheduler:  scheduler,
		streams:    storagerequest.NewPaymentStreams(),
	}

	log.Info().
		Str("provider", providerID).
		Str("listen", listenAddr).
		Str("datadir", dataDir).
		Uint64("stake", stake).
		Msg("shnode: starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		errc <- server.Serve(ctx, listenAddr)
	}()

	n.runTickLoop(ctx)

	if err := <-errc; err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("transport server: %w", err)
	}
	return nil
}

// runTickLoop drives every tick-scoped responsibility the node carries
// by itself: advancing the challenge schedule and charging payment
// streams. It blocks until ctx is cancelled.
func (n *node) runTickLoop(ctx context.Context) {
	ticker := time.NewTicker(config.TickDuration)
	defer ticker.Stop()

	var tick uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick++
			n.scheduler.Tick(tick, localTickSeed())

			for _, result := range n.streams.ChargeAll(tick) {
				if result.WentInsolvent {
					log.Warn().Str("user", result.User).Str("provider", result.Provider).
						Msg("shnode: payment stream went insolvent")
				}
			}

			if due := n.scheduler.DueProviders(tick); len(due) > 0 {
				log.Info().Uint64("tick", tick).Strs("due", due).Msg("shnode: providers due to prove")
			}

			deadline := uint64(config.MaxProofRetries) * 10
			if slashable := n.scheduler.MarkSlashable(tick, deadline); len(slashable) > 0 {
				log.Warn().Uint64("tick", tick).Strs("providers", slashable).Msg("shnode: marked slashable")
			}
		}
	}
}

// localTickSeed stands in for the host chain's randomness beacon until a
// real chain.EventSource is wired in; it is not verifiable by any other
// node and must not be relied on once multi-node consensus exists.
func localTickSeed() crypto.Hash {
	var raw [32]byte
	_, _ = rand.Read(raw[:])
	return crypto.HashBytes(raw[:])
}
