package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/witlox/horao/pkg/clock"
	"github.com/witlox/horao/pkg/controller"
	"github.com/witlox/horao/pkg/gossip"
	"github.com/witlox/horao/pkg/log"
	"github.com/witlox/horao/pkg/metrics"
	"github.com/witlox/horao/pkg/model"
	"github.com/witlox/horao/pkg/scheduler"
	"github.com/witlox/horao/pkg/store"
)

var peerCmd = &cobra.Command{
	Use:   "peer",
	Short: "Run this datacenter's peer process",
}

var peerRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the gossip-synchronized reservation daemon",
	RunE:  runPeer,
}

func init() {
	peerCmd.AddCommand(peerRunCmd)
}

func runPeer(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	m := model.New()
	c := clock.New(cfg.PeerID, cfg.ClockOffset())
	c.SetSkewObserver(func(skewMs int64, accepted bool) {
		metrics.ClockSkewMs.WithLabelValues(strconv.FormatBool(accepted)).Observe(float64(skewMs))
	})

	sink, err := store.NewBoltSink(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open store at %q: %w", cfg.DataDir, err)
	}
	defer sink.Close()

	engine := store.NewEngine(sink, m, cfg.PeerID, cfg.SnapshotIntervalOps, cfg.SnapshotInterval())
	hwm, err := engine.Load()
	if err != nil {
		return fmt.Errorf("failed to load store: %w", err)
	}
	c.Forward(hwm)
	peerLogger := log.WithPeerID(cfg.PeerID)
	peerLogger.Info().Str("hwm", hwm.String()).Msg("store loaded")
	engine.Start()
	defer engine.Stop()

	ctl := controller.NewController(m, c, 3, 2*time.Minute)
	ctl.Start()
	defer ctl.Stop()

	sched := scheduler.NewScheduler(m, c, cfg.Shares(), 5*time.Second)
	sched.SetPlacedHook(func(claim model.Claim, placements map[string][]string) {
		hookCtx, hookCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer hookCancel()
		_ = ctl.NotifyPlaced(hookCtx, claim, placements)
	})
	sched.Start()
	defer sched.Stop()

	coll := metrics.NewCollector(m)
	coll.Start()
	defer coll.Stop()

	node := gossip.NewNode(gossip.Config{
		PeerID:    cfg.PeerID,
		HostID:    cfg.HostID,
		Secret:    []byte(cfg.PeerSecret),
		Peers:     cfg.Peers,
		Strict:    cfg.PeerStrict,
		SyncDelta: cfg.SyncDelta(),
		SyncMax:   cfg.SyncMaxOps,
	}, m, c, engine)

	node.Start()
	defer node.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	for peerID, endpoint := range cfg.Peers {
		peerID, endpoint := peerID, endpoint
		go node.Dial(ctx, peerID, endpoint)
	}

	health := metrics.NewHealth(m, version)
	health.Register("store", true, func() error {
		_, _, err := sink.Get("meta/self")
		return err
	})
	health.Register("gossip", true, func() error {
		if len(cfg.Peers) > 0 && node.ConnectedPeers() == 0 {
			return fmt.Errorf("none of %d configured peers connected", len(cfg.Peers))
		}
		return nil
	})
	health.Register("scheduler", false, func() error {
		last := sched.LastReconcile()
		if last.IsZero() {
			return fmt.Errorf("no reconciliation cycle completed yet")
		}
		if age := time.Since(last); age > time.Minute {
			return fmt.Errorf("last reconciliation cycle %s ago", age.Round(time.Second))
		}
		return nil
	})

	mux := http.NewServeMux()
	mux.Handle("/gossip", node)
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", health.Handler())
	mux.Handle("/ready", health.ReadyHandler())
	mux.Handle("/live", health.LiveHandler())
	server := &http.Server{Addr: cfg.Listen, Handler: mux}

	go func() {
		listenLogger := log.WithPeerID(cfg.PeerID)
		listenLogger.Info().Str("listen", cfg.Listen).Msg("peer listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			listenLogger.Error().Err(err).Msg("http server stopped")
		}
	}()

	waitForSignal()

	peerLogger.Info().Msg("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)
	return engine.Snapshot()
}

func waitForSignal() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	<-ch
}
