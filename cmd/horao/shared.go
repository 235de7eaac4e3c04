package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/witlox/horao/pkg/clock"
	"github.com/witlox/horao/pkg/config"
	"github.com/witlox/horao/pkg/model"
	"github.com/witlox/horao/pkg/store"
)

// localHandle bundles a loaded model, clock, and store engine for a
// one-shot CLI command. One-shot commands load the latest persisted
// state, apply a single op, record and snapshot it, and exit — they do
// not hold the bbolt file open across invocations, and bbolt's own file
// lock means they cannot run concurrently with a live "horao peer run"
// against the same data dir.
type localHandle struct {
	cfg    *config.Config
	model  *model.Model
	clock  *clock.Clock
	sink   *store.BoltSink
	engine *store.Engine
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(cmd)
}

func openLocal(cmd *cobra.Command) (*localHandle, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	m := model.New()
	c := clock.New(cfg.PeerID, cfg.ClockOffset())

	sink, err := store.NewBoltSink(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open store at %q: %w", cfg.DataDir, err)
	}

	engine := store.NewEngine(sink, m, cfg.PeerID, cfg.SnapshotIntervalOps, 0)
	hwm, err := engine.Load()
	if err != nil {
		_ = sink.Close()
		return nil, fmt.Errorf("failed to load store: %w", err)
	}
	c.Forward(hwm)

	return &localHandle{cfg: cfg, model: m, clock: c, sink: sink, engine: engine}, nil
}

// commit records a delta capturing everything changed since zero time
// and takes a fresh snapshot, so a one-shot CLI invocation always leaves
// the store fully self-consistent rather than relying on the op-count
// cadence a long-running engine would use.
func (h *localHandle) commit(ts clock.Timestamp) error {
	d := h.model.Delta(clock.Zero)
	if err := h.engine.RecordDelta(h.cfg.PeerID, ts, d); err != nil {
		return err
	}
	return h.engine.Snapshot()
}

func (h *localHandle) close() error {
	return h.sink.Close()
}
