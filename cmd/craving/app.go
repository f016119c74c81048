package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hurttlocker/craving/internal/assistant"
	"github.com/hurttlocker/craving/internal/catalog"
	"github.com/hurttlocker/craving/internal/config"
	"github.com/hurttlocker/craving/internal/conversation"
	"github.com/hurttlocker/craving/internal/extract"
	"github.com/hurttlocker/craving/internal/recommend"
	"github.com/hurttlocker/craving/internal/scoring"
	"github.com/hurttlocker/craving/internal/store"
)

// app is the wired pipeline for one process.
type app struct {
	cfg       config.ResolvedConfig
	catalog   *catalog.Catalog
	machine   *conversation.Machine
	assistant *assistant.Assistant
	logger    *zap.Logger
	closers   []func() error
}

func loadCatalog(ctx context.Context, cfg config.ResolvedConfig) (*catalog.Catalog, error) {
	c, err := catalog.FileProvider{Path: cfg.CatalogPath.Value}.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}
	return c, nil
}

func newScorer(cfg config.ResolvedConfig) (recommend.Scorer, func() error, error) {
	switch strings.ToLower(cfg.Scorer.Value) {
	case config.ScorerONNX:
		s, err := scoring.NewONNXScorer(cfg.ONNX())
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %w", recommend.ErrScorerUnavailable, err)
		}
		return s, s.Close, nil
	default:
		return scoring.RiskScorer{}, nil, nil
	}
}

// buildApp wires catalog, extractor, conversation machine, scorer and engine
// from the resolved configuration.
func buildApp(ctx context.Context, flags *globalFlags, logger *zap.Logger) (*app, error) {
	cfg, err := flags.resolve()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	ttl, err := cfg.TTL()
	if err != nil {
		return nil, err
	}
	workers, err := cfg.Workers()
	if err != nil {
		return nil, err
	}

	a.catalog, err = loadCatalog(ctx, cfg)
	if err != nil {
		return nil, err
	}
	for _, issue := range a.catalog.Issues() {
		logger.Warn("catalog issue", zap.String("food", issue.FoodID), zap.String("issue", issue.Message))
	}

	ex := extract.New(a.catalog,
		extract.WithLocation(loc),
		extract.WithLogger(logger.Named("extract")))

	machineOpts := []conversation.Option{
		conversation.WithTTL(ttl),
		conversation.WithLogger(logger.Named("conversation")),
	}
	var assistantOpts []assistant.Option
	if cfg.DBPath.Value != "" {
		st, err := store.NewStore(store.StoreConfig{DBPath: cfg.DBPath.Value})
		if err != nil {
			return nil, fmt.Errorf("opening pending store: %w", err)
		}
		a.closers = append(a.closers, st.Close)
		machineOpts = append(machineOpts, conversation.WithStore(st))
		assistantOpts = append(assistantOpts, assistant.WithJournal(st))
		logger.Debug("using sqlite pending store", zap.String("path", st.Path()))
	}
	a.machine = conversation.NewMachine(ex, machineOpts...)

	scorer, closeScorer, err := newScorer(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	if closeScorer != nil {
		a.closers = append(a.closers, closeScorer)
	}

	engine, err := recommend.NewEngine(a.catalog, scorer,
		recommend.WithThresholds(cfg.Thresholds),
		recommend.WithWorkers(workers),
		recommend.WithClock(time.Now, loc),
		recommend.WithLogger(logger.Named("recommend")))
	if err != nil {
		a.Close()
		return nil, err
	}

	a.assistant = assistant.New(a.catalog, a.machine, engine,
		append(assistantOpts, assistant.WithLogger(logger))...)
	return a, nil
}

// sweep reclaims expired conversations in the background until ctx ends.
func (a *app) sweep(ctx context.Context) <-chan struct{} {
	return a.machine.Sweep(ctx, a.machine.TTL()/2)
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
