package services

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/maxton76/stall-bokning-sub014/pkg/db"
	"github.com/maxton76/stall-bokning-sub014/pkg/holidays"
	"github.com/maxton76/stall-bokning-sub014/pkg/members"
)

// AdvanceStore defines the database operations needed to advance
// materialization horizons across all active definitions
type AdvanceStore interface {
	MaterializeStore
	ListActiveDefinitions(ctx context.Context) ([]db.DutyDefinition, error)
}

// AdvanceResult summarizes one horizon-advancement sweep
type AdvanceResult struct {
	DefinitionsProcessed int
	InstancesCreated     int
	InstancesCancelled   int
	Warnings             []Warning
}

// AdvanceHorizons extends materialization forward for every active
// definition. Different definitions share no mutable state and materialize
// in parallel; within one definition resolution stays sequential. A
// definition archived while the sweep is in flight finishes its batch but is
// never picked up again.
func AdvanceHorizons(
	ctx context.Context,
	store AdvanceStore,
	holidayCal holidays.Calendar,
	directory members.Directory,
	logger *zap.Logger,
	opts MaterializeOptions,
) (*AdvanceResult, error) {
	defs, err := store.ListActiveDefinitions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active definitions: %w", err)
	}

	logger.Info("Advancing horizons", zap.Int("definitions", len(defs)))

	result := &AdvanceResult{Warnings: []Warning{}}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(DefaultAdvanceParallelism)
	for _, def := range defs {
		def := def
		g.Go(func() error {
			runResult, err := MaterializeDuty(gctx, store, holidayCal, directory, logger, def.ID, opts)
			if err != nil {
				return fmt.Errorf("failed to materialize definition %s: %w", def.ID, err)
			}
			mu.Lock()
			result.DefinitionsProcessed++
			result.InstancesCreated += runResult.InstancesCreated
			result.InstancesCancelled += runResult.InstancesCancelled
			result.Warnings = append(result.Warnings, runResult.Warnings...)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return result, err
	}

	logger.Info("Horizon advancement complete",
		zap.Int("definitions", result.DefinitionsProcessed),
		zap.Int("created", result.InstancesCreated),
		zap.Int("cancelled", result.InstancesCancelled),
		zap.Int("warnings", len(result.Warnings)))

	return result, nil
}
