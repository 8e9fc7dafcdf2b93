package mtogod

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ModuleRunner is one long-running part of the daemon. Run must return once
// ctx is cancelled.
type ModuleRunner struct {
	Name string
	Run  func(ctx context.Context) error
}

// Supervisor runs the daemon's modules side by side.
type Supervisor struct {
	Logger *zap.Logger
}

// Run blocks until ctx is cancelled or a module fails. A failure cancels
// every other module; the failing module's error is returned after all of
// them have exited.
func (s Supervisor) Run(ctx context.Context, modules []ModuleRunner) error {
	if len(modules) == 0 {
		return errors.New("no modules enabled")
	}
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for _, m := range modules {
		m := m
		group.Go(func() error {
			log := logger.With(zap.String("module", m.Name))
			log.Info("starting module")
			started := time.Now()
			if err := m.Run(groupCtx); err != nil {
				log.Error("module exited", zap.Error(err), zap.Duration("uptime", time.Since(started)))
				return fmt.Errorf("%s: %w", m.Name, err)
			}
			log.Info("module stopped")
			return nil
		})
	}

	go func() {
		<-groupCtx.Done()
		if ctx.Err() != nil {
			logger.Info("shutdown requested")
		}
	}()
	return group.Wait()
}
