// Package supervisor runs the discovery and refresh loops as two concurrent
// tasks and tears both down the moment either one exits, matching the
// teacher's background-goroutine-plus-cancel pattern in cmd/main.go
// generalized from one supervised goroutine to two.
package supervisor

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Task is anything the supervisor can run and cancel: both the discovery
// and refresh loops satisfy this with their Run(ctx) method.
type Task interface {
	Run(ctx context.Context) error
}

// Supervisor owns the lifecycle of the discovery and refresh loops: no
// partial restart, by design — if either returns, the other is cancelled
// and the whole process is expected to exit non-zero.
type Supervisor struct {
	discovery Task
	refresh   Task
	log       *zap.Logger
}

// New builds a Supervisor over the discovery and refresh loops.
func New(discovery, refresh Task, log *zap.Logger) *Supervisor {
	return &Supervisor{discovery: discovery, refresh: refresh, log: log}
}

// Run blocks until ctx is cancelled or either loop returns (with or without
// an error), at which point the other loop is cancelled and Run returns the
// diagnostic error. A clean shutdown via ctx cancellation returns nil.
func (s *Supervisor) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := s.discovery.Run(gctx)
		if gctx.Err() != nil {
			return nil
		}
		if err == nil {
			err = errors.New("returned without error")
		}
		return fmt.Errorf("discovery loop exited: %w", err)
	})
	g.Go(func() error {
		err := s.refresh.Run(gctx)
		if gctx.Err() != nil {
			return nil
		}
		if err == nil {
			err = errors.New("returned without error")
		}
		return fmt.Errorf("refresh loop exited: %w", err)
	})

	if err := g.Wait(); err != nil {
		s.log.Error("supervisor shutting down both loops after fatal error", zap.Error(err))
		return err
	}
	if ctx.Err() != nil {
		return nil
	}
	return nil
}
