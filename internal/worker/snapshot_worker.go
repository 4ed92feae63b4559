// Package worker takes scheduled snapshots of the ledger.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"churchbook/internal/amqp"
	"churchbook/internal/core"
	"churchbook/internal/log"
)

// Snapshotter is the part of the ledger service the worker drives.
type Snapshotter interface {
	Reload(ctx context.Context) error
	Revision() int64
	TakeSnapshot(ctx context.Context) (core.Snapshot, error)
}

// Consumer delivers change notifications published by the server.
type Consumer interface {
	ConsumeLedgerChanged(ctx context.Context, handler func(context.Context, *amqp.LedgerChangedMessage) error) error
}

type Config struct {
	// Schedule is a standard five-field cron expression.
	Schedule string
	Location *time.Location
}

// SnapshotWorker snapshots the ledger on a cron schedule when it changed
// since the last snapshot. With a Consumer it learns about changes from
// notifications and reloads the store before snapshotting; without one it
// compares the service revision, which only works in the server process.
type SnapshotWorker struct {
	svc      Snapshotter
	consumer Consumer
	config   Config
	logger   *log.Logger

	dirty        atomic.Bool
	lastSeen     atomic.Int64
	snapshotRev  atomic.Int64
	snapshotsRun atomic.Int64

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	doneCh  chan struct{}
	runErr  error
}

func NewSnapshotWorker(svc Snapshotter, consumer Consumer, config Config, logger *log.Logger) (*SnapshotWorker, error) {
	if config.Location == nil {
		config.Location = time.Local
	}
	if _, err := cron.ParseStandard(config.Schedule); err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", config.Schedule, err)
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &SnapshotWorker{
		svc:      svc,
		consumer: consumer,
		config:   config,
		logger:   logger.WithComponent(log.ComponentWorker),
	}, nil
}

// HandleLedgerChanged marks the ledger dirty.
func (w *SnapshotWorker) HandleLedgerChanged(ctx context.Context, msg *amqp.LedgerChangedMessage) error {
	w.dirty.Store(true)
	for {
		seen := w.lastSeen.Load()
		if msg.Revision <= seen || w.lastSeen.CompareAndSwap(seen, msg.Revision) {
			break
		}
	}
	w.logger.DebugContext(ctx, "Ledger marked dirty", log.FieldRevision, msg.Revision, "reason", msg.Reason)
	return nil
}

// SnapshotIfDirty takes a snapshot when the ledger changed since the last
// one and reports whether it did.
func (w *SnapshotWorker) SnapshotIfDirty(ctx context.Context) (bool, error) {
	if w.consumer != nil {
		if !w.dirty.Swap(false) {
			return false, nil
		}
		if err := w.svc.Reload(ctx); err != nil {
			w.dirty.Store(true)
			return false, fmt.Errorf("reload ledger: %w", err)
		}
	} else if w.svc.Revision() == w.snapshotRev.Load() {
		return false, nil
	}

	rev := w.svc.Revision()
	snap, err := w.svc.TakeSnapshot(ctx)
	if err != nil {
		if w.consumer != nil {
			w.dirty.Store(true)
		}
		return false, fmt.Errorf("take snapshot: %w", err)
	}
	w.snapshotRev.Store(rev)
	w.snapshotsRun.Add(1)

	w.logger.InfoContext(ctx, "Scheduled snapshot taken",
		log.NewFields().WithOperation(log.OpSnapshot).ToSlice()...,
	)
	w.logger.DebugContext(ctx, "Snapshot details", log.FieldSnapshotID, snap.ID, log.FieldRevision, rev)
	return true, nil
}

// SnapshotsTaken returns how many scheduled snapshots succeeded.
func (w *SnapshotWorker) SnapshotsTaken() int64 {
	return w.snapshotsRun.Load()
}

// Run blocks until ctx is done, running the scheduler and, when configured,
// the change consumer.
func (w *SnapshotWorker) Run(ctx context.Context) error {
	c := cron.New(cron.WithLocation(w.config.Location))
	if _, err := c.AddFunc(w.config.Schedule, func() {
		if _, err := w.SnapshotIfDirty(ctx); err != nil {
			w.logger.ErrorContext(ctx, "Scheduled snapshot failed", log.FieldError, err)
		}
	}); err != nil {
		return fmt.Errorf("schedule snapshots: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		c.Start()
		w.logger.InfoContext(gctx, "Snapshot scheduler started", "schedule", w.config.Schedule)
		<-gctx.Done()
		<-c.Stop().Done()
		return nil
	})

	if w.consumer != nil {
		g.Go(func() error {
			err := w.consumer.ConsumeLedgerChanged(gctx, w.HandleLedgerChanged)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	err := g.Wait()
	w.logger.InfoContext(ctx, "Snapshot worker stopped")
	return err
}

// Start runs the worker in the background. It fails if already running.
func (w *SnapshotWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return errors.New("snapshot worker is already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	w.running = true
	w.cancel = cancel
	w.doneCh = make(chan struct{})
	w.runErr = nil

	go func() {
		err := w.Run(ctx)
		w.mu.Lock()
		w.runErr = err
		w.running = false
		close(w.doneCh)
		w.mu.Unlock()
	}()
	return nil
}

// Stop cancels a running worker and waits for it or for ctx.
func (w *SnapshotWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	cancel, done := w.cancel, w.doneCh
	w.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-ctx.Done():
		w.logger.WarnContext(ctx, "Snapshot worker stop timed out")
		return ctx.Err()
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	return w.runErr
}

func (w *SnapshotWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
