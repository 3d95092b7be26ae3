package sync

import (
	"context"
	"fmt"
	gosync "sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Klingon-tech/klingsol/pkg/logging"
)

// DefaultBalanceSchedule refreshes every account once a minute.
const DefaultBalanceSchedule = "@every 1m"

// Refresher refreshes the balance snapshots of every account.
type Refresher interface {
	RefreshAll(ctx context.Context) error
}

// BalanceSync refreshes balance snapshots on a cron schedule, so transfer
// checks and the UI see recent values without a manual refresh.
type BalanceSync struct {
	refresher Refresher
	schedule  string
	timeout   time.Duration
	cron      *cron.Cron
	log       *logging.Logger

	mu      gosync.Mutex
	lastErr error
}

// NewBalanceSync creates a balance sync job. An empty schedule uses
// DefaultBalanceSchedule.
func NewBalanceSync(r Refresher, schedule string, timeout time.Duration) (*BalanceSync, error) {
	if schedule == "" {
		schedule = DefaultBalanceSchedule
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	log := logging.GetDefault().Component("balance-sync")
	cl := cronLogger{log}
	c := cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))

	b := &BalanceSync{
		refresher: r,
		schedule:  schedule,
		timeout:   timeout,
		cron:      c,
		log:       log,
	}
	if _, err := c.AddFunc(schedule, b.runOnce); err != nil {
		return nil, fmt.Errorf("invalid balance schedule %q: %w", schedule, err)
	}
	return b, nil
}

// Start starts the scheduler.
func (b *BalanceSync) Start() {
	b.cron.Start()
	b.log.Info("Balance sync started", "schedule", b.schedule)
}

// Stop stops the scheduler and waits for a running refresh to finish.
func (b *BalanceSync) Stop() {
	<-b.cron.Stop().Done()
	b.log.Info("Balance sync stopped")
}

// RunNow performs one refresh immediately and returns its error.
func (b *BalanceSync) RunNow() error {
	b.runOnce()
	return b.LastError()
}

// LastError returns the error of the last refresh, if any.
func (b *BalanceSync) LastError() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastErr
}

func (b *BalanceSync) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	err := b.refresher.RefreshAll(ctx)
	if err != nil {
		b.log.Warn("Balance refresh failed", "error", err)
	} else {
		b.log.Debug("Balances refreshed")
	}

	b.mu.Lock()
	b.lastErr = err
	b.mu.Unlock()
}

// cronLogger routes scheduler messages into the component logger.
type cronLogger struct {
	log *logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}
