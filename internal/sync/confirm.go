// Package sync runs the background workers that keep local wallet state in
// step with the cluster.
package sync

import (
	"context"
	"errors"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/Klingon-tech/klingsol/internal/backend"
	"github.com/Klingon-tech/klingsol/internal/storage"
	"github.com/Klingon-tech/klingsol/internal/wallet"
	"github.com/Klingon-tech/klingsol/pkg/logging"
)

// ConfirmTrackerConfig configures the confirmation tracker.
type ConfirmTrackerConfig struct {
	PollInterval    time.Duration // How often pending transactions are checked
	CleanupInterval time.Duration // How often stale pending transactions are expired
	PendingExpiry   time.Duration // Pending transactions older than this are failed
	BatchSize       int           // Max transactions checked per poll
}

// DefaultConfirmTrackerConfig returns the default configuration.
func DefaultConfirmTrackerConfig() ConfirmTrackerConfig {
	return ConfirmTrackerConfig{
		PollInterval:    5 * time.Second,
		CleanupInterval: time.Minute,
		PendingExpiry:   10 * time.Minute,
		BatchSize:       50,
	}
}

// ConfirmTracker polls the status of pending transactions and records the
// outcome, publishing tx_confirmed or tx_failed for each change.
type ConfirmTracker struct {
	client  backend.Client
	storage *storage.Storage
	events  wallet.EventSink
	config  ConfirmTrackerConfig
	log     *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewConfirmTracker creates a new confirmation tracker. events may be nil.
func NewConfirmTracker(client backend.Client, store *storage.Storage, events wallet.EventSink, cfg ConfirmTrackerConfig) *ConfirmTracker {
	def := DefaultConfirmTrackerConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}
	if cfg.PendingExpiry <= 0 {
		cfg.PendingExpiry = def.PendingExpiry
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &ConfirmTracker{
		client:  client,
		storage: store,
		events:  events,
		config:  cfg,
		log:     logging.GetDefault().Component("confirm"),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

// Start starts the tracker background goroutine.
func (t *ConfirmTracker) Start() {
	go t.run()
	t.log.Info("Confirmation tracker started", "poll_interval", t.config.PollInterval)
}

// Stop stops the tracker and waits for the loop to exit.
func (t *ConfirmTracker) Stop() {
	t.cancel()
	<-t.done
	t.log.Info("Confirmation tracker stopped")
}

func (t *ConfirmTracker) run() {
	defer close(t.done)

	pollTicker := time.NewTicker(t.config.PollInterval)
	cleanupTicker := time.NewTicker(t.config.CleanupInterval)
	defer pollTicker.Stop()
	defer cleanupTicker.Stop()

	// Pick up anything left pending by a previous run
	t.ExpireStale()
	t.Poll(t.ctx)

	for {
		select {
		case <-t.ctx.Done():
			return
		case <-pollTicker.C:
			t.Poll(t.ctx)
		case <-cleanupTicker.C:
			t.ExpireStale()
		}
	}
}

// Poll checks every pending transaction once and returns how many changed
// state.
func (t *ConfirmTracker) Poll(ctx context.Context) int {
	pending, err := t.storage.ListPendingTransactions()
	if err != nil {
		t.log.Warn("Failed to list pending transactions", "error", err)
		return 0
	}
	if len(pending) == 0 {
		return 0
	}
	if len(pending) > t.config.BatchSize {
		pending = pending[:t.config.BatchSize]
	}

	t.log.Debug("Checking pending transactions", "count", len(pending))

	changed := 0
	for _, tx := range pending {
		select {
		case <-ctx.Done():
			return changed
		default:
		}
		if t.check(ctx, tx) {
			changed++
		}
	}
	return changed
}

func (t *ConfirmTracker) check(ctx context.Context, tx *storage.Transaction) bool {
	sig, err := solana.SignatureFromBase58(tx.Signature)
	if err != nil {
		t.log.Warn("Invalid signature on pending transaction", "id", tx.ID, "signature", tx.Signature)
		t.fail(tx, "invalid signature")
		return true
	}

	status, err := t.client.GetSignatureStatus(ctx, sig)
	if err != nil {
		if !errors.Is(err, backend.ErrNotFound) {
			t.log.Warn("Failed to get signature status", "signature", tx.Signature, "error", err)
		}
		return false
	}

	switch {
	case status.Failed():
		t.fail(tx, status.Err)
		return true
	case status.Confirmed():
		if err := t.storage.MarkTransactionConfirmed(tx.ID, status.Slot); err != nil {
			t.log.Warn("Failed to mark transaction confirmed", "id", tx.ID, "error", err)
			return false
		}
		t.log.Info("Transaction confirmed", "signature", tx.Signature, "kind", tx.Kind, "slot", status.Slot)
		t.publish(wallet.EventTxConfirmed, &wallet.TxEvent{
			ID:        tx.ID,
			Signature: tx.Signature,
			Kind:      tx.Kind,
			Status:    storage.TxStatusConfirmed,
			Slot:      status.Slot,
			At:        time.Now(),
		})
		return true
	}
	return false
}

func (t *ConfirmTracker) fail(tx *storage.Transaction, reason string) {
	if err := t.storage.MarkTransactionFailed(tx.ID, reason); err != nil {
		t.log.Warn("Failed to mark transaction failed", "id", tx.ID, "error", err)
		return
	}
	t.log.Warn("Transaction failed", "signature", tx.Signature, "kind", tx.Kind, "reason", reason)
	t.publish(wallet.EventTxFailed, &wallet.TxEvent{
		ID:        tx.ID,
		Signature: tx.Signature,
		Kind:      tx.Kind,
		Status:    storage.TxStatusFailed,
		Error:     reason,
		At:        time.Now(),
	})
}

// ExpireStale fails pending transactions older than PendingExpiry.
func (t *ConfirmTracker) ExpireStale() int64 {
	count, err := t.storage.ExpirePendingTransactions(time.Now().Add(-t.config.PendingExpiry))
	if err != nil {
		t.log.Warn("Failed to expire pending transactions", "error", err)
		return 0
	}
	if count > 0 {
		t.log.Info("Expired pending transactions", "count", count)
	}
	return count
}

func (t *ConfirmTracker) publish(event string, data interface{}) {
	if t.events != nil {
		t.events.Publish(event, data)
	}
}
