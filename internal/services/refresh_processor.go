package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"lendbook/internal/core"
	"lendbook/internal/log"
)

// Refresher reloads the debtor list from its source.
type Refresher interface {
	Refresh(ctx context.Context) ([]core.Debtor, error)
}

// RefreshProcessorConfig holds configuration for the refresh processor
type RefreshProcessorConfig struct {
	// Interval is how often the debtor list is reloaded (default: 5m)
	Interval time.Duration
}

func DefaultRefreshProcessorConfig() RefreshProcessorConfig {
	return RefreshProcessorConfig{Interval: 5 * time.Minute}
}

// RefreshProcessor reloads the debtor list on a timer so the snapshot cache
// and the offline copy stay warm between page views.
type RefreshProcessor struct {
	refresher Refresher
	config    RefreshProcessorConfig
	logger    *log.Logger

	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	lastOK   time.Time
	lastSize int
}

func NewRefreshProcessor(refresher Refresher, config RefreshProcessorConfig, logger *log.Logger) *RefreshProcessor {
	if logger == nil {
		logger = log.Default()
	}
	if config.Interval <= 0 {
		config.Interval = DefaultRefreshProcessorConfig().Interval
	}
	return &RefreshProcessor{
		refresher: refresher,
		config:    config,
		logger:    logger.WithComponent(log.ComponentDirectory),
	}
}

// Start begins the refresh loop. Returns an error if already running.
func (p *RefreshProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("refresh processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	p.logger.InfoContext(ctx, "Refresh processor started", "interval", p.config.Interval)
	return nil
}

// Stop signals the loop and waits for it to finish.
func (p *RefreshProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		p.logger.InfoContext(ctx, "Refresh processor stopped")
		return nil
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "Refresh processor stop timed out")
		return ctx.Err()
	}
}

func (p *RefreshProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// LastRefresh reports when the list was last loaded and how many debtors it held.
func (p *RefreshProcessor) LastRefresh() (time.Time, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastOK, p.lastSize
}

func (p *RefreshProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	p.refresh(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.refresh(ctx)
		}
	}
}

func (p *RefreshProcessor) refresh(ctx context.Context) {
	list, err := p.refresher.Refresh(ctx)
	if err != nil {
		p.logger.WarnContext(ctx, "Debtor refresh failed", log.FieldOperation, log.OpRefresh, log.FieldError, err)
		return
	}
	p.mu.Lock()
	p.lastOK = time.Now()
	p.lastSize = len(list)
	p.mu.Unlock()
	p.logger.DebugContext(ctx, "Debtor list refreshed", log.FieldRowCount, len(list))
}
