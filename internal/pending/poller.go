package pending

import (
	"context"
	"time"

	"tfview/internal/logging"

	"go.uber.org/zap"
)

// Ticker is the part of time.Ticker the poller needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type TickerFactory func(d time.Duration) Ticker

type realTicker struct{ *time.Ticker }

func (t realTicker) C() <-chan time.Time { return t.Ticker.C }

func NewRealTicker(d time.Duration) Ticker {
	return realTicker{time.NewTicker(d)}
}

// Refresher is implemented by Repository.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Poller drives refreshes from a fixed interval and from explicit triggers such as
// a saved document. Triggers are not coalesced.
type Poller struct {
	repo      Refresher
	interval  time.Duration
	newTicker TickerFactory
	trigger   chan struct{}
	logger    *logging.Logger
}

func NewPoller(repo Refresher, interval time.Duration, logger *logging.Logger) *Poller {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Poller{
		repo:      repo,
		interval:  interval,
		newTicker: NewRealTicker,
		trigger:   make(chan struct{}, 16),
		logger:    logger,
	}
}

// WithTicker swaps the clock, for tests.
func (p *Poller) WithTicker(f TickerFactory) *Poller {
	p.newTicker = f
	return p
}

// Trigger requests an immediate refresh. It never blocks; if the queue is full the
// request is dropped since a refresh is already pending.
func (p *Poller) Trigger() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

// Run refreshes once, then on every tick or trigger until ctx is done.
// Each refresh runs in its own goroutine so a hung query does not stop polling.
func (p *Poller) Run(ctx context.Context) {
	ticker := p.newTicker(p.interval)
	defer ticker.Stop()

	p.refresh(ctx, "initial")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			p.refresh(ctx, "interval")
		case <-p.trigger:
			p.refresh(ctx, "trigger")
		}
	}
}

func (p *Poller) refresh(ctx context.Context, reason string) {
	go func() {
		if err := p.repo.Refresh(ctx); err != nil && ctx.Err() == nil {
			p.logger.Warn("refresh failed", zap.String("reason", reason), zap.Error(err))
		}
	}()
}
