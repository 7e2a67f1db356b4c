package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

const defaultRefresherPollInterval = 30 * time.Second

var standardCronParser = cron.NewParser(
	cron.Minute |
		cron.Hour |
		cron.Dom |
		cron.Month |
		cron.Dow,
)

// ParseCronExpressionUTC parses a five-field cron expression. Timezone
// prefixes are rejected; the schedule is evaluated in UTC only.
func ParseCronExpressionUTC(expr string) (cron.Schedule, error) {
	clean := strings.TrimSpace(expr)
	if clean == "" {
		return nil, fmt.Errorf("cron expression is required")
	}

	upper := strings.ToUpper(clean)
	if strings.Contains(upper, "CRON_TZ=") || strings.Contains(upper, "TZ=") {
		return nil, fmt.Errorf("cron expression must be UTC-only (timezone prefixes are not allowed)")
	}

	schedule, err := standardCronParser.Parse(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}
	return schedule, nil
}

// RefresherConfig configures the background home cache refresher.
type RefresherConfig struct {
	Cache *HomeCache
	// CronExpr is the refresh schedule (five-field, UTC).
	CronExpr string
	// PollInterval is how often the schedule is checked (default: 30s).
	PollInterval time.Duration
	Now          func() time.Time
	Logger       *slog.Logger
}

// Refresher refreshes the home cache on a cron schedule. It refreshes once
// eagerly at Start so the cache is warm before the first scheduled tick.
type Refresher struct {
	cache        *HomeCache
	schedule     cron.Schedule
	pollInterval time.Duration
	now          func() time.Time
	logger       *slog.Logger

	mu      sync.Mutex
	nextRun time.Time
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewRefresher creates a refresher instance.
func NewRefresher(cfg RefresherConfig) (*Refresher, error) {
	if cfg.Cache == nil {
		return nil, errors.New("refresher cache is nil")
	}
	schedule, err := ParseCronExpressionUTC(cfg.CronExpr)
	if err != nil {
		return nil, err
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultRefresherPollInterval
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Refresher{
		cache:        cfg.Cache,
		schedule:     schedule,
		pollInterval: cfg.PollInterval,
		now:          cfg.Now,
		logger:       cfg.Logger,
	}, nil
}

// Start begins background polling.
func (r *Refresher) Start(ctx context.Context) error {
	if r == nil {
		return errors.New("refresher is nil")
	}

	r.mu.Lock()
	if r.cancel != nil {
		r.mu.Unlock()
		return nil
	}
	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	r.cancel = cancel
	r.done = done
	r.nextRun = r.schedule.Next(r.now().UTC())
	r.mu.Unlock()

	go func() {
		defer close(done)
		r.refresh(loopCtx)
		ticker := time.NewTicker(r.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				_ = r.RunOnce(loopCtx)
			}
		}
	}()

	_ = ctx
	return nil
}

// Stop stops background polling.
func (r *Refresher) Stop(ctx context.Context) error {
	if r == nil {
		return nil
	}

	r.mu.Lock()
	cancel := r.cancel
	done := r.done
	r.cancel = nil
	r.done = nil
	r.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce performs a single schedule check, refreshing when a tick is due.
func (r *Refresher) RunOnce(ctx context.Context) error {
	now := r.now().UTC()

	r.mu.Lock()
	due := !r.nextRun.IsZero() && !now.Before(r.nextRun)
	if due {
		r.nextRun = r.schedule.Next(now)
	}
	r.mu.Unlock()

	if !due {
		return nil
	}
	r.refresh(ctx)
	return nil
}

func (r *Refresher) refresh(ctx context.Context) {
	if err := r.cache.Refresh(ctx); err != nil {
		r.logger.Warn("home cache refresh failed, keeping previous snapshot", "error", err)
	}
}
