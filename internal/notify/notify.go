// Package notify runs the ambient trend toasts shown next to the chat. It is
// independent of the conversation and only shares the rendering surface.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"ApparelChat/internal/config"
)

// Toast is one ephemeral notification
type Toast struct {
	ID        uint64
	Title     string
	Body      string
	CreatedAt time.Time
}

// Scheduler emits a random trend toast every period and removes each toast
// once its lifetime has passed.
type Scheduler struct {
	trends   []config.Trend
	period   time.Duration
	lifetime time.Duration

	pick      func(n int) int
	now       func() time.Time
	afterFunc func(d time.Duration, f func())

	logger  *slog.Logger
	emitted metric.Int64Counter

	mu      sync.Mutex
	cron    *cron.Cron
	toasts  []Toast
	nextID  uint64
	updates chan struct{}
}

// Opts holds parameters for creating a Scheduler.
type Opts struct {
	Trends   []config.Trend
	Period   time.Duration // defaults to config.DefaultToastPeriod
	Lifetime time.Duration // defaults to config.DefaultToastLifetime
	Logger   *slog.Logger
	Meter    metric.Meter

	// Test hooks; nil means math/rand/v2, time.Now and time.AfterFunc.
	Pick      func(n int) int
	Now       func() time.Time
	AfterFunc func(d time.Duration, f func())
}

// New creates a stopped Scheduler
func New(opts Opts) (*Scheduler, error) {
	if opts.Period <= 0 {
		opts.Period = config.DefaultToastPeriod
	}
	if opts.Lifetime <= 0 {
		opts.Lifetime = config.DefaultToastLifetime
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Meter == nil {
		opts.Meter = noop.NewMeterProvider().Meter("notify")
	}
	if opts.Pick == nil {
		opts.Pick = rand.IntN
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.AfterFunc == nil {
		opts.AfterFunc = func(d time.Duration, f func()) { time.AfterFunc(d, f) }
	}

	emitted, err := opts.Meter.Int64Counter(
		"toasts.emitted",
		metric.WithDescription("Trend toasts shown to the user"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create toast counter: %w", err)
	}

	return &Scheduler{
		trends:    opts.Trends,
		period:    opts.Period,
		lifetime:  opts.Lifetime,
		pick:      opts.Pick,
		now:       opts.Now,
		afterFunc: opts.AfterFunc,
		logger:    opts.Logger,
		emitted:   emitted,
		updates:   make(chan struct{}, 1),
	}, nil
}

// Start begins emitting toasts. Calling Start on a running scheduler does
// nothing, so there is never more than one periodic job.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return
	}
	c := cron.New()
	// cron.Every rounds periods below one second up to one second.
	c.Schedule(cron.Every(s.period), cron.FuncJob(s.Tick))
	c.Start()
	s.cron = c
	s.logger.Debug("toast scheduler started", "period", s.period, "lifetime", s.lifetime)
}

// Stop cancels the periodic job. Removals that are already scheduled still
// fire and are harmless.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
	s.logger.Debug("toast scheduler stopped")
}

// Running reports whether the periodic job is active
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cron != nil
}

// Tick emits one toast and schedules its removal
func (s *Scheduler) Tick() {
	if len(s.trends) == 0 {
		return
	}
	trend := s.trends[s.pick(len(s.trends))]

	s.mu.Lock()
	s.nextID++
	toast := Toast{
		ID:        s.nextID,
		Title:     trend.Title,
		Body:      trend.Body,
		CreatedAt: s.now(),
	}
	s.toasts = append(s.toasts, toast)
	s.mu.Unlock()

	s.emitted.Add(context.Background(), 1, metric.WithAttributes(attribute.String("toast.title", toast.Title)))
	s.logger.Debug("toast emitted", "toast_id", toast.ID, "title", toast.Title)
	s.notify()

	s.afterFunc(s.lifetime, func() { s.Dismiss(toast.ID) })
}

// Dismiss removes the toast with the given id, leaving all others in place
func (s *Scheduler) Dismiss(id uint64) {
	s.mu.Lock()
	kept := s.toasts[:0]
	removed := false
	for _, t := range s.toasts {
		if t.ID == id {
			removed = true
			continue
		}
		kept = append(kept, t)
	}
	s.toasts = kept
	s.mu.Unlock()

	if removed {
		s.notify()
	}
}

// Active returns the live toasts in insertion order
func (s *Scheduler) Active() []Toast {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Toast, len(s.toasts))
	copy(out, s.toasts)
	return out
}

// Updates signals whenever the toast set changes. Signals coalesce.
func (s *Scheduler) Updates() <-chan struct{} {
	return s.updates
}

func (s *Scheduler) notify() {
	select {
	case s.updates <- struct{}{}:
	default:
	}
}
