package gateway

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/marcus-qen/synapse/internal/events"
)

// ProducerSet runs the periodic feeds (knowledge updates, performance
// metrics, system status) on cron schedules, decoupled from any client
// activity. Producers are supervised rather than fire-and-forget: a
// panicking or failing emit is logged and the schedule keeps firing, so
// a broken producer is observable and recovers on its next tick.
type ProducerSet struct {
	bus    *events.Bus
	cron   *cron.Cron
	logger *zap.Logger
}

// NewProducerSet creates an empty producer set publishing to bus.
func NewProducerSet(bus *events.Bus, logger *zap.Logger) *ProducerSet {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProducerSet{
		bus:    bus,
		cron:   cron.New(),
		logger: logger,
	}
}

// Add registers a producer on a cron schedule (descriptors like
// "@every 10s" work). emit returns the event to publish, or an error to
// skip this tick.
func (p *ProducerSet) Add(name, schedule string, emit func() (events.Event, error)) error {
	_, err := p.cron.AddFunc(schedule, func() {
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("producer panicked, will retry next tick",
					zap.String("producer", name),
					zap.Any("panic", r),
				)
			}
		}()

		evt, err := emit()
		if err != nil {
			p.logger.Warn("producer emit failed",
				zap.String("producer", name),
				zap.Error(err),
			)
			return
		}
		p.bus.Publish(evt)
	})
	if err != nil {
		return fmt.Errorf("add producer %s: %w", name, err)
	}
	return nil
}

// Start begins firing schedules.
func (p *ProducerSet) Start() {
	p.cron.Start()
	p.logger.Info("producers started", zap.Int("count", len(p.cron.Entries())))
}

// Stop halts the schedules and waits for in-flight emits to finish.
func (p *ProducerSet) Stop(timeout time.Duration) {
	ctx := p.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(timeout):
		p.logger.Warn("producers did not drain before timeout")
	}
}
