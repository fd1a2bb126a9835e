// Package poller drives a set of sensors from a fixed tick and forwards
// their events to the configured outputs.
package poller

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ericogr/gpio-input-to-mqtt/pkg/output"
	"github.com/ericogr/gpio-input-to-mqtt/pkg/sensor"
)

// batchBuffer is how many ticks of events may wait for slow outputs before
// new batches are dropped.
const batchBuffer = 64

type Poller struct {
	sensors  []sensor.Sensor
	outputs  []output.Output
	interval time.Duration
	clock    clock.Clock
	logger   *zap.Logger
}

type Option func(*Poller)

// WithClock replaces the wall clock used for ticks and timestamps.
func WithClock(c clock.Clock) Option {
	return func(p *Poller) { p.clock = c }
}

func New(sensors []sensor.Sensor, outputs []output.Output, interval time.Duration, logger *zap.Logger, opts ...Option) *Poller {
	p := &Poller{
		sensors:  sensors,
		outputs:  outputs,
		interval: interval,
		clock:    clock.New(),
		logger:   logger,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Begin resets every sensor and configures its pins.
func (p *Poller) Begin() {
	for _, s := range p.sensors {
		s.Begin()
	}
}

// Tick scans each sensor once and drains it, returning the events in sensor
// order.
func (p *Poller) Tick() []sensor.Reading {
	var out []sensor.Reading
	for _, s := range p.sensors {
		s.Scan()
		for r := s.Read(); r.HasValue; r = s.Read() {
			out = append(out, r)
		}
	}
	return out
}

// Run begins the sensors and polls them every interval until ctx is done.
// Outputs are fed from a separate goroutine; batches that arrive while
// batchBuffer are already waiting are dropped and logged.
func (p *Poller) Run(ctx context.Context) error {
	p.Begin()
	p.logger.Info("polling started", zap.Int("sensors", len(p.sensors)), zap.Duration("interval", p.interval))

	batches := make(chan []output.Event, batchBuffer)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(batches)
		return p.scanLoop(ctx, batches)
	})
	g.Go(func() error {
		for events := range batches {
			p.publish(events)
		}
		return nil
	})
	return g.Wait()
}

func (p *Poller) scanLoop(ctx context.Context, batches chan<- []output.Event) error {
	ticker := p.clock.Ticker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		readings := p.Tick()
		if len(readings) == 0 {
			continue
		}
		events := p.stamp(readings)
		select {
		case batches <- events:
		default:
			p.logger.Warn("outputs behind, dropping events", zap.Int("events", len(events)))
		}
	}
}

func (p *Poller) stamp(readings []sensor.Reading) []output.Event {
	now := p.clock.Now()
	events := make([]output.Event, len(readings))
	for i, r := range readings {
		events[i] = output.Event{Reading: r, Timestamp: now}
	}
	return events
}

// publish hands events to every output. A failing output is logged and does
// not stop the others.
func (p *Poller) publish(events []output.Event) {
	for _, e := range events {
		p.logger.Debug("input event", zap.Stringer("type", e.Type), zap.Int("pin", e.Pin), zap.Int16("value", e.Value))
	}
	for i, o := range p.outputs {
		if err := o.Publish(events); err != nil {
			p.logger.Warn("publish failed", zap.Int("output", i), zap.Error(err))
		}
	}
}

// Close closes all outputs.
func (p *Poller) Close() error {
	var err error
	for _, o := range p.outputs {
		err = multierr.Append(err, o.Close())
	}
	return err
}
