package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"periph.io/x/conn/v3/gpio"

	"github.com/ericogr/gpio-input-to-mqtt/pkg/config"
	"github.com/ericogr/gpio-input-to-mqtt/pkg/output"
	"github.com/ericogr/gpio-input-to-mqtt/pkg/output/console"
	"github.com/ericogr/gpio-input-to-mqtt/pkg/output/mqtt"
	"github.com/ericogr/gpio-input-to-mqtt/pkg/platform"
	"github.com/ericogr/gpio-input-to-mqtt/pkg/poller"
	"github.com/ericogr/gpio-input-to-mqtt/pkg/sensor"
)

// simAnalogNoise is the jitter added to simulated analog channels, enough to
// exercise the filter without crossing the dead zone.
const simAnalogNoise = 3

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("stopped", zap.Error(err))
		stop()
		_ = logger.Sync()
		os.Exit(1)
	}
	logger.Info("stopped")
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) (err error) {
	plat, err := newPlatform(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, plat.Close()) }()

	sensors := buildSensors(cfg, plat)
	outs, err := initOutputs(cfg, entitiesFor(sensors), logger)
	if err != nil {
		return err
	}
	p := poller.New(sensors, outs, time.Duration(cfg.ScanIntervalMs)*time.Millisecond, logger)
	defer func() { err = multierr.Append(err, p.Close()) }()

	if err := p.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.Encoding = "console"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zc.Build()
}

// newPlatform returns the hardware backend. The simulation board has its
// matrices wired and analog channels parked at mid-scale with a little noise.
func newPlatform(cfg config.Config, logger *zap.Logger) (platform.Platform, error) {
	switch cfg.Platform {
	case config.PlatformPeriph:
		p, err := platform.NewPeriph(cfg, logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	case config.PlatformSimulation:
		sim := platform.NewSim(platform.WithAnalogNoise(simAnalogNoise, time.Now().UnixNano()))
		for _, m := range cfg.Matrices {
			sim.AttachMatrix(m.Rows, m.Cols)
		}
		for _, a := range cfg.Analogs {
			sim.SetAnalog(a.Pin, (platform.AnalogMax+1)/2)
		}
		logger.Info("simulation platform ready")
		return sim, nil
	default:
		return nil, fmt.Errorf("unknown platform %q", cfg.Platform)
	}
}

// buildSensors creates sensors in configuration order: buttons, matrices,
// then analog channels.
func buildSensors(cfg config.Config, plat platform.Platform) []sensor.Sensor {
	out := make([]sensor.Sensor, 0, len(cfg.Buttons)+len(cfg.Matrices)+len(cfg.Analogs))
	for _, b := range cfg.Buttons {
		var opts []sensor.ButtonOption
		if b.ActiveHigh {
			opts = append(opts, sensor.WithActiveLevel(gpio.High), sensor.WithPull(gpio.PullDown))
		}
		out = append(out, sensor.NewButtonSensor(plat, b.Pin, b.Debounce, opts...))
	}
	for _, m := range cfg.Matrices {
		out = append(out, sensor.NewMatrixSensor(plat, m.Rows, m.Cols, sensor.WithDebounce(m.Debounce)))
	}
	for _, a := range cfg.Analogs {
		out = append(out, sensor.NewAnalogSensor(plat, a.Pin, a.Sensitivity))
	}
	return out
}

// entitiesFor lists every reportable input; a matrix contributes one entity
// per scanned cell.
func entitiesFor(sensors []sensor.Sensor) []mqtt.Entity {
	var out []mqtt.Entity
	for _, s := range sensors {
		m, ok := s.(*sensor.MatrixSensor)
		if !ok {
			out = append(out, mqtt.Entity{Type: s.Type(), Pin: s.Pin()})
			continue
		}
		rows, cols := m.Size()
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				out = append(out, mqtt.Entity{Type: sensor.Matrix, Pin: m.VirtualPin(r, c)})
			}
		}
	}
	return out
}

func initOutputs(cfg config.Config, entities []mqtt.Entity, logger *zap.Logger) ([]output.Output, error) {
	outs := make([]output.Output, 0, len(cfg.Outputs))
	for _, o := range cfg.Outputs {
		var (
			out output.Output
			err error
		)
		switch o.Type {
		case config.OutputConsole:
			out = console.NewConsole()
		case config.OutputMQTT:
			if o.MQTT == nil {
				err = errors.New("mqtt output requires mqtt settings")
				break
			}
			out, err = mqtt.NewMQTT(*o.MQTT, entities, logger)
		default:
			err = fmt.Errorf("unknown output type %q", o.Type)
		}
		if err != nil {
			for _, prev := range outs {
				err = multierr.Append(err, prev.Close())
			}
			return nil, err
		}
		outs = append(outs, out)
	}
	return outs, nil
}
