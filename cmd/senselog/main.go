package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"codeberg.org/mutker/senselog/internal/archive"
	"codeberg.org/mutker/senselog/internal/calibration"
	"codeberg.org/mutker/senselog/internal/chart"
	"codeberg.org/mutker/senselog/internal/config"
	"codeberg.org/mutker/senselog/internal/errors"
	"codeberg.org/mutker/senselog/internal/logfile"
	"codeberg.org/mutker/senselog/internal/logger"
	"codeberg.org/mutker/senselog/internal/metrics"
	"codeberg.org/mutker/senselog/internal/pid"
	"codeberg.org/mutker/senselog/internal/sample"
	"codeberg.org/mutker/senselog/internal/sampler"
	"codeberg.org/mutker/senselog/internal/sensor"
	"codeberg.org/mutker/senselog/internal/server"
	"codeberg.org/mutker/senselog/internal/shutdown"
	"codeberg.org/mutker/senselog/internal/telemetry"
	"github.com/spf13/pflag"
)

const graphFile = "live_graph.png"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Load(args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}

	logger.Init(cfg.LogLevel, logger.IsService())
	logger.Debug().Msg("Config loaded")

	if cfg.PIDFile != "" {
		if err := pid.Write(cfg.PIDFile); err != nil {
			logError(err, "Failed to write PID file")
			return 1
		}
		defer func() {
			if err := pid.Remove(cfg.PIDFile); err != nil {
				logError(err, "Failed to remove PID file")
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// loopDone closes when the sampling loop returns, or right away when
	// startup fails before the loop is started.
	loopDone := make(chan struct{})
	coord := shutdown.New(cancel, loopDone, cfg.ShutdownTimeout)

	abort := func(err error, msg string) int {
		logError(err, msg)
		close(loopDone)
		if err := coord.Shutdown(); err != nil {
			logError(err, "Failed to release resources")
		}
		return 1
	}

	channels := sensor.Channels{
		Temperature: cfg.Sensor.Temperature,
		Humidity:    cfg.Sensor.Humidity,
		Pressure:    cfg.Sensor.Pressure,
	}

	sens, err := sensor.Open(sensor.Config{
		Driver:   cfg.Sensor.Driver,
		Bus:      cfg.Sensor.Bus,
		Address:  cfg.Sensor.Address,
		Channels: channels,
	})
	if err != nil {
		return abort(err, "Failed to open sensor")
	}
	coord.Release("sensor", sens.Close)

	start := time.Now()
	logPath := filepath.Join(cfg.Output.Dir, logfile.FileName(cfg.Output.Prefix, start))
	logFile, err := logfile.Open(logPath)
	if err != nil {
		return abort(err, "Failed to open log file")
	}
	coord.Release("logfile", logFile.Close)

	archiveService, err := archive.NewService(archive.Config{
		Enabled:      cfg.Archive.Enabled,
		DBPath:       cfg.Archive.DBPath,
		BatchSize:    cfg.Archive.BatchSize,
		BatchTimeout: cfg.Archive.BatchTimeout,
	})
	if err != nil {
		return abort(err, "Failed to open sample archive")
	}
	coord.Release("archive", archiveService.Close)

	telemetryService, err := telemetry.NewService(telemetry.Config{
		Enabled:        cfg.MQTT.Enabled,
		Broker:         cfg.MQTT.Broker,
		Topic:          cfg.MQTT.Topic,
		ClientID:       cfg.MQTT.ClientID,
		QoS:            cfg.MQTT.QoS,
		Retained:       cfg.MQTT.Retained,
		ConnectTimeout: telemetry.DefaultConfig().ConnectTimeout,
	})
	if err != nil {
		return abort(err, "Failed to start telemetry")
	}
	coord.Release("telemetry", telemetryService.Close)

	m := metrics.New()
	store := sample.NewStore()
	publisher := chart.NewPublisher(filepath.Join(cfg.HTTP.StaticDir, graphFile))

	loop := sampler.New(sampler.Config{
		Interval: cfg.Interval,
		Channels: channels,
	}, sampler.Components{
		Sensor: sens,
		Model: calibration.New(calibration.Offsets{
			Temperature: cfg.Calibration.TemperatureOffset,
			Humidity:    cfg.Calibration.HumidityOffset,
			Altitude:    cfg.Calibration.AltitudeOffset,
		}),
		Writer:    logFile,
		Store:     store,
		Renderer:  chart.NewRenderer(),
		Publisher: publisher,
		Sinks: []sampler.Sink{
			{Name: "archive", Collector: archiveService},
			{Name: "telemetry", Collector: telemetryService},
		},
		Metrics: m,
	})

	srv, err := server.New(server.Config{
		Addr:     cfg.HTTP.Addr,
		Interval: cfg.Interval,
	}, store, publisher, m)
	if err != nil {
		return abort(err, "Failed to create HTTP server")
	}

	logger.Info().
		Str("log_file", logPath).
		Str("sensor", cfg.Sensor.Driver).
		Dur("interval", cfg.Interval).
		Str("addr", cfg.HTTP.Addr).
		Bool("archive", cfg.Archive.Enabled).
		Bool("mqtt", cfg.MQTT.Enabled).
		Msg("Starting senselog")

	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	go coord.Watch(watchCtx)

	go func() {
		defer close(loopDone)
		if err := loop.Run(ctx); err != nil {
			logError(err, "Sampling loop failed")
		}
	}()

	served := make(chan error, 1)
	go func() {
		served <- srv.Run(ctx)
	}()

	exitCode := 0
	serverDone := false

	select {
	case <-coord.Done():
	case err := <-served:
		serverDone = true
		if err != nil {
			logError(err, "HTTP server failed")
			exitCode = 1
		}
	}

	if err := coord.Shutdown(); err != nil {
		logError(err, "Shutdown finished with errors")
		exitCode = 1
	}

	if !serverDone {
		if err := <-served; err != nil {
			logError(err, "HTTP server failed")
			exitCode = 1
		}
	}

	logger.Info().Int("samples", store.Len()).Msg("Exiting...")

	return exitCode
}

func logError(err error, msg string) {
	var coded errors.Error
	if errors.As(err, &coded) {
		logger.ErrorWithCode(coded).Msg(msg)
		return
	}
	logger.Error().Err(err).Msg(msg)
}
