// Command spectroapp is the instrument process: it wires the acquisition
// engine, data writer, safety supervisor, telemetry server, diagnostics
// mirror, command journal, and UI state machine together and runs them as
// a fixed set of actors over shared queues and flags, the same top-level
// wiring shape as the teacher's cmd/mdengine main.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/roboticsmick/ORCA-open-spectrometer-sub000/config"
	"github.com/roboticsmick/ORCA-open-spectrometer-sub000/internal/acquisition"
	"github.com/roboticsmick/ORCA-open-spectrometer-sub000/internal/calibration"
	"github.com/roboticsmick/ORCA-open-spectrometer-sub000/internal/datawriter"
	"github.com/roboticsmick/ORCA-open-spectrometer-sub000/internal/diagnostics"
	"github.com/roboticsmick/ORCA-open-spectrometer-sub000/internal/flags"
	"github.com/roboticsmick/ORCA-open-spectrometer-sub000/internal/hw/periphgpio"
	"github.com/roboticsmick/ORCA-open-spectrometer-sub000/internal/hw/periphi2c"
	"github.com/roboticsmick/ORCA-open-spectrometer-sub000/internal/hw/spectro"
	"github.com/roboticsmick/ORCA-open-spectrometer-sub000/internal/journal"
	"github.com/roboticsmick/ORCA-open-spectrometer-sub000/internal/logger"
	"github.com/roboticsmick/ORCA-open-spectrometer-sub000/internal/model"
	"github.com/roboticsmick/ORCA-open-spectrometer-sub000/internal/safety"
	"github.com/roboticsmick/ORCA-open-spectrometer-sub000/internal/telemetry"
	"github.com/roboticsmick/ORCA-open-spectrometer-sub000/internal/uiapp"
)

// defaultWavelengths stands in for the device-reported axis until a real
// Spectrometer implementation supplies one; see internal/hw/spectro.
func defaultWavelengths() []float64 {
	const n = 288
	step := (config.WavelengthRangeMaxNM - config.WavelengthRangeMinNM) / float64(n-1)
	ws := make([]float64, n)
	for i := range ws {
		ws[i] = config.WavelengthRangeMinNM + float64(i)*step
	}
	return ws
}

func main() {
	log := logger.Init("spectroapp", slog.LevelInfo)
	log.Info("starting")

	cfg := config.Load()
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Error("failed to create data directory", "dir", cfg.DataDir, "err", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.JournalPath), 0o755); err != nil {
		log.Error("failed to create journal directory", "path", cfg.JournalPath, "err", err)
		os.Exit(1)
	}

	metrics := telemetry.NewMetrics()
	health := telemetry.NewHealthStatus()
	metricsSrv := telemetry.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	redisMirror := telemetry.NewRedisMirror(cfg.RedisAddr, cfg.RedisPassword, metrics)
	health.SetRedis(cfg.RedisAddr != "", redisMirror.Ping(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- shared state ----
	signals := &flags.Signals{}
	limits := model.Limits{
		IntegrationMinMS:  config.MinIntegrationTimeMS,
		IntegrationMaxMS:  config.MaxIntegrationTimeMS,
		IntegrationStepMS: config.IntegrationTimeStepMS,
		ScansMin:          config.MinScansToAverage,
		ScansMax:          config.MaxScansToAverage,
	}
	settings := acquisition.NewSettingsStore(model.Settings{
		IntegrationTimeMS: config.DefaultIntegrationTimeMS,
		ScansToAverage:    config.DefaultScansToAverage,
		CollectionMode:    model.ModeRaw,
		LensType:          model.LensFiber,
	})
	refs := calibration.NewStore()

	commandCh := make(chan model.Command, config.CommandQueueSize)
	results := acquisition.NewResultQueue(config.ResultQueueSize)
	saveCh := make(chan model.SaveRequest, config.SaveQueueSize)

	// ---- command journal ----
	cmdJournal, err := journal.Open(cfg.JournalPath, log)
	if err != nil {
		log.Error("failed to open command journal", "err", err)
		os.Exit(1)
	}
	defer cmdJournal.Close()

	// ---- acquisition engine ----
	device := spectro.New(defaultWavelengths())
	engine := acquisition.NewEngine(device, settings, refs, signals, metrics, log, commandCh, results)
	go engine.Run(ctx)

	// ---- data writer ----
	renderer := datawriter.NewPlotRenderer(config.ScreenWidth, config.ScreenHeight)
	writer := datawriter.NewWriter(cfg.DataDir, renderer, metrics, log)
	go writer.Run(ctx, saveCh)
	defer writer.Close()

	// ---- safety supervisor ----
	if config.UseLeakSensor {
		if err := periphgpio.Init(); err != nil {
			log.Error("periph host init failed, leak sensor disabled", "err", err)
		} else if leakPin, err := periphgpio.OpenInput(strconv.Itoa(config.LeakSensorPin)); err != nil {
			log.Error("failed to open leak sensor pin, continuing without it", "err", err)
		} else {
			go safety.NewLeakMonitor(leakPin, signals, metrics, log).Run(ctx)
		}
	}

	var tempFan *safety.TempFanController
	if config.UseTempSensor {
		if sensor, err := periphi2c.Open("", config.TempSensorI2CAddr); err != nil {
			log.Error("temperature sensor unavailable, fan control disabled", "err", err)
		} else if fanPin, err := periphgpio.OpenOutput(strconv.Itoa(config.FanEnablePin)); err != nil {
			log.Error("failed to open fan control pin", "err", err)
			sensor.Close()
		} else {
			tempFan = safety.NewTempFanController(sensor, fanPin, metrics, log)
			go tempFan.Run(ctx)
		}
	}

	// ---- diagnostics mirror ----
	diagHub := diagnostics.NewHub(log, metrics)
	diagSrv := diagnostics.NewServer(cfg.DiagnosticsAddr, diagHub)
	diagSrv.Start()
	defer diagSrv.Stop(context.Background())

	// ---- UI state machine ----
	// The physical button widget is out of scope (see SPEC_FULL.md's
	// menu-UI exclusion); a ManualSource stands in for whatever front end
	// (keyboard, touch, GPIO buttons) drives Press calls in a full build.
	buttons := &uiapp.ManualSource{}
	app := uiapp.New(settings, limits, results, commandCh, saveCh, cmdJournal, signals, metrics, log, buttons)
	app.SetResultObserver(diagHub.Broadcast)
	if tempFan != nil {
		app.SetTemperatureProvider(tempFan.LastTemperatureC)
	}
	go app.Run(ctx)

	go pollQueueDrops(ctx, results, metrics)
	go pollHealth(ctx, signals, health)

	shutdownLatched := make(chan struct{})
	go watchShutdown(ctx, signals, shutdownLatched)

	log.Info("ready", "data_dir", cfg.DataDir, "metrics_addr", cfg.MetricsAddr, "diagnostics_addr", cfg.DiagnosticsAddr)

	select {
	case <-sigCh:
		log.Info("shutdown signal received")
		signals.Shutdown.Set()
	case <-shutdownLatched:
		log.Info("shutdown latched by safety supervisor")
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Stop(shutdownCtx)
	redisMirror.Close()

	log.Info("shutdown complete")
}

// pollQueueDrops mirrors the result queue's drop counter into Prometheus
// at a coarse interval, the same periodic-stat-sampling shape the
// teacher's fanout saturation reporter uses rather than incrementing a
// counter from inside the queue's hot path.
func pollQueueDrops(ctx context.Context, q *acquisition.ResultQueue, m *telemetry.Metrics) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	var last uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cur := q.Dropped()
			if cur > last {
				m.ResultQueueDropped.Add(float64(cur - last))
				last = cur
			}
		}
	}
}

// pollHealth mirrors the leak latch into the /healthz JSON body. Per-
// subsystem device/temp-sensor health is already authoritative in the
// Prometheus gauges the engine and safety supervisor set directly;
// /healthz additionally surfaces the one fact that should flip a load
// balancer or supervisor to treat the process as going away: a latched
// leak.
func pollHealth(ctx context.Context, signals *flags.Signals, health *telemetry.HealthStatus) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			health.SetLeakDetected(signals.LeakDetected.IsSet())
		}
	}
}

// watchShutdown bridges the signals.Shutdown latch back into main's
// select loop. Shutdown can be set either by main itself (on an OS
// signal) or, asynchronously, by the UI actor once it has held its leak
// warning screen for its hold window (internal/uiapp.App.handleLeak) —
// without this watcher main only ever wakes on sigCh, so a leak-triggered
// shutdown would latch every actor's poll loop but never unblock main,
// the data writer, or the telemetry/diagnostics servers.
func watchShutdown(ctx context.Context, signals *flags.Signals, latched chan<- struct{}) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if signals.Shutdown.IsSet() {
				close(latched)
				return
			}
		}
	}
}
