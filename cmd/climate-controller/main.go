package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/climate-controller/db"
	"github.com/thatsimonsguy/climate-controller/internal/api"
	"github.com/thatsimonsguy/climate-controller/internal/config"
	"github.com/thatsimonsguy/climate-controller/internal/datadog"
	"github.com/thatsimonsguy/climate-controller/internal/env"
	"github.com/thatsimonsguy/climate-controller/internal/logging"
	"github.com/thatsimonsguy/climate-controller/internal/model"
	"github.com/thatsimonsguy/climate-controller/internal/mqtt"
	"github.com/thatsimonsguy/climate-controller/internal/notifications"
	"github.com/thatsimonsguy/climate-controller/internal/relay"
	"github.com/thatsimonsguy/climate-controller/internal/runner"
	"github.com/thatsimonsguy/climate-controller/internal/temperature"
	"github.com/thatsimonsguy/climate-controller/internal/thermostat"
	"github.com/thatsimonsguy/climate-controller/system/shutdown"
)

func main() {
	cfg := config.Load()
	env.Cfg = &cfg
	logging.Init(cfg.LogLevel, cfg.LogFile)

	log.Info().
		Str("config_file", cfg.ConfigFile).
		Str("db", cfg.DBPath).
		Msg("Starting climate controller")

	relay.SetSafeMode(cfg.SafeMode)
	if cfg.SafeMode {
		log.Warn().Msg("SAFE MODE ENABLED, relay writes are disabled system-wide")
	}

	notifications.Init(cfg.NtfyTopic)
	datadog.InitMetrics()

	driver, err := relay.NewDriver(env.Cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open relay driver")
	}
	relays := relay.Build(env.Cfg, driver)
	shutdown.Register(func() {
		if err := relays.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close relay driver")
		}
	})
	shutdown.Register(relays.ReleaseAll)

	if cfg.Relays.Driver == config.DriverPinctrl {
		if err := relay.ValidateStartupPins(relays.All()); err != nil {
			shutdown.ShutdownWithError(err, "Refusing to start with relays already energised")
		}
	}

	dbConn, err := db.Open(cfg.DBPath)
	if err != nil {
		shutdown.ShutdownWithError(err, "Failed to open state database")
	}
	shutdown.Register(func() { dbConn.Close() })
	store := db.NewStore(dbConn)

	ctrl := thermostat.New(thermostat.Options{
		SupportsHeat: cfg.SupportsHeat(),
		SupportsCool: cfg.SupportsCool(),
		Hysteresis:   cfg.HysteresisValue(),
		Normal:       cfg.Normal,
		Away:         cfg.AwayProfile,
		Triggers:     relays.Triggers(),
	})

	climate := runner.New(ctrl, runner.Options{
		Saver:          store,
		MinTemperature: cfg.MinTemperature,
		MaxTemperature: cfg.MaxTemperature,
	})

	sensor := temperature.NewService(
		temperature.NewW1Reader(cfg.Sensor.Bus, cfg.Sensor.ID),
		temperature.Options{
			PollInterval: time.Duration(cfg.Sensor.PollIntervalSeconds) * time.Second,
			Retries:      cfg.Sensor.ReadRetries,
			MaxDelta:     cfg.Sensor.AnomalyDelta,
			MaxAnomalies: cfg.Sensor.MaxAnomalies,
			SensorID:     cfg.Sensor.ID,
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startSubscribers(climate, store)

	if cfg.MQTT.Broker != "" {
		client, err := mqtt.NewRealClient(cfg.MQTT, climate.Traits(), func(call thermostat.Call) {
			reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if _, err := climate.Control(reqCtx, call); err != nil {
				log.Warn().Err(err).Msg("MQTT command rejected")
			}
		})
		if err != nil {
			log.Error().Err(err).Msg("MQTT disabled, broker unreachable")
		} else {
			defer client.Close()
			states, _ := climate.Subscribe()
			go mqtt.Forward(states, client)
		}
	}

	// subscribers are registered first so the restored state reaches them
	climate.Setup(sensor.ReadOnce(), store)
	if err := store.SaveClimateState(ctrl.State().Persisted()); err != nil {
		log.Warn().Err(err).Msg("Failed to persist initial climate state")
	}

	go sensor.Run(ctx, func(reading *float64) {
		if err := climate.UpdateTemperature(ctx, reading); err != nil {
			log.Debug().Err(err).Msg("Dropped temperature reading")
		}
	})

	go func() {
		if err := api.NewServer(climate).Start(ctx, cfg.APIPort); err != nil {
			log.Error().Err(err).Msg("REST API server stopped")
		}
	}()

	if err := climate.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("Climate runner failed")
	}

	log.Info().Msg("Shutting down, releasing relays")
	shutdown.Release()
}

// startSubscribers wires metrics and the diagnostic action column to state changes.
func startSubscribers(climate *runner.Runner, store *db.Store) {
	metrics, _ := climate.Subscribe()
	go func() {
		var recorder datadog.Recorder
		for st := range metrics {
			recorder.Record(st)
		}
	}()

	actions, _ := climate.Subscribe()
	go func() {
		var last model.Action
		for st := range actions {
			if st.Action == last {
				continue
			}
			last = st.Action
			if err := store.RecordAction(st.Action); err != nil {
				log.Warn().Err(err).Msg("Failed to record climate action")
			}
		}
	}()
}
