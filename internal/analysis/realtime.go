package analysis

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v3/host"

	"github.com/sawring/sawring/internal/api"
	"github.com/sawring/sawring/internal/buildinfo"
	"github.com/sawring/sawring/internal/conf"
	"github.com/sawring/sawring/internal/errors"
	"github.com/sawring/sawring/internal/events"
	"github.com/sawring/sawring/internal/logger"
	"github.com/sawring/sawring/internal/mqtt"
	"github.com/sawring/sawring/internal/notification"
	"github.com/sawring/sawring/internal/observability"
	"github.com/sawring/sawring/internal/pipeline"
)

const (
	busShutdownTimeout = 5 * time.Second
	telemetryFlush     = 2 * time.Second
)

// Realtime runs a live session until SIGINT or SIGTERM, or until the
// source gives up. It starts the event consumers and the HTTP API that
// the settings enable.
func Realtime(ctx context.Context, settings *conf.Settings) error {
	log := GetLogger()
	build := buildinfo.Current()

	if err := errors.InitSentry(settings.Telemetry.SentryDSN, build.Release()); err != nil {
		log.Warn("error reporting disabled", logger.Error(err))
	}
	defer errors.FlushTelemetry(telemetryFlush)

	logSystemDetails(log, build, settings)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics, err := observability.NewMetrics()
	if err != nil {
		return err
	}

	bus := events.NewBus(settings.Events.BusBuffer, settings.Events.BusWorkers)
	bus.SetDeliveryHook(metrics.Events.RecordDelivery)
	defer func() { _ = bus.Shutdown(busShutdownTimeout) }()

	session, err := pipeline.New(pipeline.Options{
		Settings: settings,
		Bus:      bus,
		Metrics:  metrics,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.Warn("failed to release classifier", logger.Error(err))
		}
	}()

	recent := api.NewRecentEvents(settings.Events.RecentTTL)
	if err := bus.RegisterConsumer(recent); err != nil {
		return err
	}

	if settings.MQTT.Enabled {
		client, err := startMQTT(ctx, settings, metrics, bus)
		if err != nil {
			// paho keeps retrying in the background.
			log.Warn("MQTT broker not reachable yet", logger.Error(err))
		}
		if client != nil {
			defer client.Disconnect()
		}
	}

	if settings.Notify.Enabled {
		notifier, err := notification.NewNotifier(settings.Notify)
		if err != nil {
			log.Warn("push notifications disabled", logger.Error(err))
		} else if err := bus.RegisterConsumer(notifier); err != nil {
			return err
		}
	}

	if settings.WebServer.Enabled {
		server, err := api.New(api.ConfigFromSettings(settings), session,
			api.WithRecentEvents(recent),
			api.WithMetrics(metrics))
		if err != nil {
			return err
		}
		if err := server.Start(); err != nil {
			return err
		}
		defer func() {
			if err := server.Shutdown(); err != nil {
				log.Warn("HTTP server shutdown failed", logger.Error(err))
			}
		}()
	}

	err = session.Run(ctx)
	if ctx.Err() != nil {
		log.Info("shutdown requested")
	}

	// Deliver pending events while the consumers are still connected.
	if shutdownErr := bus.Shutdown(busShutdownTimeout); shutdownErr != nil {
		log.Warn("event bus did not drain", logger.Error(shutdownErr))
	}
	return err
}

// startMQTT registers the publisher on bus and connects. The returned
// client is non-nil whenever it must be disconnected, even on error.
func startMQTT(ctx context.Context, settings *conf.Settings, metrics *observability.Metrics, bus *events.Bus) (mqtt.Client, error) {
	cfg := mqtt.ConfigFromSettings(settings.MQTT)
	client, err := mqtt.NewClient(cfg, metrics.MQTT)
	if err != nil {
		return nil, err
	}

	if err := bus.RegisterConsumer(mqtt.NewPublisher(client, cfg, settings.Source.Type)); err != nil {
		return nil, err
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	return client, client.Connect(connectCtx)
}

func logSystemDetails(log logger.Logger, build *buildinfo.Context, settings *conf.Settings) {
	fields := []logger.Field{
		logger.String("version", build.GetVersion()),
		logger.String("source", settings.Source.Type),
		logger.Int("frame_size", settings.FrameSizeBytes()),
		logger.Int("sample_rate", settings.Frame.SampleRate),
		logger.Duration("inference_interval", settings.Classifier.Interval),
	}
	if info, err := host.Info(); err == nil {
		fields = append(fields,
			logger.String("os", info.OS),
			logger.String("platform", info.Platform),
			logger.String("platform_version", info.PlatformVersion),
			logger.String("arch", info.KernelArch))
	}
	log.Info("starting realtime session", fields...)
}
