package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/zsiec/framegate/internal/config"
	"github.com/zsiec/framegate/internal/health"
	"github.com/zsiec/framegate/internal/logger"
	"github.com/zsiec/framegate/internal/notify"
	"github.com/zsiec/framegate/internal/pipeline"
	"github.com/zsiec/framegate/internal/server"
	"github.com/zsiec/framegate/internal/validator"
	"github.com/zsiec/framegate/pkg/version"
)

const statusInterval = 10 * time.Second

func main() {
	var (
		configPath  string
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "configs/default.yaml", "Path to configuration file")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.Parse()

	if showVersion {
		fmt.Println(version.GetInfo().String())
		os.Exit(0)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	base, err := logger.New(&cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	log := logger.FromLogrus(base)

	log.WithFields(version.GetInfo().Fields()).Info("Starting framegate")
	log.WithField("config_path", configPath).Debug("Configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("framegate exited with error")
	}
	log.Info("Shutdown complete")
}

// run serves until ctx is cancelled
func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	healthMgr := health.NewManager(log)
	registry := validator.NewRegistry()

	// Notification fan-out
	memory := notify.NewMemoryChannel(cfg.Notifications.HistorySize)
	channels := []notify.Channel{notify.NewLogChannel(log), memory}

	var archive server.NotificationArchive
	if cfg.Redis.Enabled {
		redisClient, err := connectRedis(ctx, &cfg.Redis, log)
		if err != nil {
			return err
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.WithError(err).Error("Failed to close Redis connection")
			}
		}()

		rc := notify.NewRedisChannel(redisClient, cfg.Notifications.RedisChannel,
			cfg.Notifications.RedisHistory, cfg.Notifications.HistorySize, log)
		channels = append(channels, rc)
		archive = rc
		healthMgr.Register(health.NewRedisChecker(redisClient))
	}

	processor := notify.NewProcessor(cfg.Notifications.QueueSize, log, channels...)
	processor.Start(ctx)
	defer processor.Stop()

	// Sensor and validation pipeline
	profiles, err := pipeline.ProfilesFromConfig(cfg.Sensor.Profiles)
	if err != nil {
		return fmt.Errorf("sensor profiles: %w", err)
	}
	userRequests, err := pipeline.ProfilesFromConfig(cfg.Sensor.UserRequests)
	if err != nil {
		return fmt.Errorf("user requests: %w", err)
	}
	validatorOpts, err := validator.OptionsFromConfig(cfg.Validator)
	if err != nil {
		return fmt.Errorf("validator: %w", err)
	}

	simSensor, err := pipeline.NewSimSensor(cfg.Sensor, log)
	if err != nil {
		return fmt.Errorf("sensor: %w", err)
	}
	userSink := pipeline.NewCountingSink(log)

	p := pipeline.New(simSensor, userSink, profiles, userRequests, pipeline.Options{
		Revalidate:       cfg.Pipeline.Revalidate,
		RevalidateDelay:  cfg.Pipeline.RevalidateDelay,
		ValidatorOptions: validatorOpts,
		Registry:         registry,
		Notifications:    processor,
		Logger:           log,
	})

	healthMgr.Register(health.NewValidatorChecker(registry))
	healthMgr.Register(health.NewSensorChecker(simSensor))

	if err := p.Start(); err != nil {
		return fmt.Errorf("start pipeline: %w", err)
	}
	defer func() {
		if err := p.Stop(); err != nil {
			log.WithError(err).Error("Failed to stop pipeline")
		}
	}()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return p.Run(ctx)
	})

	g.Go(func() error {
		ticker := time.NewTicker(statusInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				log.WithFields(logger.Fields{
					"frames":        userSink.Counts(),
					"revalidations": p.Revalidations(),
					"notifications": processor.Stats(),
				}).Info("Status")
			}
		}
	})

	if cfg.Metrics.Enabled {
		g.Go(func() error {
			return serveMetrics(ctx, cfg.Metrics, log)
		})
	}

	if cfg.Server.Enabled {
		srv := server.New(&cfg.Server, log, server.Deps{
			Health:        healthMgr,
			Validators:    registry,
			Notifications: memory,
			Archive:       archive,
		})
		g.Go(func() error {
			return srv.Start(ctx)
		})
	}

	err = g.Wait()
	log.Info("Shutting down")
	return err
}

func connectRedis(ctx context.Context, cfg *config.RedisConfig, log logger.Logger) (redis.UniversalClient, error) {
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:        cfg.Addresses,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.WithField("addresses", cfg.Addresses).Info("Connected to Redis successfully")
	return client, nil
}

// serveMetrics runs the Prometheus endpoint until ctx is cancelled
func serveMetrics(ctx context.Context, cfg config.MetricsConfig, log logger.Logger) error {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("Starting metrics server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("metrics server: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
