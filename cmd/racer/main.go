package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"course-racer/config"
	"course-racer/internal/api"
	"course-racer/internal/availability"
	"course-racer/internal/db"
	"course-racer/internal/enroll"
	"course-racer/internal/history"
	"course-racer/internal/logger"
	"course-racer/internal/metrics"
	"course-racer/internal/notification"
	"course-racer/internal/poller"
	"course-racer/internal/protocol"
	"course-racer/internal/session"
	"course-racer/internal/status"
	"course-racer/internal/supervisor"
)

func main() {
	configFlag := flag.String("config", "", "path to the configuration file (default $CONFIG_PATH or ./config.yaml)")
	assumeYes := flag.Bool("y", false, "start without asking for confirmation")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}

	configPath := resolveConfigPath(*configFlag)
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration from %s: %v\n", configPath, err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log.Info("configuration loaded", zap.String("path", configPath), zap.String("protocol", cfg.Protocol))

	if err := run(cfg, *assumeYes, log); err != nil {
		log.Error("racer stopped", zap.Error(err))
		log.Sync()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "./config.yaml"
}

func run(cfg *config.Config, assumeYes bool, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	baseURL := cfg.Session.BaseURL
	if baseURL == "" {
		baseURL = protocol.DefaultBaseURL(cfg.Protocol)
	}
	sess, err := session.New(session.Options{
		BaseURL:   baseURL,
		RateLimit: cfg.Session.RateLimit,
		Timeout:   cfg.Session.Timeout,
		HTTPProxy: cfg.Session.HTTPProxy,
		Logger:    log,
	})
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	adapter, err := protocol.New(cfg.Protocol, sess, cfg.Authentication.Username)
	if err != nil {
		return err
	}
	if err := cfg.CheckBuckets(adapter.Buckets()); err != nil {
		return err
	}

	if cfg.Authentication.Token != "" {
		adapter.Authorize(cfg.Authentication.Token)
		log.Info("using pre-issued token")
	} else if err := adapter.Login(ctx, cfg.Authentication.Username, cfg.Authentication.Password); err != nil {
		return err
	}

	round, err := adapter.LoadRound(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", config.ErrInvalid, err)
	}
	log.Info("enrollment round", zap.String("code", round.Code), zap.String("name", round.Name), zap.String("campus", round.Campus))
	fmt.Printf("Round %s (%s), campus %s\n", round.Name, round.Code, round.Campus)

	jobs := supervisor.BuildJobs(cfg.Courses, adapter, log)
	if len(jobs) == 0 {
		return fmt.Errorf("%w: no course in a known bucket", config.ErrInvalid)
	}
	for _, j := range jobs {
		fmt.Printf("  %-20s %s\n", j.Name(), j.Bucket)
	}

	if !assumeYes && !confirm(os.Stdin, os.Stdout) {
		fmt.Println("Aborted.")
		return nil
	}

	store := availability.NewStore()
	m := metrics.New()

	var (
		gormDB   *gorm.DB
		hist     history.Store
		recorder enroll.Recorder
		notifier enroll.Notifier
		wpOpts   *webpush.Options
	)
	if cfg.Database.DSN != "" {
		gormDB, err = db.Init(&cfg.Database, log)
		if err != nil {
			return err
		}
		hist = history.NewGormStore(gormDB)
		recorder = hist
	}

	// Background services outlive the supervisor's cancellation until run returns.
	svcCtx, svcCancel := context.WithCancel(context.WithoutCancel(ctx))
	defer svcCancel()

	if cfg.Push.Enabled() {
		wpOpts = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		if gormDB == nil {
			log.Warn("push keys are set but no database is configured; notifications disabled")
		} else {
			pool := notification.NewWorkerPool(cfg.WorkerPool.Size, gormDB, wpOpts, log)
			pool.Start(svcCtx)
			notifier = pool
		}
	}

	sup := supervisor.New(supervisor.Options{
		RefreshInterval: cfg.Supervisor.RefreshInterval,
		Grace:           cfg.Supervisor.Grace,
		Sink:            status.NewTerminalSink(os.Stdout),
		Logger:          log,
	})
	sup.AddBackground(poller.New(adapter, store, supervisor.PollBuckets(cfg.OpenTypes, jobs, log), poller.Options{
		PageSize: cfg.Poller.PageSize,
		Metrics:  m,
		Logger:   log,
	}))
	for _, j := range jobs {
		sup.Add(enroll.NewWorker(j, adapter, store, enroll.Options{
			WaitInterval: cfg.Worker.WaitInterval,
			RetryPause:   cfg.Worker.RetryPause,
			Recorder:     recorder,
			Notifier:     notifier,
			Metrics:      m,
			Logger:       log,
		}))
	}

	if cfg.Server.Port > 0 {
		handler := api.NewHandler(api.Deps{
			Board:        sup.Board(),
			Availability: store,
			History:      hist,
			DB:           gormDB,
			Dropper:      adapter,
			WebPush:      wpOpts,
			Logger:       log,
		})
		server := &http.Server{
			Addr: fmt.Sprintf(":%d", cfg.Server.Port),
			Handler: api.NewRouter(handler, api.RouterOptions{
				RateLimitPerSec: cfg.Server.RateLimitPerSec,
				CacheTTL:        cfg.Server.CacheTTL,
				Metrics:         m,
			}),
		}
		go func() {
			log.Info("status server starting", zap.Int("port", cfg.Server.Port))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("status server stopped", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Warn("status server shutdown", zap.Error(err))
			}
		}()
	}

	log.Info("racing", zap.Int("jobs", len(jobs)), zap.Strings("open_types", cfg.OpenTypes))
	if err := sup.Run(ctx); err != nil {
		return err
	}
	if ctx.Err() != nil {
		fmt.Println("Interrupted.")
	} else {
		fmt.Println("All jobs finished.")
	}
	return nil
}
