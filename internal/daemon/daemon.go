package daemon

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rejectly/rejectly/internal/api"
	"github.com/rejectly/rejectly/internal/app/credit"
	"github.com/rejectly/rejectly/internal/app/engagement"
	"github.com/rejectly/rejectly/internal/domain"
	"github.com/rejectly/rejectly/internal/health"
	"github.com/rejectly/rejectly/internal/infra/breaker"
	"github.com/rejectly/rejectly/internal/infra/generator"
	_ "github.com/rejectly/rejectly/internal/infra/metrics" // Register Prometheus metrics
	"github.com/rejectly/rejectly/internal/infra/push"
	"github.com/rejectly/rejectly/internal/infra/scheduler"
	"github.com/rejectly/rejectly/internal/infra/sqlite"
)

// Daemon is the rejectly runtime. It wires together all services.
type Daemon struct {
	Config Config
	DB     *sqlite.DB
	Server *api.Server

	Credit      *credit.Service
	Dispatcher  *engagement.Dispatcher
	Tracker     *engagement.Tracker
	Challenges  *engagement.ChallengeScheduler
	Monitor     *engagement.TimeMonitor
	Suggestions *engagement.SuggestionQueue
	Badges      *engagement.BadgeClassifier
	Runner      *scheduler.Runner
	Health      *health.Checker

	logFile *os.File
	cancel  context.CancelFunc
}

// New creates and initializes a Daemon with all services wired.
func New(version string) (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	return NewWithConfig(cfg, version)
}

// NewWithConfig creates a Daemon with the given configuration.
func NewWithConfig(cfg Config, version string) (*Daemon, error) {
	d := &Daemon{Config: cfg}

	if err := d.setupLogging(); err != nil {
		return nil, err
	}

	dir := cfg.Store.Dir
	if dir == "" {
		dir = rejectlyHome()
	}
	db, err := sqlite.OpenWithOptions(dir, sqlite.Options{ProvisionSocial: cfg.Store.ProvisionSocial})
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("open database: %w", err)
	}
	d.DB = db

	messages := engagement.DefaultMessages()
	if cfg.Notifications.MessagesFile != "" {
		messages, err = engagement.LoadMessages(cfg.Notifications.MessagesFile)
		if err != nil {
			d.Close()
			return nil, err
		}
	}

	gateway, err := buildPush(cfg.Push)
	if err != nil {
		d.Close()
		return nil, err
	}

	gen, err := buildGenerator(cfg.Generator)
	if err != nil {
		d.Close()
		return nil, err
	}

	// ─── Engine ─────────────────────────────────────────────────────────

	d.Credit = credit.NewService(db)

	d.Dispatcher, err = engagement.NewDispatcher(db, gateway, engagement.DispatcherOptions{
		BatchSize:           cfg.Notifications.BatchSize,
		PreferenceCacheSize: cfg.Notifications.PreferenceCacheSize,
	})
	if err != nil {
		d.Close()
		return nil, err
	}

	d.Tracker = engagement.NewTracker(db, d.Credit, d.Dispatcher, messages, cfg.Quests.MaxActive)
	d.Challenges = engagement.NewChallengeScheduler(db, d.Tracker, gen, d.Dispatcher, messages, engagement.ChallengeOptions{
		MotivationProbability: cfg.Scheduler.MotivationChance,
	})
	d.Monitor = engagement.NewTimeMonitor(db, d.Dispatcher, messages)
	d.Suggestions = engagement.NewSuggestionQueue(db, d.Tracker, d.Dispatcher, messages, cfg.Suggestions.RefundOnDecline)
	d.Badges = engagement.NewBadgeClassifier(db)

	// ─── Scheduler ──────────────────────────────────────────────────────

	jobs, err := d.jobs()
	if err != nil {
		d.Close()
		return nil, err
	}
	d.Runner, err = scheduler.NewRunner(db, jobs...)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.Runner.SetDebug(strings.EqualFold(cfg.Logging.Level, "debug"))

	d.Health = health.NewChecker(db, d.Runner, parseDuration(cfg.Scheduler.HealthInterval, 30*time.Second))

	// ─── API ────────────────────────────────────────────────────────────

	d.Server = api.NewServer(api.Services{
		Tracker:     d.Tracker,
		Challenges:  d.Challenges,
		Badges:      d.Badges,
		Suggestions: d.Suggestions,
		Dispatcher:  d.Dispatcher,
		Ledger:      d.Credit,
		Runner:      d.Runner,
		Health:      d.Health,
	}, version)
	if cfg.Telemetry.Prometheus {
		d.Server.EnableMetrics()
	}

	return d, nil
}

// jobs builds the four periodic jobs from the scheduler config.
func (d *Daemon) jobs() ([]scheduler.Job, error) {
	sc := d.Config.Scheduler
	tolerance := parseDuration(sc.WindowTolerance, 5*time.Minute)
	check := parseDuration(sc.WindowCheck, 5*time.Minute)

	dailyHour, dailyMinute, err := parseWindow(sc.DailyWindow)
	if err != nil {
		return nil, fmt.Errorf("daily_window: %w", err)
	}
	milestoneHour, milestoneMinute, err := parseWindow(sc.MilestoneWindow)
	if err != nil {
		return nil, fmt.Errorf("milestone_window: %w", err)
	}

	return []scheduler.Job{
		{
			Name:     engagement.JobDailyGeneration,
			Interval: check,
			Window: &scheduler.DailyWindow{
				Hour: dailyHour, Minute: dailyMinute, Tolerance: tolerance, MinGap: 23 * time.Hour,
			},
			Run: d.Challenges.GenerateDaily,
		},
		{
			Name:     engagement.JobMilestones,
			Interval: check,
			Window: &scheduler.DailyWindow{
				Hour: milestoneHour, Minute: milestoneMinute, Tolerance: tolerance, MinGap: 23 * time.Hour,
			},
			Run: d.Challenges.SendMilestones,
		},
		{
			Name:     engagement.JobTimeWarnings,
			Interval: parseDuration(sc.WarningInterval, 30*time.Second),
			Run:      d.Monitor.SweepWarnings,
		},
		{
			Name:     engagement.JobReminders,
			Interval: parseDuration(sc.ReminderInterval, time.Hour),
			Run:      d.Monitor.SweepReminders,
		},
	}, nil
}

// buildPush routes Telegram chat tokens to the bot, Expo tokens to Expo
// and everything else to the log. Upstream gateways sit behind breakers.
func buildPush(cfg PushConfig) (domain.PushGateway, error) {
	timeout := parseDuration(cfg.Timeout, 10*time.Second)
	router := &push.Router{Default: push.Log{}}

	if cfg.TelegramToken != "" {
		tg, err := push.NewTelegram(cfg.TelegramToken)
		if err != nil {
			return nil, fmt.Errorf("telegram: %w", err)
		}
		router.Routes = append(router.Routes, push.Route{
			Prefix:  push.TelegramPrefix,
			Gateway: &breaker.Gateway{Next: tg, Breaker: breaker.New("telegram", breaker.Config{})},
		})
	}
	expo := &breaker.Gateway{
		Next:    push.NewExpo(cfg.ExpoURL, cfg.ExpoAccessToken, timeout),
		Breaker: breaker.New("expo", breaker.Config{}),
	}
	router.Routes = append(router.Routes,
		push.Route{Prefix: "ExponentPushToken", Gateway: expo},
		push.Route{Prefix: "ExpoPushToken", Gateway: expo},
	)
	return router, nil
}

// buildGenerator prefers the configured chat-completions API and falls
// back to the built-in pool, immediately while the API's breaker is open.
func buildGenerator(cfg GeneratorConfig) (domain.QuestGenerator, error) {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	pool := generator.NewPool(seed)
	if cfg.BaseURL == "" {
		log.Printf("[daemon] no generator url configured, using built-in quest pool")
		return pool, nil
	}
	oa, err := generator.NewOpenAI(generator.OpenAIConfig{
		BaseURL:     cfg.BaseURL,
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		Timeout:     parseDuration(cfg.Timeout, 30*time.Second),
	})
	if err != nil {
		return nil, err
	}
	guarded := &breaker.Generator{
		Next:    oa,
		Breaker: breaker.New("generator", breaker.Config{Threshold: 3, Cooldown: 5 * time.Minute}),
	}
	return &generator.Fallback{Primary: guarded, Secondary: pool}, nil
}

func (d *Daemon) setupLogging() error {
	log.SetFlags(log.LstdFlags | log.LUTC)
	if d.Config.Logging.File == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(d.Config.Logging.File), 0700); err != nil {
		return fmt.Errorf("log dir: %w", err)
	}
	f, err := os.OpenFile(d.Config.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	d.logFile = f
	log.SetOutput(io.MultiWriter(os.Stderr, f))
	return nil
}

// Serve binds the API address, then starts the scheduler, health checks
// and HTTP server, and blocks until shutdown. A bind failure returns before
// any job starts.
func (d *Daemon) Serve(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", d.Config.API.Host, d.Config.API.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		d.Close()
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	go d.Health.Run(ctx)

	if d.Config.Scheduler.Enabled {
		d.Runner.Start(ctx)
	}

	httpServer := &http.Server{
		Handler:      d.Server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	// Graceful shutdown on signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	fmt.Printf("rejectly serving on http://%s\n", ln.Addr())
	if d.Config.Scheduler.Enabled {
		fmt.Printf("  Jobs: %s\n", strings.Join(d.Runner.Jobs(), ", "))
	}
	if d.Config.Telemetry.Prometheus {
		fmt.Printf("  Metrics: http://%s/metrics\n", ln.Addr())
	}

	err = httpServer.Serve(ln)
	cancel()
	d.Runner.Wait()
	d.Close()
	if err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close shuts down all daemon resources.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.DB != nil {
		_ = d.DB.Close()
		d.DB = nil
	}
	if d.logFile != nil {
		log.SetOutput(os.Stderr)
		_ = d.logFile.Close()
		d.logFile = nil
	}
}

// parseWindow parses a UTC "HH:MM" time of day.
func parseWindow(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time of day %q", s)
	}
	return t.Hour(), t.Minute(), nil
}

// parseDuration parses a duration string, returning a fallback on error.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
