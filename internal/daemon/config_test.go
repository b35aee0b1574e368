package daemon

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rejectly/rejectly/internal/app/engagement"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "127.0.0.1")
	}
	if cfg.API.Port != 8420 {
		t.Errorf("API.Port = %d, want %d", cfg.API.Port, 8420)
	}
	if cfg.Quests.MaxActive != 2 {
		t.Errorf("Quests.MaxActive = %d, want 2", cfg.Quests.MaxActive)
	}
	if cfg.Notifications.BatchSize != 10 {
		t.Errorf("Notifications.BatchSize = %d, want 10", cfg.Notifications.BatchSize)
	}
	if cfg.Suggestions.RefundOnDecline {
		t.Error("RefundOnDecline should default to false")
	}
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	home := t.TempDir()
	t.Setenv("REJECTLY_HOME", home)
	t.Setenv("REJECTLY_TELEGRAM_TOKEN", "123:abc")

	file := `
[api]
port = 9000

[quests]
max_active = 3

[suggestions]
refund_on_decline = true
`
	if err := os.WriteFile(filepath.Join(home, "config.toml"), []byte(file), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.API.Port != 9000 || cfg.Quests.MaxActive != 3 || !cfg.Suggestions.RefundOnDecline {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("default host lost: %q", cfg.API.Host)
	}
	if cfg.Push.TelegramToken != "123:abc" {
		t.Errorf("env override not applied: %q", cfg.Push.TelegramToken)
	}

	t.Setenv("REJECTLY_API_PORT", "nope")
	if _, err := LoadConfig(); err == nil {
		t.Error("bad port override should fail")
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	t.Setenv("REJECTLY_HOME", t.TempDir())
	cfg := DefaultConfig()
	cfg.Scheduler.DailyWindow = "07:30"
	if err := SaveConfig(cfg); err != nil {
		t.Fatal(err)
	}
	got, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if got.Scheduler.DailyWindow != "07:30" {
		t.Errorf("DailyWindow = %q", got.Scheduler.DailyWindow)
	}
}

func TestParseWindow(t *testing.T) {
	tests := []struct {
		input      string
		hour, min  int
		shouldFail bool
	}{
		{"09:00", 9, 0, false},
		{"14:30", 14, 30, false},
		{"25:00", 0, 0, true},
		{"", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			h, m, err := parseWindow(tt.input)
			if (err != nil) != tt.shouldFail {
				t.Fatalf("err = %v", err)
			}
			if !tt.shouldFail && (h != tt.hour || m != tt.min) {
				t.Errorf("parseWindow(%q) = %d:%d", tt.input, h, m)
			}
		})
	}
}

func TestParseDuration(t *testing.T) {
	if got := parseDuration("", time.Minute); got != time.Minute {
		t.Errorf("empty = %v", got)
	}
	if got := parseDuration("garbage", time.Minute); got != time.Minute {
		t.Errorf("garbage = %v", got)
	}
	if got := parseDuration("45s", time.Minute); got != 45*time.Second {
		t.Errorf("45s = %v", got)
	}
}

func TestNewWithConfigWiresJobs(t *testing.T) {
	home := t.TempDir()
	cfg := DefaultConfig()
	cfg.Store.Dir = home
	cfg.Logging.File = filepath.Join(home, "rejectly.log")

	d, err := NewWithConfig(cfg, "test")
	if err != nil {
		t.Fatalf("NewWithConfig: %v", err)
	}
	defer d.Close()

	want := map[string]bool{
		engagement.JobDailyGeneration: true,
		engagement.JobMilestones:      true,
		engagement.JobTimeWarnings:    true,
		engagement.JobReminders:       true,
	}
	jobs := d.Runner.Jobs()
	if len(jobs) != len(want) {
		t.Fatalf("jobs = %v", jobs)
	}
	for _, j := range jobs {
		if !want[j] {
			t.Errorf("unexpected job %q", j)
		}
	}

	// No challenges or quests yet: every sweep runs clean.
	for _, j := range jobs {
		sum, err := d.Runner.RunNow(context.Background(), j)
		if err != nil || sum.Error != "" || sum.Processed != 0 {
			t.Errorf("RunNow(%s) = %+v, %v", j, sum, err)
		}
	}
}

func TestNewWithConfigRejectsBadWindow(t *testing.T) {
	home := t.TempDir()
	cfg := DefaultConfig()
	cfg.Store.Dir = home
	cfg.Logging.File = ""
	cfg.Scheduler.DailyWindow = "nine"

	if _, err := NewWithConfig(cfg, "test"); err == nil {
		t.Fatal("expected error for bad daily window")
	}
}

func TestServeReturnsBindError(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer taken.Close()

	home := t.TempDir()
	cfg := DefaultConfig()
	cfg.Store.Dir = home
	cfg.Logging.File = ""
	cfg.API.Host = "127.0.0.1"
	cfg.API.Port = taken.Addr().(*net.TCPAddr).Port

	d, err := NewWithConfig(cfg, "test")
	if err != nil {
		t.Fatalf("NewWithConfig: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- d.Serve(context.Background()) }()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("Serve on a taken port returned nil")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return with its port in use")
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	home := t.TempDir()
	cfg := DefaultConfig()
	cfg.Store.Dir = home
	cfg.Logging.File = ""
	cfg.API.Host = "127.0.0.1"
	cfg.API.Port = 0

	d, err := NewWithConfig(cfg, "test")
	if err != nil {
		t.Fatalf("NewWithConfig: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Serve(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not stop after cancel")
	}
}
