package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Database.Driver != "sqlite" {
		t.Errorf("driver = %q, want sqlite", cfg.Database.Driver)
	}
	if cfg.Scheduler.PassThreshold != 3 {
		t.Errorf("pass_threshold = %d, want 3", cfg.Scheduler.PassThreshold)
	}
	if cfg.Scheduler.EaseFloor != 1.3 || cfg.Scheduler.EaseStart != 2.5 {
		t.Errorf("ease floor/start = %v/%v, want 1.3/2.5", cfg.Scheduler.EaseFloor, cfg.Scheduler.EaseStart)
	}
	if cfg.Scheduler.MaxIntervalDays != 365 || cfg.Scheduler.LeechThreshold != 8 {
		t.Errorf("max interval/leech = %d/%d, want 365/8", cfg.Scheduler.MaxIntervalDays, cfg.Scheduler.LeechThreshold)
	}
	wantSteps := []time.Duration{time.Minute, 10 * time.Minute, 24 * time.Hour}
	if len(cfg.Scheduler.LadderSteps) != len(wantSteps) {
		t.Fatalf("ladder steps = %v, want %v", cfg.Scheduler.LadderSteps, wantSteps)
	}
	for i, want := range wantSteps {
		if cfg.Scheduler.LadderSteps[i] != want {
			t.Errorf("ladder step %d = %v, want %v", i, cfg.Scheduler.LadderSteps[i], want)
		}
	}
	if cfg.XP.ParticipationXP != 2 || len(cfg.XP.BaseXP) != 5 || len(cfg.XP.GradeMultipliers) != 6 {
		t.Errorf("xp defaults = %+v", cfg.XP)
	}
	if cfg.Progress.WindowSize != 20 || cfg.Progress.LevelThresholds[0] != 0 {
		t.Errorf("progress defaults = %+v", cfg.Progress)
	}
	if !cfg.Reminder.Enabled || cfg.Reminder.Interval != time.Hour {
		t.Errorf("reminder defaults = %+v", cfg.Reminder)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
database:
  driver: memory
scheduler:
  leech_threshold: 5
  ladder_steps: ["30s", "5m"]
progress:
  window_size: 10
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Driver != "memory" {
		t.Errorf("driver = %q, want memory", cfg.Database.Driver)
	}
	if cfg.Scheduler.LeechThreshold != 5 {
		t.Errorf("leech_threshold = %d, want 5", cfg.Scheduler.LeechThreshold)
	}
	if len(cfg.Scheduler.LadderSteps) != 2 || cfg.Scheduler.LadderSteps[0] != 30*time.Second {
		t.Errorf("ladder steps = %v, want [30s 5m]", cfg.Scheduler.LadderSteps)
	}
	if cfg.Progress.WindowSize != 10 {
		t.Errorf("window_size = %d, want 10", cfg.Progress.WindowSize)
	}
	// Untouched sections keep their defaults.
	if cfg.Scheduler.PassThreshold != 3 {
		t.Errorf("pass_threshold = %d, want default 3", cfg.Scheduler.PassThreshold)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load(absent file) succeeded, want error")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantMsg string
	}{
		{
			name:    "pass threshold out of range",
			yaml:    "scheduler:\n  pass_threshold: 9\n",
			wantMsg: "pass_threshold",
		},
		{
			name:    "ease start below floor",
			yaml:    "scheduler:\n  ease_start: 1.0\n",
			wantMsg: "ease_start",
		},
		{
			name:    "ceiling below start",
			yaml:    "scheduler:\n  ease_ceiling: 2.0\n",
			wantMsg: "ease_ceiling",
		},
		{
			name:    "empty ladder",
			yaml:    "scheduler:\n  ladder_steps: []\n",
			wantMsg: "ladder_steps",
		},
		{
			name:    "zero participation xp",
			yaml:    "xp:\n  participation_xp: 0\n",
			wantMsg: "participation_xp",
		},
		{
			name:    "thresholds not starting at zero",
			yaml:    "progress:\n  level_thresholds: [50, 100]\n",
			wantMsg: "level_thresholds",
		},
		{
			name:    "thresholds not ascending",
			yaml:    "progress:\n  level_thresholds: [0, 200, 100]\n",
			wantMsg: "strictly ascending",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.yaml), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			_, err := Load(path)
			if err == nil {
				t.Fatal("Load succeeded, want validation error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q, want mention of %q", err, tt.wantMsg)
			}
		})
	}
}
