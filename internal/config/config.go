package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the full configuration tree. It is loaded once at startup and
// handed to constructors as immutable values; nothing reads it implicitly.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	XP        XPConfig        `mapstructure:"xp"`
	Progress  ProgressConfig  `mapstructure:"progress"`
	Reminder  ReminderConfig  `mapstructure:"reminder"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type DatabaseConfig struct {
	// Driver selects the store backend: "sqlite", "postgres" or "memory".
	Driver string `mapstructure:"driver"`
	// DSN for postgres; path for sqlite. Secrets come from the environment
	// (.env), not the config file.
	DSN string `mapstructure:"dsn"`
}

// SchedulerConfig holds the SM-2 engine tunables.
type SchedulerConfig struct {
	PassThreshold int     `mapstructure:"pass_threshold"`
	EaseFloor     float64 `mapstructure:"ease_floor"`
	EaseStart     float64 `mapstructure:"ease_start"`
	// EaseCeiling caps the ease factor; 0 disables the cap.
	EaseCeiling     float64         `mapstructure:"ease_ceiling"`
	MaxIntervalDays int             `mapstructure:"max_interval_days"`
	LeechThreshold  int             `mapstructure:"leech_threshold"`
	LadderSteps     []time.Duration `mapstructure:"ladder_steps"`
}

// XPConfig maps review outcomes to experience points.
type XPConfig struct {
	// BaseXP is indexed by difficulty-1 (difficulty 1-5).
	BaseXP []int `mapstructure:"base_xp"`
	// GradeMultipliers is indexed by grade (0-5). Failing grades are
	// ignored here; they award ParticipationXP instead.
	GradeMultipliers []float64 `mapstructure:"grade_multipliers"`
	// ParticipationXP is awarded on a failing grade. Never zero.
	ParticipationXP int `mapstructure:"participation_xp"`
}

type ProgressConfig struct {
	// LevelThresholds[i] is the total XP required for level i+1,
	// ascending. Level 1 starts at 0.
	LevelThresholds []int   `mapstructure:"level_thresholds"`
	WindowSize      int     `mapstructure:"window_size"`
	WeaknessBelow   float64 `mapstructure:"weakness_below"`
	StrengthAtLeast float64 `mapstructure:"strength_at_least"`
	MinAttempts     int     `mapstructure:"min_attempts"`
}

type ReminderConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Interval  time.Duration `mapstructure:"interval"`
	StartHour int           `mapstructure:"start_hour"`
	EndHour   int           `mapstructure:"end_hour"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "logs/drillbot.log")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 30)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "data/drillbot.db")

	v.SetDefault("scheduler.pass_threshold", 3)
	v.SetDefault("scheduler.ease_floor", 1.3)
	v.SetDefault("scheduler.ease_start", 2.5)
	v.SetDefault("scheduler.ease_ceiling", 0.0)
	v.SetDefault("scheduler.max_interval_days", 365)
	v.SetDefault("scheduler.leech_threshold", 8)
	v.SetDefault("scheduler.ladder_steps", []string{"1m", "10m", "24h"})

	v.SetDefault("xp.base_xp", []int{10, 15, 20, 30, 50})
	v.SetDefault("xp.grade_multipliers", []float64{0, 0, 0, 1.0, 1.25, 1.5})
	v.SetDefault("xp.participation_xp", 2)

	v.SetDefault("progress.level_thresholds", []int{0, 100, 250, 500, 1000, 2000, 4000, 8000})
	v.SetDefault("progress.window_size", 20)
	v.SetDefault("progress.weakness_below", 0.6)
	v.SetDefault("progress.strength_at_least", 0.85)
	v.SetDefault("progress.min_attempts", 5)

	v.SetDefault("reminder.enabled", true)
	v.SetDefault("reminder.interval", "1h")
	v.SetDefault("reminder.start_hour", 8)
	v.SetDefault("reminder.end_hour", 22)
}

// Load reads the YAML config at path. An empty path loads pure defaults;
// a missing file at an explicit path is an error. DRILLBOT_* environment
// variables override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("DRILLBOT")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	s := c.Scheduler
	if s.PassThreshold < 0 || s.PassThreshold > 5 {
		return fmt.Errorf("config: pass_threshold %d out of [0, 5]", s.PassThreshold)
	}
	if s.EaseFloor <= 0 || s.EaseStart < s.EaseFloor {
		return fmt.Errorf("config: ease_start %.2f must be >= ease_floor %.2f > 0", s.EaseStart, s.EaseFloor)
	}
	if s.EaseCeiling != 0 && s.EaseCeiling < s.EaseStart {
		return fmt.Errorf("config: ease_ceiling %.2f must be >= ease_start %.2f or 0", s.EaseCeiling, s.EaseStart)
	}
	if s.MaxIntervalDays < 1 {
		return fmt.Errorf("config: max_interval_days %d must be positive", s.MaxIntervalDays)
	}
	if s.LeechThreshold < 1 {
		return fmt.Errorf("config: leech_threshold %d must be positive", s.LeechThreshold)
	}
	if len(s.LadderSteps) == 0 {
		return fmt.Errorf("config: ladder_steps must not be empty")
	}
	for i, step := range s.LadderSteps {
		if step <= 0 {
			return fmt.Errorf("config: ladder step %d: non-positive duration %s", i, step)
		}
	}
	if len(c.XP.BaseXP) != 5 {
		return fmt.Errorf("config: base_xp needs 5 entries (difficulty 1-5), got %d", len(c.XP.BaseXP))
	}
	if len(c.XP.GradeMultipliers) != 6 {
		return fmt.Errorf("config: grade_multipliers needs 6 entries (grade 0-5), got %d", len(c.XP.GradeMultipliers))
	}
	if c.XP.ParticipationXP < 1 {
		return fmt.Errorf("config: participation_xp %d must be at least 1", c.XP.ParticipationXP)
	}
	if len(c.Progress.LevelThresholds) == 0 || c.Progress.LevelThresholds[0] != 0 {
		return fmt.Errorf("config: level_thresholds must start at 0")
	}
	for i := 1; i < len(c.Progress.LevelThresholds); i++ {
		if c.Progress.LevelThresholds[i] <= c.Progress.LevelThresholds[i-1] {
			return fmt.Errorf("config: level_thresholds must be strictly ascending")
		}
	}
	if c.Progress.WindowSize < 1 {
		return fmt.Errorf("config: window_size %d must be positive", c.Progress.WindowSize)
	}
	return nil
}
