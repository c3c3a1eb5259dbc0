package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, int64(2000), cfg.Thresholds.FollowerMin)
	assert.Equal(t, int64(50000), cfg.Thresholds.FollowerMax)
	assert.Equal(t, 1000.0, cfg.Thresholds.PrizeMin)
	assert.Equal(t, 100000.0, cfg.Thresholds.PrizeMax)
	assert.Equal(t, 168.0, cfg.Thresholds.MaxDurationHours)
	assert.Equal(t, 0.3, cfg.Thresholds.RelevanceThreshold)
	assert.Equal(t, 90.0, cfg.Processing.AlertPercentile)
	assert.Equal(t, "18:00", cfg.Processing.DigestSendTime)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("HACKSIGNAL_THRESHOLDS_FOLLOWER_MIN", "500")
	t.Setenv("HACKSIGNAL_PROCESSING_DIGEST_SEND_TIME", "09:30")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, int64(500), cfg.Thresholds.FollowerMin)
	assert.Equal(t, "09:30", cfg.Processing.DigestSendTime)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Thresholds: ThresholdsConfig{
				FollowerMin:        2000,
				FollowerMax:        50000,
				PrizeMin:           1000,
				PrizeMax:           100000,
				MaxDurationHours:   168,
				RelevanceThreshold: 0.3,
			},
			Processing: ProcessingConfig{
				AlertPercentile: 90,
				DigestSendTime:  "18:00",
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"negative follower min", func(c *Config) { c.Thresholds.FollowerMin = -1 }, "follower_min"},
		{"inverted follower band", func(c *Config) { c.Thresholds.FollowerMax = 100 }, "follower_max"},
		{"inverted prize band", func(c *Config) { c.Thresholds.PrizeMax = 10 }, "prize_max"},
		{"zero duration cap", func(c *Config) { c.Thresholds.MaxDurationHours = 0 }, "max_duration_hours"},
		{"threshold above one", func(c *Config) { c.Thresholds.RelevanceThreshold = 1.5 }, "relevance_threshold"},
		{"percentile zero", func(c *Config) { c.Processing.AlertPercentile = 0 }, "percentile"},
		{"percentile over 100", func(c *Config) { c.Processing.AlertPercentile = 101 }, "percentile"},
		{"bad send time", func(c *Config) { c.Processing.DigestSendTime = "24:61" }, "clock"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		hour    int
		minute  int
		wantErr bool
	}{
		{"18:00", 18, 0, false},
		{"00:00", 0, 0, false},
		{"23:59", 23, 59, false},
		{"9:05", 9, 5, false},
		{"24:00", 0, 0, true},
		{"12:60", 0, 0, true},
		{"noon", 0, 0, true},
	}

	for _, tt := range tests {
		h, m, err := ParseClock(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.hour, h)
		assert.Equal(t, tt.minute, m)
	}
}

func TestInitLogger(t *testing.T) {
	assert.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	assert.Error(t, InitLogger(LogConfig{Level: "nope", Format: "json"}))
}
