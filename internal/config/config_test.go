package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir()) // no .env

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8050, cfg.Server.Port)
	assert.Equal(t, SourceFile, cfg.Dataset.Source)
	assert.Equal(t, "data.csv", cfg.Dataset.Path)
	assert.Equal(t, 500, cfg.Dataset.PreviewRows)
	assert.Equal(t, 10, cfg.Dataset.PageSize)
	assert.Equal(t, Baselines{Clear: 218, Rain: 119, Snow: 27.8}, cfg.Dashboard.Baselines)
	assert.Equal(t, DefaultFatalityLookups(), cfg.Dashboard.FatalityLookups)
	assert.Equal(t, "CRASH_MONTH", cfg.Dashboard.DefaultTimeUnit)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("DATASET_SOURCE", "Postgres")
	t.Setenv("DB_CONN_MAX_LIFETIME", "1m")
	t.Setenv("WEATHER_BASELINE_SNOW", "30.5")
	t.Setenv("DATASET_PAGE_SIZE", "not-a-number")
	t.Setenv("FATALITY_CAUSE_LOOKUPS", "SPEEDING=EXCEEDING AUTHORIZED SPEED LIMIT")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, SourcePostgres, cfg.Dataset.Source)
	assert.Equal(t, time.Minute, cfg.Database.ConnMaxLifetime)
	assert.Equal(t, 30.5, cfg.Dashboard.Baselines.Snow)
	assert.Equal(t, 10, cfg.Dataset.PageSize)
	assert.Equal(t, []FatalityLookup{{Title: "SPEEDING", Key: "EXCEEDING AUTHORIZED SPEED LIMIT"}}, cfg.Dashboard.FatalityLookups)
	assert.Contains(t, cfg.Database.DSN(), "dbname=crashes")
}

func TestLoadConfig_BadLookups(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("FATALITY_CAUSE_LOOKUPS", "=KEY")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestParseFatalityLookups(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    []FatalityLookup
		wantErr bool
	}{
		{name: "empty uses defaults", raw: "  ", want: DefaultFatalityLookups()},
		{name: "bare entry", raw: "DISREGARDING STOP SIGN", want: []FatalityLookup{{"DISREGARDING STOP SIGN", "DISREGARDING STOP SIGN"}}},
		{name: "pairs and blanks", raw: "A=B; ;C = D", want: []FatalityLookup{{"A", "B"}, {"C", "D"}}},
		{name: "missing key", raw: "A=", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseFatalityLookups(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:  ServerConfig{Port: 8050},
			Dataset: DatasetConfig{Source: SourceFile, Path: "data.csv", PageSize: 10},
			Dashboard: DashboardConfig{
				Baselines: Baselines{Clear: DefaultClearDays, Rain: DefaultRainDays, Snow: DefaultSnowDays},
			},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"file without path", func(c *Config) { c.Dataset.Path = "" }},
		{"postgres without db", func(c *Config) { c.Dataset.Source = SourcePostgres }},
		{"unknown source", func(c *Config) { c.Dataset.Source = "s3" }},
		{"negative preview", func(c *Config) { c.Dataset.PreviewRows = -1 }},
		{"zero page size", func(c *Config) { c.Dataset.PageSize = 0 }},
		{"zero baseline", func(c *Config) { c.Dashboard.Baselines.Rain = 0 }},
	}

	require.NoError(t, valid().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
