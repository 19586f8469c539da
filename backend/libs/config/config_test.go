package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type sample struct {
	HTTP struct {
		Port string `yaml:"port"`
	} `yaml:"http"`
	Fees struct {
		MinimumFee float64 `yaml:"minimumFee" env:"SAMPLE_FEES_MIN"`
		Percentage float64 `yaml:"percentage"`
	} `yaml:"fees"`
	PendingTTL time.Duration `yaml:"pendingTTL" env:"SAMPLE_PENDING_TTL"`
	Mock       bool          `yaml:"mock" env:"SAMPLE_MOCK"`
	Origins    []string      `yaml:"origins" env:"SAMPLE_ORIGINS"`
}

func (s *sample) Validate() error {
	if s.Fees.Percentage > 100 {
		return errors.New("percentage too large")
	}
	return nil
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http:\n  port: \"9000\"\nfees:\n  minimumFee: 5\n  percentage: 10\n"), 0o600))

	t.Setenv(defaultConfigPathEnv, path)
	t.Setenv("SAMPLE_FEES_MIN", "7.5")
	t.Setenv("SAMPLE_PENDING_TTL", "5m")
	t.Setenv("SAMPLE_MOCK", "true")
	t.Setenv("FEES_PERCENTAGE", "12")

	var cfg sample
	require.NoError(t, LoadConfig(&cfg))
	require.Equal(t, "9000", cfg.HTTP.Port)
	require.Equal(t, 7.5, cfg.Fees.MinimumFee)
	require.Equal(t, 12.0, cfg.Fees.Percentage)
	require.Equal(t, 5*time.Minute, cfg.PendingTTL)
	require.True(t, cfg.Mock)
}

func TestLoadConfigDurationSeconds(t *testing.T) {
	t.Setenv(defaultConfigPathEnv, "")
	t.Setenv("SAMPLE_PENDING_TTL", "90")

	var cfg sample
	require.NoError(t, LoadConfig(&cfg))
	require.Equal(t, 90*time.Second, cfg.PendingTTL)
}

func TestLoadConfigStringList(t *testing.T) {
	t.Setenv(defaultConfigPathEnv, "")
	t.Setenv("SAMPLE_ORIGINS", " https://a.example, ,https://b.example ")

	var cfg sample
	require.NoError(t, LoadConfig(&cfg))
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Origins)
}

func TestLoadConfigRunsValidator(t *testing.T) {
	t.Setenv(defaultConfigPathEnv, "")
	t.Setenv("FEES_PERCENTAGE", "150")

	var cfg sample
	require.Error(t, LoadConfig(&cfg))
}

func TestLoadConfigRejectsNonPointer(t *testing.T) {
	require.Error(t, LoadConfig(nil))
	require.Error(t, LoadConfig(sample{}))
}
