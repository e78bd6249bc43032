package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/media-luna/sonora/internal/config"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, config.Default().Validate())
}

func TestValidateRejectsLowFanValue(t *testing.T) {
	cfg := config.Default()
	cfg.Hashing.FanValue = 1
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrConfig)
}

func TestValidateRejectsInvertedTimeDeltaBounds(t *testing.T) {
	cfg := config.Default()
	cfg.Hashing.MinTimeDelta = 300
	cfg.Hashing.MaxTimeDelta = 200
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsBadConnectivityMask(t *testing.T) {
	cfg := config.Default()
	cfg.Peaks.ConnectivityMask = 3
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsNonPowerOfTwoWindow(t *testing.T) {
	cfg := config.Default()
	cfg.Spectrogram.WindowSize = 1000
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsZeroPoolSize(t *testing.T) {
	cfg := config.Default()
	cfg.Store.PoolSize = 0
	assert.Error(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load("/nonexistent/path/config.yaml")
	require.Error(t, err)
}
