package main

import (
	"testing"
	"time"

	"github.com/hervehildenbrand/attack-radar/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoadConfig_Flags(t *testing.T) {
	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{
		"--buffer-capacity=24",
		"--spawn-min=500ms",
		"--spawn-max=1s",
		"--classifier-url=",
		"--auto-activate",
	}))

	cfg, err := loadConfig(cmd)
	require.NoError(t, err)

	assert.Equal(t, 24, cfg.BufferCapacity)
	assert.Equal(t, 500*time.Millisecond, cfg.SpawnMin)
	assert.Equal(t, time.Second, cfg.SpawnMax)
	assert.Equal(t, "", cfg.ClassifierURL)
	assert.True(t, cfg.AutoActivate)
	assert.Equal(t, 8, cfg.SeedCount)
}

func TestLoadConfig_EnvironmentBelowFlags(t *testing.T) {
	t.Setenv("ATTACK_RADAR_SEED_COUNT", "4")
	t.Setenv("ATTACK_RADAR_BUFFER_CAPACITY", "10")

	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--buffer-capacity=12"}))

	cfg, err := loadConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.SeedCount)
	assert.Equal(t, 12, cfg.BufferCapacity)
}

func TestLoadConfig_Invalid(t *testing.T) {
	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--spawn-min=3s", "--spawn-max=1s"}))

	_, err := loadConfig(cmd)
	assert.ErrorContains(t, err, "spawn_max")
}

func TestNewLogger(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		logger, err := newLogger(level)
		require.NoError(t, err, level)
		assert.NotNil(t, logger)
	}
}

func TestLogFrame(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	event := models.NewEventView(models.AttackEvent{ID: "ATK-10042", ThreatLevel: models.ThreatHigh})
	logFrame(logger, models.Frame{Type: models.FrameSnapshot, RunID: "r1", Count: 8})
	logFrame(logger, models.Frame{Type: "inserted", Event: &event, Evicted: []string{"ATK-10001"}})
	logFrame(logger, models.Frame{Type: "reset", RunID: "r2"})

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, "SNAPSHOT", entries[0].Message)
	assert.Equal(t, int64(8), entries[0].ContextMap()["count"])
	assert.Equal(t, "inserted", entries[1].Message)
	assert.Equal(t, "ATK-10042", entries[1].ContextMap()["id"])
	assert.Equal(t, "#ff0044", entries[1].ContextMap()["color"])
	assert.Equal(t, "reset", entries[2].Message)
}

func TestRootCmd_HasWatch(t *testing.T) {
	cmd, _, err := newRootCmd().Find([]string{"watch"})
	require.NoError(t, err)
	assert.Equal(t, "watch", cmd.Name())
	assert.NotNil(t, cmd.Flags().Lookup("url"))
}
