package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadServerConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadServerConfig(filepath.Join(t.TempDir(), "absent.hcl"))
	require.NoError(t, err)

	assert.Equal(t, "localhost:8080", cfg.GetServerAddress())
	assert.Equal(t, "rotating", cfg.Game.SeatPolicy)
	require.NoError(t, cfg.Validate())
}

func TestLoadServerConfigFromHCL(t *testing.T) {
	content := `
server {
  address      = "0.0.0.0"
  port         = 9090
  log_level    = "debug"
  history_path = "hands.db"
}

fees {
  cost_units        = 10
  unit_price        = 8
  markup_bps        = 2500
  floor_fee         = 10
  safety_multiplier = 100
}

game {
  turn_timeout_seconds = 15
  min_players          = 3
  seat_policy          = "fixed-seat"
}

table "main" {
  small_blind = 1000
  big_blind   = 2000
}

table "high" {
  small_blind = 10000
  big_blind   = 20000
}
`
	path := filepath.Join(t.TempDir(), "feltwire.hcl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadServerConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "0.0.0.0:9090", cfg.GetServerAddress())
	assert.Equal(t, "hands.db", cfg.Server.HistoryPath)
	require.NotNil(t, cfg.Fees)
	assert.Equal(t, int64(10), cfg.Fees.CostUnits)

	require.Len(t, cfg.Tables, 2)
	assert.Equal(t, "main", cfg.Tables[0].Name)
	assert.Equal(t, int64(20000), cfg.Tables[1].BigBlind)

	runtime := cfg.Runtime()
	assert.Equal(t, 15*time.Second, runtime.TurnTimeout)
	assert.Equal(t, 3, runtime.MinPlayers)
	assert.Equal(t, "fixed-seat", runtime.SeatPolicy)
	// Unset values fall back to defaults
	assert.Equal(t, 2*time.Second, runtime.HandInterval)
	assert.Equal(t, 3, runtime.LedgerRetries)
}

func TestLoadServerConfigInvalidHCL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.hcl")
	require.NoError(t, os.WriteFile(path, []byte("server {"), 0o644))

	_, err := LoadServerConfig(path)
	assert.Error(t, err)
}

func TestValidateRejectsBadTables(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.Tables[0].SmallBlind = 2000
	cfg.Tables[0].BigBlind = 1000
	assert.Error(t, cfg.Validate())

	cfg = DefaultServerConfig()
	cfg.Server.Port = 70000
	assert.Error(t, cfg.Validate())

	cfg = DefaultServerConfig()
	cfg.Game.MinPlayers = 1
	assert.Error(t, cfg.Validate())
}
