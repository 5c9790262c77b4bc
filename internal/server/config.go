package server

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// Config carries the runtime settings the orchestrator and gateway need.
// It is derived from a ServerConfig once at startup.
type Config struct {
	TurnTimeout   time.Duration
	HandInterval  time.Duration
	RevealTimeout time.Duration
	MinPlayers    int
	LedgerRetries int
	SeatPolicy    string
}

// DefaultConfig returns the runtime defaults.
func DefaultConfig() Config {
	return Config{
		TurnTimeout:   30 * time.Second,
		HandInterval:  2 * time.Second,
		RevealTimeout: 5 * time.Minute,
		MinPlayers:    2,
		LedgerRetries: 3,
		SeatPolicy:    "rotating",
	}
}

// ServerConfig represents the complete server configuration
type ServerConfig struct {
	Server *ServerSettings `hcl:"server,block"`
	Fees   *FeeSettings    `hcl:"fees,block"`
	Game   *GameSettings   `hcl:"game,block"`
	Tables []TableConfig   `hcl:"table,block"`
}

// ServerSettings contains server-level configuration
type ServerSettings struct {
	Address     string `hcl:"address,optional"`
	Port        int    `hcl:"port,optional"`
	LogLevel    string `hcl:"log_level,optional"`
	HistoryPath string `hcl:"history_path,optional"`
}

// FeeSettings configures the per-hand fee calculator.
type FeeSettings struct {
	CostUnits        int64 `hcl:"cost_units,optional"`
	UnitPrice        int64 `hcl:"unit_price,optional"`
	MarkupBps        int64 `hcl:"markup_bps,optional"`
	FloorFee         int64 `hcl:"floor_fee,optional"`
	SafetyMultiplier int64 `hcl:"safety_multiplier,optional"`
}

// GameSettings contains orchestration-level configuration.
type GameSettings struct {
	TurnTimeoutSeconds   int    `hcl:"turn_timeout_seconds,optional"`
	HandIntervalSeconds  int    `hcl:"hand_interval_seconds,optional"`
	RevealTimeoutSeconds int    `hcl:"reveal_timeout_seconds,optional"`
	MinPlayers           int    `hcl:"min_players,optional"`
	LedgerRetries        int    `hcl:"ledger_retries,optional"`
	SeatPolicy           string `hcl:"seat_policy,optional"`
}

// TableConfig defines a table to create at startup.
type TableConfig struct {
	Name       string `hcl:"name,label"`
	SmallBlind int64  `hcl:"small_blind"`
	BigBlind   int64  `hcl:"big_blind"`
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Server: &ServerSettings{
			Address:  "localhost",
			Port:     8080,
			LogLevel: "info",
		},
		Game: &GameSettings{
			TurnTimeoutSeconds:   30,
			HandIntervalSeconds:  2,
			RevealTimeoutSeconds: 300,
			MinPlayers:           2,
			LedgerRetries:        3,
			SeatPolicy:           "rotating",
		},
		Tables: []TableConfig{
			{
				Name:       "main",
				SmallBlind: 1000,
				BigBlind:   2000,
			},
		},
	}
}

// LoadServerConfig loads server configuration from HCL file
func LoadServerConfig(filename string) (*ServerConfig, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultServerConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config ServerConfig
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	// Apply defaults for missing values
	if config.Server == nil {
		config.Server = &ServerSettings{}
	}
	if config.Game == nil {
		config.Game = &GameSettings{}
	}
	if config.Server.Address == "" {
		config.Server.Address = "localhost"
	}
	if config.Server.Port == 0 {
		config.Server.Port = 8080
	}
	if config.Server.LogLevel == "" {
		config.Server.LogLevel = "info"
	}
	if config.Game.TurnTimeoutSeconds == 0 {
		config.Game.TurnTimeoutSeconds = 30
	}
	if config.Game.HandIntervalSeconds == 0 {
		config.Game.HandIntervalSeconds = 2
	}
	if config.Game.RevealTimeoutSeconds == 0 {
		config.Game.RevealTimeoutSeconds = 300
	}
	if config.Game.MinPlayers == 0 {
		config.Game.MinPlayers = 2
	}
	if config.Game.LedgerRetries == 0 {
		config.Game.LedgerRetries = 3
	}
	if config.Game.SeatPolicy == "" {
		config.Game.SeatPolicy = "rotating"
	}

	return &config, nil
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	for _, table := range c.Tables {
		if table.SmallBlind <= 0 {
			return fmt.Errorf("table %s: small blind must be positive", table.Name)
		}
		if table.BigBlind <= table.SmallBlind {
			return fmt.Errorf("table %s: big blind must be greater than small blind", table.Name)
		}
	}

	if c.Game.MinPlayers < 2 {
		return fmt.Errorf("min_players must be at least 2, got %d", c.Game.MinPlayers)
	}

	return nil
}

// Runtime converts the file configuration into orchestrator settings.
func (c *ServerConfig) Runtime() Config {
	return Config{
		TurnTimeout:   time.Duration(c.Game.TurnTimeoutSeconds) * time.Second,
		HandInterval:  time.Duration(c.Game.HandIntervalSeconds) * time.Second,
		RevealTimeout: time.Duration(c.Game.RevealTimeoutSeconds) * time.Second,
		MinPlayers:    c.Game.MinPlayers,
		LedgerRetries: c.Game.LedgerRetries,
		SeatPolicy:    c.Game.SeatPolicy,
	}
}

// GetServerAddress returns the full server address
func (c *ServerConfig) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}
