package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"seabattle/internal/game"
	"seabattle/internal/match"
)

const (
	FileName  = "seabattle.cfg.json"
	EnvPrefix = "SEABATTLE"
)

// GameConfig holds board, fleet and match settings.
type GameConfig struct {
	BoardSize           int    `json:"boardSize" mapstructure:"size"`
	Ships               int    `json:"ships" mapstructure:"ships"`
	MinShipSize         int    `json:"minShipSize" mapstructure:"minShipSize"`
	MaxShipSize         int    `json:"maxShipSize" mapstructure:"maxShipSize"`
	MaxAttempts         int    `json:"maxAttempts" mapstructure:"maxAttempts"`
	Seed                uint64 `json:"seed" mapstructure:"seed"`
	ForfeitInvalidShots bool   `json:"forfeitInvalidShots" mapstructure:"forfeitInvalidShots"`
}

// ProofConfig holds shot proof settings
type ProofConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	KeysDir string `json:"keysDir" mapstructure:"keysDir"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Addr        string `json:"addr" mapstructure:"addr"`
	MaxSessions int    `json:"maxSessions" mapstructure:"maxSessions"`
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file. A missing file
// leaves the defaults in place.
func Load(configDir string) error {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logFormat", "console")

	viper.SetDefault("board.size", 10)

	viper.SetDefault("fleet.ships", game.DefaultFleet.Ships)
	viper.SetDefault("fleet.minShipSize", game.DefaultFleet.MinShipSize)
	viper.SetDefault("fleet.maxShipSize", game.DefaultFleet.MaxShipSize)
	viper.SetDefault("fleet.maxAttempts", game.DefaultMaxAttempts)

	viper.SetDefault("match.seed", 0)
	viper.SetDefault("match.forfeitInvalidShots", true)

	viper.SetDefault("proofs.enabled", false)
	viper.SetDefault("proofs.keysDir", "./keys")

	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("server.maxSessions", 64)

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// ConfigFileUsed returns the path of the loaded config file, empty when
// running on defaults.
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}

// GetGameConfig returns the board, fleet and match settings.
func GetGameConfig() GameConfig {
	return GameConfig{
		BoardSize:           viper.GetInt("board.size"),
		Ships:               viper.GetInt("fleet.ships"),
		MinShipSize:         viper.GetInt("fleet.minShipSize"),
		MaxShipSize:         viper.GetInt("fleet.maxShipSize"),
		MaxAttempts:         viper.GetInt("fleet.maxAttempts"),
		Seed:                viper.GetUint64("match.seed"),
		ForfeitInvalidShots: viper.GetBool("match.forfeitInvalidShots"),
	}
}

// GetProofConfig returns the shot proof settings.
func GetProofConfig() ProofConfig {
	return ProofConfig{
		Enabled: viper.GetBool("proofs.enabled"),
		KeysDir: viper.GetString("proofs.keysDir"),
	}
}

// GetServerConfig returns the HTTP server settings.
func GetServerConfig() ServerConfig {
	return ServerConfig{
		Addr:        viper.GetString("server.addr"),
		MaxSessions: viper.GetInt("server.maxSessions"),
	}
}

// Match converts g into a match configuration.
func (g GameConfig) Match() match.Config {
	return match.Config{
		BoardSize: g.BoardSize,
		Fleet: game.FleetSpec{
			Ships:       g.Ships,
			MinShipSize: g.MinShipSize,
			MaxShipSize: g.MaxShipSize,
			MaxAttempts: g.MaxAttempts,
		},
		ForfeitInvalidShots: g.ForfeitInvalidShots,
	}
}

func (g GameConfig) Validate() error {
	return g.Match().Validate()
}

func (s ServerConfig) Validate() error {
	if s.MaxSessions < 1 {
		return fmt.Errorf("%w: server.maxSessions %d", game.ErrInvalidConfiguration, s.MaxSessions)
	}
	return nil
}
