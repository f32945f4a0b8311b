package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/picogrid/swarm-nav/pkg/logger"
	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML or TOML file, chosen by
// extension. Fields missing from the file keep their defaults.
func LoadConfig(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config := GetDefaultConfig()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), config); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// LoadConfigOrDefault loads config from file or returns the default, with
// environment overrides applied either way
func LoadConfigOrDefault(path string) (*Config, error) {
	var config *Config
	var err error

	if path != "" {
		config, err = LoadConfig(path)
		if err != nil {
			logger.Warnf("Could not load config from %s: %v", path, err)
			config = nil
		}
	}

	if config == nil {
		defaultPaths := []string{
			"swarm.yaml",
			"swarm.toml",
			"config.yaml",
			filepath.Join(".", "config.toml"),
		}
		for _, p := range defaultPaths {
			if _, statErr := os.Stat(p); statErr != nil {
				continue
			}
			if config, err = LoadConfig(p); err == nil {
				logger.Infof("Loaded config from: %s", p)
				break
			}
			config = nil
		}
	}

	if config == nil {
		logger.Debug("Using default configuration")
		config = GetDefaultConfig()
	}

	MergeWithEnvironment(config)
	return config, nil
}

// SaveConfig saves configuration as YAML or TOML, chosen by extension
func SaveConfig(config *Config, path string) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	var data []byte
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		out, err := yaml.Marshal(config)
		if err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
		data = out
	case ".toml":
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(config); err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
		data = buf.Bytes()
	default:
		return fmt.Errorf("unsupported config format %q", ext)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}

// LoadConfigWithOverrides loads config and applies both environment and CLI
// overrides
func LoadConfigWithOverrides(path string, cliOverrides map[string]interface{}) (*Config, error) {
	config, err := LoadConfigOrDefault(path)
	if err != nil {
		return nil, err
	}

	if cliOverrides != nil {
		MergeWithCLIOverrides(config, cliOverrides)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed after overrides: %w", err)
	}
	return config, nil
}

// MergeWithCLIOverrides applies scenario parameter overrides. Unknown keys
// and values of the wrong type are ignored.
func MergeWithCLIOverrides(config *Config, overrides map[string]interface{}) {
	for key, value := range overrides {
		switch key {
		case "agent_count":
			if count, ok := toInt(value); ok && count > 0 {
				config.Swarm.AgentCount = count
			}
		case "altitude":
			if alt, ok := toFloat(value); ok && alt > 0 {
				config.Swarm.Altitude = alt
			}
		case "spacing":
			if spacing, ok := toFloat(value); ok && spacing > 0 {
				config.Swarm.Spacing = spacing
			}
		case "seed":
			if seed, ok := toInt(value); ok {
				config.Simulation.Seed = int64(seed)
			}
		case "time_scale":
			if scale, ok := toFloat(value); ok && scale > 0 {
				config.Simulation.TimeScale = scale
			}
		case "max_duration":
			if d, ok := toFloat(value); ok && d >= 0 {
				config.Simulation.MaxDuration = d
			}
		case "packet_loss":
			if p, ok := toFloat(value); ok && p >= 0 && p <= 1 {
				config.Link.PacketLoss = p
			}
		case "corruption":
			if p, ok := toFloat(value); ok && p >= 0 && p <= 1 {
				config.Link.Corruption = p
			}
		case "comm_loss_after":
			if d, ok := toFloat(value); ok && d >= 0 {
				config.Navigation.CommLossAfter = d
			}
		case "success_threshold":
			if p, ok := toFloat(value); ok && p > 0 && p <= 1 {
				config.Navigation.SuccessThreshold = p
			}
		case "formation_hold":
			if d, ok := toFloat(value); ok && d >= 0 {
				config.Timing.FormationHold = d
			}
		case "formations":
			switch v := value.(type) {
			case []string:
				config.Scenario.Formations = v
			case string:
				config.Scenario.Formations = splitList(v)
			}
		case "pattern":
			if name, ok := value.(string); ok {
				config.Scenario.Pattern = name
			}
		case "land_at_end":
			if land, ok := value.(bool); ok {
				config.Scenario.LandAtEnd = land
			}
		case "enable_aar":
			if enable, ok := value.(bool); ok {
				config.Logging.EnableAAR = enable
			}
		case "event_db":
			if path, ok := value.(string); ok {
				config.Logging.EventDB = path
			}
		case "log_level":
			if level, ok := value.(string); ok && validLevel(strings.ToLower(level)) {
				config.Logging.Level = strings.ToLower(level)
			}
		}
	}
}

// MergeWithEnvironment merges config with SWARM_* environment variables
func MergeWithEnvironment(config *Config) {
	if v := os.Getenv("SWARM_AGENT_COUNT"); v != "" {
		if count, err := strconv.Atoi(v); err == nil && count > 0 {
			config.Swarm.AgentCount = count
		}
	}

	if v := os.Getenv("SWARM_ALTITUDE"); v != "" {
		if alt, err := strconv.ParseFloat(v, 64); err == nil && alt > 0 {
			config.Swarm.Altitude = alt
		}
	}

	if v := os.Getenv("SWARM_SPACING"); v != "" {
		if spacing, err := strconv.ParseFloat(v, 64); err == nil && spacing > 0 {
			config.Swarm.Spacing = spacing
		}
	}

	if v := os.Getenv("SWARM_SEED"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			config.Simulation.Seed = seed
		}
	}

	if v := os.Getenv("SWARM_TICK_RATE"); v != "" {
		if rate, err := strconv.ParseFloat(v, 64); err == nil && rate > 0 {
			config.Simulation.TickRate = rate
		}
	}

	if v := os.Getenv("SWARM_TIME_SCALE"); v != "" {
		if scale, err := strconv.ParseFloat(v, 64); err == nil && scale > 0 {
			config.Simulation.TimeScale = scale
		}
	}

	if v := os.Getenv("SWARM_PACKET_LOSS"); v != "" {
		if p, err := strconv.ParseFloat(v, 64); err == nil && p >= 0 && p <= 1 {
			config.Link.PacketLoss = p
		}
	}

	if v := os.Getenv("SWARM_CORRUPTION"); v != "" {
		if p, err := strconv.ParseFloat(v, 64); err == nil && p >= 0 && p <= 1 {
			config.Link.Corruption = p
		}
	}

	if v := os.Getenv("SWARM_COMM_LOSS_AFTER"); v != "" {
		if d, err := strconv.ParseFloat(v, 64); err == nil && d >= 0 {
			config.Navigation.CommLossAfter = d
		}
	}

	if v := os.Getenv("SWARM_SUCCESS_THRESHOLD"); v != "" {
		if p, err := strconv.ParseFloat(v, 64); err == nil && p > 0 && p <= 1 {
			config.Navigation.SuccessThreshold = p
		}
	}

	if v := os.Getenv("SWARM_LOG_LEVEL"); v != "" {
		if level := strings.ToLower(v); validLevel(level) {
			config.Logging.Level = level
		}
	}

	if v := os.Getenv("SWARM_NO_COLOR"); v != "" {
		if noColor, err := strconv.ParseBool(v); err == nil {
			config.Logging.NoColor = noColor
		}
	}

	if v := os.Getenv("SWARM_EVENT_DB"); v != "" {
		config.Logging.EventDB = v
	}

	if v := os.Getenv("SWARM_ENABLE_AAR"); v != "" {
		if enable, err := strconv.ParseBool(v); err == nil {
			config.Logging.EnableAAR = enable
		}
	}

	if v := os.Getenv("SWARM_AAR_OUTPUT_PATH"); v != "" {
		config.Logging.AAROutputPath = v
	}
}

func toInt(value interface{}) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v == float64(int(v)) {
			return int(v), true
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n, true
		}
	}
	return 0, false
}

func toFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
