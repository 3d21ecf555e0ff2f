package cmd

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/yourusername/healthwatch/core"
	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from file. When the file does not exist
// a default one is written so a first run is zero-configuration.
func LoadConfig(configPath string) (core.Config, error) {
	config := core.GetDefaultConfig()

	expandedPath := os.ExpandEnv(configPath)
	if _, err := os.Stat(expandedPath); os.IsNotExist(err) {
		if err := createDefaultConfigFile(expandedPath, config); err != nil {
			log.Printf("Warning: Failed to create default config file: %v", err)
		}
		return config, nil
	}

	data, err := os.ReadFile(expandedPath)
	if err != nil {
		return config, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := core.ValidateConfig(config); err != nil {
		return config, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// ReloadConfig re-parses the config file for the hot-reload path. Unlike
// LoadConfig it never writes a default file and propagates every error,
// so a bad edit keeps the running policy instead of resetting it.
func ReloadConfig(configPath string) (core.Config, error) {
	config := core.GetDefaultConfig()

	data, err := os.ReadFile(os.ExpandEnv(configPath))
	if err != nil {
		return config, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("failed to parse config file: %w", err)
	}
	return config, nil
}

// createDefaultConfigFile creates a default configuration file
func createDefaultConfigFile(configPath string, config core.Config) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return err
	}

	file, err := os.Create(configPath)
	if err != nil {
		return err
	}
	defer file.Close()

	if _, err := file.WriteString("# healthwatch configuration file\n\n"); err != nil {
		return err
	}
	if _, err := file.Write(data); err != nil {
		return err
	}

	return nil
}

// PrintUsage displays command usage information
func PrintUsage(version string) {
	fmt.Printf("healthwatch v%s - failure detection and notification engine\n\n", version)
	fmt.Println("Usage: healthwatch <command> [options]")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  start              start the engine (scheduler + API)")
	fmt.Println("  stop               stop the running engine")
	fmt.Println("  status             show engine status and open incidents")
	fmt.Println("  version            version information")
	fmt.Println("  help               this help")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  --config <path>    config file path (default: ~/.healthwatch/config.yaml)")
	fmt.Println("  -p <port>          API server port (default: 9822)")
	fmt.Println("  -q                 quiet mode")
	fmt.Println("")
	fmt.Println("Examples:")
	fmt.Println("  healthwatch start                 # start with default config")
	fmt.Println("  healthwatch start -p 8080         # start with API on port 8080")
	fmt.Println("  healthwatch status                # check what is failing")
	fmt.Println("  healthwatch stop                  # stop the engine")
	fmt.Println("")
	fmt.Println("Default directory structure:")
	fmt.Println("  ~/.healthwatch/")
	fmt.Println("  ├── config.yaml        # configuration (hot-reloaded)")
	fmt.Println("  ├── healthwatch.db     # metrics and incidents (SQLite)")
	fmt.Println("  └── healthwatch.pid    # single-instance lock")
}
