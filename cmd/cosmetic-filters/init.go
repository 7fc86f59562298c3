package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/bnema/cosmetic-filters/internal/models"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

const configHeader = `# Cosmetic filters configuration
#
# [http]    list download settings
# [output]  compiled rule table; set top_domains to a "rank,domain" CSV to
#           build the lite table
# [engine]  enforcement tuning; head_timeout = "0s" waits forever
# [server]  filtering service
# [[lists]] filter lists to compile, enabled = false skips one

`

// defaultConfig is written by init
func defaultConfig() models.Config {
	return models.Config{
		HTTP:   models.HTTPConfig{Timeout: 30 * time.Second, Retries: 3, Concurrency: 4},
		Output: models.OutputConfig{Path: "./output/cosmetic-rules.json", TopCount: 1_000_000},
		Engine: models.EngineConfig{HeadTimeout: 10 * time.Second},
		Server: models.ServerConfig{Addr: ":8080", AllowedOrigins: []string{}},
		Lists: []models.FilterList{
			{Name: "easylist", URL: "https://easylist.to/easylist/easylist.txt", Enabled: true},
			{Name: "ublock-filters", URL: "https://ublockorigin.github.io/uAssets/filters/filters.txt", Enabled: true},
			{Name: "ublock-annoyances", URL: "https://ublockorigin.github.io/uAssets/filters/annoyances.txt", Enabled: false},
			{Name: "ublock-unbreak", URL: "https://ublockorigin.github.io/uAssets/filters/unbreak.txt", Enabled: true},
			{Name: "ublock-quick-fixes", URL: "https://ublockorigin.github.io/uAssets/filters/quick-fixes.txt", Enabled: true},
		},
	}
}

// marshalConfig renders c as TOML, with durations as strings.
func marshalConfig(c models.Config) ([]byte, error) {
	doc := struct {
		HTTP   map[string]any      `toml:"http"`
		Output models.OutputConfig `toml:"output"`
		Engine map[string]any      `toml:"engine"`
		Server models.ServerConfig `toml:"server"`
		Lists  []models.FilterList `toml:"lists"`
	}{
		HTTP: map[string]any{
			"timeout":     c.HTTP.Timeout.String(),
			"retries":     c.HTTP.Retries,
			"concurrency": c.HTTP.Concurrency,
		},
		Output: c.Output,
		Engine: map[string]any{
			"head_timeout": c.Engine.HeadTimeout.String(),
			"load_delay":   c.Engine.LoadDelay.String(),
		},
		Server: c.Server,
		Lists:  c.Lists,
	}

	body, err := toml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	return append([]byte(configHeader), body...), nil
}

func writeDefaultConfig(fs afero.Fs, path string) error {
	if exists, _ := afero.Exists(fs, path); exists {
		return fmt.Errorf("config file already exists: %s", path)
	}

	data, err := marshalConfig(defaultConfig())
	if err != nil {
		return err
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return afero.WriteFile(fs, path, data, 0644)
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := defaultConfigPath
	if cfgFile != "" {
		configPath = cfgFile
	}

	if err := writeDefaultConfig(appFs, configPath); err != nil {
		return err
	}

	fmt.Printf("Created config file: %s\n", configPath)
	return nil
}
