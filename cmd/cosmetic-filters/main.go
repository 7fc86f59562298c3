package main

import (
	"fmt"
	"os"

	"github.com/bnema/cosmetic-filters/internal/engine"
	"github.com/bnema/cosmetic-filters/internal/logging"
	"github.com/bnema/cosmetic-filters/internal/models"
	"github.com/go-viper/mapstructure/v2"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfigPath = "./configs/cosmetic_filters.toml"

var (
	cfgFile string
	verbose bool
	cfg     models.Config
	log     = logging.New(os.Stderr, false)
	appFs   = afero.NewOsFs()
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "cosmetic-filters",
	Short: "Compile and enforce cosmetic ad-block filters",
	Long: `A tool that compiles the cosmetic part of uBlock Origin / ABP filter
lists into a domain-keyed rule table, and applies that table to HTML pages.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetLevel(logrus.DebugLevel)
		}
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured filter lists",
	RunE:  runList,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	RunE:  runInit,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: "+defaultConfigPath+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(initCmd, listCmd, compileCmd, resolveCmd, applyCmd, serveCmd)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.timeout", "30s")
	v.SetDefault("http.retries", 3)
	v.SetDefault("http.concurrency", 4)
	v.SetDefault("output.path", "./output/cosmetic-rules.json")
	v.SetDefault("output.top_count", 1_000_000)
	v.SetDefault("engine.head_timeout", "10s")
	v.SetDefault("engine.load_delay", "0s")
	v.SetDefault("server.addr", ":8080")
}

// decodeConfig unmarshals v into a Config, parsing durations and
// comma-separated lists.
func decodeConfig(v *viper.Viper) (models.Config, error) {
	var c models.Config
	err := v.Unmarshal(&c, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	return c, err
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("cosmetic_filters")
		viper.SetConfigType("toml")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
	}

	setDefaults(viper.GetViper())
	viper.SetEnvPrefix("COSMETIC")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.WithError(err).Error("reading config")
		}
	}

	c, err := decodeConfig(viper.GetViper())
	if err != nil {
		log.WithError(err).Error("parsing config")
		return
	}
	cfg = c
}

func runList(cmd *cobra.Command, args []string) error {
	fmt.Println("Configured filter lists:")
	fmt.Println()
	for _, list := range cfg.Lists {
		status := "enabled"
		if !list.Enabled {
			status = "disabled"
		}
		fmt.Printf("  [%s] %s\n", status, list.Name)
		fmt.Printf("         %s\n\n", list.URL)
	}
	return nil
}

// tablePath returns the --table flag, falling back to the compile output.
func tablePath(cmd *cobra.Command) string {
	if p, _ := cmd.Flags().GetString("table"); p != "" {
		return p
	}
	return cfg.Output.Path
}

// loadEngine builds an engine from the configured rule table.
func loadEngine(path string, opts ...engine.Option) (*engine.Engine, error) {
	opts = append([]engine.Option{
		engine.WithHeadTimeout(cfg.Engine.HeadTimeout),
		engine.WithLoadDelay(cfg.Engine.LoadDelay),
	}, opts...)
	if cfg.Engine.Version != "" {
		opts = append(opts, engine.WithVersion(cfg.Engine.Version))
	}
	return engine.LoadFile(appFs, path, log, opts...)
}
