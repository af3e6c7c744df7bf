package cmd

import (
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "deep-matchmaker"
)

type Config struct {
	Store    *StoreConfig    `mapstructure:"store"`
	AI       *AIConfig       `mapstructure:"ai"`
	Notify   *NotifyConfig   `mapstructure:"notify"`
	Matching *MatchingConfig `mapstructure:"matching"`
}

type StoreConfig struct {
	ProjectID       string `mapstructure:"project-id"`
	CredentialsFile string `mapstructure:"credentials-file"`
	Pool            string `mapstructure:"pool"`
}

type AIConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKeyFile     string `mapstructure:"api-key-file"`
	Model          string `mapstructure:"model"`
	MaxRetries     int    `mapstructure:"max-retries"`
	MaxLogLength   int    `mapstructure:"max-log-length"`
	TimeoutSeconds int    `mapstructure:"timeout-seconds"`
}

type NotifyConfig struct {
	URL        string `mapstructure:"url"`
	APIKeyFile string `mapstructure:"api-key-file"`
}

type MatchingConfig struct {
	MatchType string `mapstructure:"match-type"`
	Seed      int64  `mapstructure:"seed"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "deep-matchmaker is a batch matchmaking runner for the dating platform",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("ai.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}
	if err := viper.BindEnv("notify.api-key-file", "NOTIFY_API_KEY_FILE"); err != nil {
		log.Fatalf("binding NOTIFY_API_KEY_FILE environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is deep-matchmaker.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Config needed only for run command now. If there is no config, we can skip initialization
	if runCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	// We can't proceed if the config file parsed with error.
	if err := viper.ReadInConfig(); err != nil {
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
