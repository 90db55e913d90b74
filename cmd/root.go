package cmd

import (
	"context"
	"log"
	"time"

	"github.com/questlabs/interviewd/internal/provider"
	"github.com/questlabs/interviewd/internal/secrets"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "interviewd"
)

type Config struct {
	Listen    string           `mapstructure:"listen"`
	Providers *ProvidersConfig `mapstructure:"providers"`
	Session   *SessionConfig   `mapstructure:"session"`
	Interview *InterviewConfig `mapstructure:"interview"`
}

type ProvidersConfig struct {
	Primary    string            `mapstructure:"primary"`
	Gemini     *GeminiConfig     `mapstructure:"gemini"`
	OpenRouter *OpenRouterConfig `mapstructure:"openrouter"`
}

type GeminiConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
}

type OpenRouterConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
	BaseURL    string `mapstructure:"base-url"`
}

type SessionConfig struct {
	TTL         time.Duration `mapstructure:"ttl"`
	MaxSessions int           `mapstructure:"max-sessions"`
}

type InterviewConfig struct {
	ResumeQuestions   int `mapstructure:"resume-questions"`
	BehaviorQuestions int `mapstructure:"behavior-questions"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "interviewd simulates multi-round technical interviews driven by language-model agents",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("providers.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}
	if err := viper.BindEnv("providers.openrouter.api-key-file", "OPENROUTER_API_KEY_FILE"); err != nil {
		log.Fatalf("binding OPENROUTER_API_KEY_FILE environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is interviewd.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Config is needed only for serve and interview. Other commands can skip it.
	if serveCmd.CalledAs() == "" && interviewCmd.CalledAs() == "" {
		return
	}

	// A .env file is optional; environment variables win either way.
	_ = godotenv.Load()

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

// providerConfig resolves credentials and builds the failover configuration.
func providerConfig(cfg *Config) (provider.Config, error) {
	pc := provider.Config{Primary: provider.Gemini}

	gemini := &GeminiConfig{}
	openrouter := &OpenRouterConfig{}
	if cfg != nil && cfg.Providers != nil {
		if cfg.Providers.Primary != "" {
			pc.Primary = provider.ID(cfg.Providers.Primary)
		}
		if cfg.Providers.Gemini != nil {
			gemini = cfg.Providers.Gemini
		}
		if cfg.Providers.OpenRouter != nil {
			openrouter = cfg.Providers.OpenRouter
		}
	}

	geminiKey, err := secrets.MaybeLoad(secrets.Source{
		Name:  "gemini api key",
		Value: gemini.APIKey,
		File:  gemini.APIKeyFile,
		Env:   "GEMINI_API_KEY",
	})
	if err != nil {
		return pc, err
	}

	openrouterKey, err := secrets.MaybeLoad(secrets.Source{
		Name:  "openrouter api key",
		Value: openrouter.APIKey,
		File:  openrouter.APIKeyFile,
		Env:   "OPENROUTER_API_KEY",
	})
	if err != nil {
		return pc, err
	}

	pc.GeminiAPIKey = geminiKey
	pc.GeminiModel = gemini.Model
	pc.OpenRouterAPIKey = openrouterKey
	pc.OpenRouterModel = openrouter.Model
	pc.OpenRouterBaseURL = openrouter.BaseURL

	if err := pc.Validate(); err != nil {
		return pc, err
	}

	return pc, nil
}

// validateStartup constructs the active handle once so a missing credential
// aborts startup instead of surfacing mid-interview.
func validateStartup(ctx context.Context, failover *provider.Failover) error {
	_, err := failover.ActiveHandle(ctx)
	return err
}
