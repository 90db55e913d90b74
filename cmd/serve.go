package cmd

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/questlabs/interviewd/internal/interview"
	"github.com/questlabs/interviewd/internal/logger"
	"github.com/questlabs/interviewd/internal/provider"
	"github.com/questlabs/interviewd/internal/server"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	defaultListen          = ":8080"
	defaultShutdownTimeout = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the interview orchestration HTTP server",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("listen", "l", "", "listen address (default :8080)")

	viper.BindPFlag("listen", serveCmd.Flags().Lookup("listen"))
}

func serve() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting interviewd", zap.String("version", version))

	engine, failover := buildEngine(ctx, config, logger)

	status := failover.Status()
	logger.Info("providers ready",
		zap.String("active", string(status.Active)),
		zap.Bool("has_gemini", status.HasGemini),
		zap.Bool("has_openrouter", status.HasOpenRouter),
	)

	listen := defaultListen
	if config != nil && config.Listen != "" {
		listen = config.Listen
	}
	if flagListen := viper.GetString("listen"); flagListen != "" {
		listen = flagListen
	}

	srv := server.New(listen, engine, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatal("http server failed", zap.Error(err))
		}
	case <-ctx.Done():
		logger.Info("shutting down", zap.Int("failover_count", failover.Status().FailoverCount))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", zap.Error(err))
		}
	}
}

// buildEngine wires the provider controller, session store and orchestration
// engine from the configuration. Configuration problems are fatal here; a
// half-configured backend must never reach an interview.
func buildEngine(ctx context.Context, config *Config, logger *zap.Logger) (*interview.Engine, *provider.Failover) {
	pc, err := providerConfig(config)
	if err != nil {
		logger.Fatal("resolving provider credentials",
			zap.Error(err),
			zap.String("hint", "set GEMINI_API_KEY or OPENROUTER_API_KEY, or the providers section in the configuration file"),
		)
	}

	failover := provider.New(pc, logger)

	if err := validateStartup(ctx, failover); err != nil {
		logger.Fatal("validating active provider", zap.Error(err))
	}

	var ttl time.Duration
	var capacity int
	if config != nil && config.Session != nil {
		ttl = config.Session.TTL
		capacity = config.Session.MaxSessions
	}
	store := interview.NewStore(capacity, ttl, logger)

	engineCfg := interview.Config{}
	if config != nil && config.Interview != nil {
		engineCfg.ResumeQuestions = config.Interview.ResumeQuestions
		engineCfg.BehaviorQuestions = config.Interview.BehaviorQuestions
	}

	return interview.New(engineCfg, failover, store, logger), failover
}
