package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/capitalize-ai/persona-dialogue/internal/config"
	"github.com/capitalize-ai/persona-dialogue/internal/handler"
	"github.com/capitalize-ai/persona-dialogue/internal/llm"
	"github.com/capitalize-ai/persona-dialogue/internal/model"
	natsclient "github.com/capitalize-ai/persona-dialogue/internal/nats"
	"github.com/capitalize-ai/persona-dialogue/internal/render"
	"github.com/capitalize-ai/persona-dialogue/internal/service"
	"github.com/capitalize-ai/persona-dialogue/internal/transcript"
	"github.com/capitalize-ai/persona-dialogue/pkg/logger"
	"github.com/capitalize-ai/persona-dialogue/pkg/tracing"
)

const serviceName = "persona-dialogue"

func (a *app) runDialogue(cmd *cobra.Command, _ []string) error {
	cfg, err := a.load(cmd)
	if err != nil {
		return err
	}

	log, err := logger.NewWithOptions(cfg.Logger())
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(ctx, serviceName, cfg.Tracing.Endpoint)
		if err != nil {
			log.Warn("tracing disabled", zap.Error(err))
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := tracing.Shutdown(shutdownCtx, tp); err != nil {
					log.Warn("failed to flush traces", zap.Error(err))
				}
			}()
		}
	}

	personas, err := cfg.Registry()
	if err != nil {
		return &config.ConfigurationError{Err: err}
	}

	client, err := llm.NewClient(llm.Provider(cfg.LLM.Provider), cfg.LLM.APIKey, cfg.LLM.BaseURL)
	if err != nil {
		return &config.ConfigurationError{Err: err}
	}
	if cfg.LLM.Model != "" && !slices.Contains(client.Models(), cfg.LLM.Model) {
		log.Warn("model is not in the provider's known list",
			zap.String("provider", client.Name()),
			zap.String("model", cfg.LLM.Model),
		)
	}

	store, err := transcript.NewStore(cfg.TranscriptStore())
	if err != nil {
		return &config.ConfigurationError{Err: err}
	}

	renderCfg := cfg.Renderer()
	renderCfg.Animate = renderCfg.Animate && render.IsTerminal(os.Stdout)
	terminal := render.NewTerminal(cmd.OutOrStdout(), renderCfg)

	var observers []service.Observer

	var natsConn *natsclient.Client
	if cfg.NATS.URL != "" {
		natsConn, err = connectMirror(ctx, cfg, log)
		if err != nil {
			log.Warn("NATS mirror disabled", zap.Error(err))
		} else {
			defer natsConn.Close()
			observers = append(observers, natsclient.NewMirror(natsclient.NewStreamManager(natsConn), 5*time.Second))
		}
	}

	if cfg.Observer.Addr != "" {
		feed := handler.NewFeed()
		observers = append(observers, feed)

		var checker handler.Checker
		if natsConn != nil {
			checker = natsConn
		}
		server := newObserverServer(cfg, feed, personas, checker, log)
		go func() {
			log.Info("observer API listening", zap.String("addr", cfg.Observer.Addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("observer API stopped", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Warn("observer API forced to shut down", zap.Error(err))
			}
		}()
	}

	svc, err := service.NewConversationService(
		llm.NewGateway(client, cfg.Gateway()),
		terminal,
		store,
		service.Options{
			Personas:    personas,
			Delays:      cfg.DelayPolicy(),
			Seed:        cfg.Seed,
			MaxTurns:    cfg.MaxTurns,
			MaxAttempts: cfg.Retry.MaxAttempts,
		},
		log,
		observers...,
	)
	if err != nil {
		return &config.ConfigurationError{Err: err}
	}

	result := svc.Run(ctx)
	if result.Status == model.StatusEndedByError {
		return fmt.Errorf("%w: %s", ErrConversationFailed, result.Reason)
	}
	return nil
}

func connectMirror(ctx context.Context, cfg *config.Config, log *logger.Logger) (*natsclient.Client, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	conn, err := natsclient.Connect(connectCtx, natsclient.Config{
		URL:      cfg.NATS.URL,
		CAFile:   cfg.NATS.CAFile,
		CertFile: cfg.NATS.CertFile,
		KeyFile:  cfg.NATS.KeyFile,
		Token:    cfg.NATS.Token,
	}, log)
	if err != nil {
		return nil, err
	}

	if err := natsclient.NewStreamManager(conn).EnsureStream(connectCtx); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func newObserverServer(cfg *config.Config, feed *handler.Feed, personas *model.Registry, nats handler.Checker, log *logger.Logger) *http.Server {
	router := handler.NewRouter(handler.RouterConfig{
		JWTSecret:      cfg.Observer.JWTSecret,
		RateLimit:      cfg.Observer.RateLimit,
		RateWindow:     cfg.Observer.RateWindow,
		AllowedOrigins: cfg.Observer.AllowedOrigins,
	}, feed, personas, nats, log)

	return &http.Server{
		Addr:              cfg.Observer.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
