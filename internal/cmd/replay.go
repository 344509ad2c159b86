package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/capitalize-ai/persona-dialogue/internal/config"
	natsclient "github.com/capitalize-ai/persona-dialogue/internal/nats"
	"github.com/capitalize-ai/persona-dialogue/internal/transcript"
	"github.com/capitalize-ai/persona-dialogue/pkg/logger"
)

func newReplayCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "replay SESSION_ID",
		Short: "Print the turns of a session mirrored to NATS JetStream",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Decode(a.v)
			if err != nil {
				return err
			}
			if cfg.NATS.URL == "" {
				return &config.ConfigurationError{Err: fmt.Errorf("nats.url is required for replay")}
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			conn, err := natsclient.Connect(ctx, natsclient.Config{
				URL:      cfg.NATS.URL,
				CAFile:   cfg.NATS.CAFile,
				CertFile: cfg.NATS.CertFile,
				KeyFile:  cfg.NATS.KeyFile,
				Token:    cfg.NATS.Token,
			}, logger.NewNop())
			if err != nil {
				return err
			}
			defer conn.Close()

			turns, err := natsclient.NewStreamManager(conn).GetTurns(ctx, args[0], limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, t := range turns {
				fmt.Fprintf(out, "[%s] %s: %s\n", t.Timestamp.Format(transcript.TimeLayout), t.Label(), t.Text)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 500, "maximum number of turns to fetch")
	return cmd
}
