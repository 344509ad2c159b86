package cmd

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/capitalize-ai/persona-dialogue/internal/config"
	"github.com/capitalize-ai/persona-dialogue/internal/transcript"
)

func newTranscriptCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transcript",
		Short: "Inspect the conversation transcript",
	}
	cmd.AddCommand(newTranscriptShowCmd(a))
	return cmd
}

func newTranscriptShowCmd(a *app) *cobra.Command {
	var (
		all  bool
		last int
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the turns recorded in the transcript",
		Long: `Print the turns recorded in the transcript. By default only the active
file is read; --all also reads the rotated backups, oldest first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Decode(a.v)
			if err != nil {
				return err
			}

			file := cfg.Transcript.File
			if file == "" {
				file = transcript.DefaultFileName
			}
			path := filepath.Join(cfg.Transcript.Dir, file)

			var records []transcript.Record
			if all {
				records, err = transcript.ReadAll(path, cfg.Transcript.MaxBackups)
			} else {
				records, err = transcript.ReadFile(path)
			}
			if err != nil {
				return fmt.Errorf("failed to read transcript: %w", err)
			}

			if last > 0 && len(records) > last {
				records = records[len(records)-last:]
			}
			return printRecords(cmd.OutOrStdout(), records)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "include rotated backups")
	cmd.Flags().IntVarP(&last, "last", "n", 0, "only print the last N records")
	return cmd
}

func printRecords(w io.Writer, records []transcript.Record) error {
	for _, r := range records {
		ts := r.Timestamp.Format(transcript.TimeLayout)
		var err error
		switch r.Kind {
		case transcript.KindSessionStart:
			_, err = fmt.Fprintf(w, "== session %s started %s\n", r.Label, ts)
			if err == nil && r.Body != "" {
				_, err = fmt.Fprintf(w, "   topic: %s\n", r.Body)
			}
		case transcript.KindEntry:
			_, err = fmt.Fprintf(w, "[%s] %s: %s\n", ts, r.Label, r.Body)
		case transcript.KindSessionEnd:
			_, err = fmt.Fprintf(w, "== session ended %s (%s)", ts, r.Label)
			if err == nil && r.Body != "" {
				_, err = fmt.Fprintf(w, ": %s", r.Body)
			}
			if err == nil {
				_, err = fmt.Fprintln(w)
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}
