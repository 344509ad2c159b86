// Package cmd implements the dialogue command line.
package cmd

import (
	"errors"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/capitalize-ai/persona-dialogue/internal/config"
)

// ErrConversationFailed is returned when a run ends by a service error.
var ErrConversationFailed = errors.New("conversation ended by a service error")

// app carries state shared by the subcommands of one invocation.
type app struct {
	v          *viper.Viper
	configFile string
	envFile    string
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{v: config.NewViper()}

	root := &cobra.Command{
		Use:   "dialogue",
		Short: "Watch two language-model personas talk to each other",
		Long: `dialogue runs an open-ended conversation between two personas, each
backed by a remote language model. Replies are revealed on the terminal
after a simulated thinking delay and every turn is appended to a rotating
markdown transcript. Press Ctrl+C to end the conversation.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.readConfig()
		},
		RunE: a.runDialogue,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.configFile, "config", "c", "", "config file (default is ./dialogue.yaml or $HOME/.config/dialogue/dialogue.yaml)")
	pf.StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	f := root.Flags()
	f.String("seed", "", "opening topic (generated when empty)")
	f.Int("max-turns", 0, "stop after this many replies (0 = until interrupted)")
	f.Duration("first-delay", 0, "thinking delay before the first reply")
	f.Duration("subsequent-delay", 0, "thinking delay before every later reply")
	f.String("provider", "", "completion provider: openai or anthropic")
	f.String("model", "", "model identifier")
	f.Bool("no-animate", false, "disable the thinking animation")
	f.String("observer-addr", "", "serve the observer API on this address, e.g. :8080")

	a.bindFlag("seed", root, "seed")
	a.bindFlag("max_turns", root, "max-turns")
	a.bindFlag("delays.first", root, "first-delay")
	a.bindFlag("delays.subsequent", root, "subsequent-delay")
	a.bindFlag("llm.provider", root, "provider")
	a.bindFlag("llm.model", root, "model")
	a.bindFlag("observer.addr", root, "observer-addr")

	root.AddCommand(newTranscriptCmd(a), newPersonasCmd(a), newReplayCmd(a))

	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// bindFlag makes a flag override key only when it was set explicitly.
func (a *app) bindFlag(key string, cmd *cobra.Command, name string) {
	_ = a.v.BindPFlag(key, cmd.Flags().Lookup(name))
}

func (a *app) readConfig() error {
	if err := config.LoadDotEnv(a.envFile); err != nil {
		return err
	}
	return config.ReadConfigFile(a.v, a.configFile)
}

func (a *app) load(cmd *cobra.Command) (*config.Config, error) {
	if noAnimate, _ := cmd.Flags().GetBool("no-animate"); noAnimate {
		a.v.Set("render.animate", false)
	}

	return config.Load(a.v)
}
