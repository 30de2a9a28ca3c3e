package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/harun/shellagent/pkg/agent"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

// Exit codes returned by the binary.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitInterrupted = 130
)

var errMissingTask = errors.New("a task is required")

var (
	cfgFile     string
	logLevel    string
	historyPath string
	notesPath   string
)

// rootCmd runs a task when called without a subcommand
var rootCmd = &cobra.Command{
	Use:   "shellagent [task]",
	Short: "shellagent - let a language model drive your shell",
	Long: `shellagent asks a language model for the next shell command, runs it,
shows the model the output and repeats until the model reports
TASK COMPLETE.

Commands run with your privileges. Run it inside a sandbox.`,
	Example: `  shellagent "install nginx and make it serve on port 8080"
  shellagent --timeout 2m --max-turns 20 scan the local network for open ssh ports
  shellagent history show`,
	Args:          cobra.ArbitraryArgs,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runTask,
}

// Execute runs the root command with ctx, which carries operator
// cancellation.
func Execute(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if err != nil && !errors.Is(err, agent.ErrInterrupted) {
		fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", err)
	}
	return err
}

// ExitCode maps the result of Execute to a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, agent.ErrInterrupted):
		return ExitInterrupted
	default:
		return ExitFailure
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.shellagent/config.json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&historyPath, "history", "", "conversation history file (default is <data_dir>/history.jsonl)")
	rootCmd.PersistentFlags().StringVar(&notesPath, "notes", "", "notes file (default is <data_dir>/notes.md)")

	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)
}

// GetRootCmd returns the root command for testing
func GetRootCmd() *cobra.Command {
	return rootCmd
}

// GetVersion returns the current version
func GetVersion() string {
	return version
}
