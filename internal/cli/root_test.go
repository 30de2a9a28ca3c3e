package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/harun/shellagent/pkg/agent"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetFlags restores every flag of cmd and its subcommands, since the
// command tree is shared between tests.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := GetRootCmd()
	resetFlags(cmd)
	t.Cleanup(func() { resetFlags(cmd) })

	if args == nil {
		// nil makes cobra fall back to os.Args
		args = []string{}
	}
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	t.Run("version flag", func(t *testing.T) {
		output, err := execute(t, "--version")
		require.NoError(t, err)

		assert.Contains(t, output, "shellagent version")
		assert.Contains(t, output, GetVersion())
	})

	t.Run("help flag", func(t *testing.T) {
		output, err := execute(t, "--help")
		require.NoError(t, err)

		assert.Contains(t, output, "shellagent")
		assert.Contains(t, output, "TASK COMPLETE")
		assert.Contains(t, output, "history")
	})

	t.Run("global flags", func(t *testing.T) {
		cmd := GetRootCmd()

		configFlag := cmd.PersistentFlags().Lookup("config")
		require.NotNil(t, configFlag)
		assert.Equal(t, "", configFlag.DefValue)

		logLevelFlag := cmd.PersistentFlags().Lookup("log-level")
		require.NotNil(t, logLevelFlag)
		assert.Equal(t, "info", logLevelFlag.DefValue)

		for _, name := range []string{"history", "notes"} {
			assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
		}
	})

	t.Run("run flags", func(t *testing.T) {
		cmd := GetRootCmd()
		for _, name := range []string{"fresh", "timeout", "max-turns", "metrics-addr"} {
			assert.NotNil(t, cmd.Flags().Lookup(name), name)
		}
	})

	t.Run("missing task", func(t *testing.T) {
		output, err := execute(t)
		require.ErrorIs(t, err, errMissingTask)
		assert.Contains(t, output, "Usage:")
	})
}

func TestGetVersion(t *testing.T) {
	version := GetVersion()
	assert.NotEmpty(t, version)
	assert.True(t, strings.HasPrefix(version, "0."))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitOK, ExitCode(nil))
	assert.Equal(t, ExitInterrupted, ExitCode(agent.ErrInterrupted))
	assert.Equal(t, ExitInterrupted, ExitCode(fmt.Errorf("run: %w", agent.ErrInterrupted)))
	assert.Equal(t, ExitFailure, ExitCode(errors.New("boom")))
	assert.Equal(t, ExitFailure, ExitCode(agent.ErrTurnLimit))
}
