package cli

import (
	"fmt"

	"github.com/harun/shellagent/pkg/conversation"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect or reset the saved conversation",
}

var historyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the saved conversation",
	Args:  cobra.NoArgs,
	RunE:  runHistoryShow,
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the saved conversation",
	Args:  cobra.NoArgs,
	RunE:  runHistoryClear,
}

func init() {
	historyShowCmd.Flags().IntVar(&historyLimit, "limit", 0, "show only the last N entries (0 shows all)")
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyClearCmd)
	rootCmd.AddCommand(historyCmd)
}

func historyStore(cmd *cobra.Command) (*conversation.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return conversation.NewStore(cfg.HistoryFile, zerolog.Nop()), nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	store, err := historyStore(cmd)
	if err != nil {
		return err
	}
	entries, err := store.Load()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintf(out, "No history at %s\n", store.Path())
		return nil
	}
	if historyLimit > 0 && len(entries) > historyLimit {
		entries = entries[len(entries)-historyLimit:]
	}
	fmt.Fprintln(out, conversation.Render(entries))
	return nil
}

func runHistoryClear(cmd *cobra.Command, args []string) error {
	store, err := historyStore(cmd)
	if err != nil {
		return err
	}
	if err := store.Clear(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s\n", store.Path())
	return nil
}
