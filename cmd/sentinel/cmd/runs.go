package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/sentinel-review/sentinel/internal/adapters/ledger"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List archived review runs",
	RunE:  runRunsList,
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one archived run as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum runs to list")
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}

func runRunsList(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := ledger.Open(cfg.Ledger.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(cmd.Context(), runsLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		cmd.Println("No archived runs.")
		return nil
	}

	for _, r := range runs {
		cmd.Printf("%-42s %s/%s#%-5d %-16s %-24s $%.4f\n",
			r.RunID, r.RepositoryOwner, r.RepositoryName, r.ChangeSetID,
			r.ReviewStatus, r.CompletionReason, r.TotalCost)
	}
	return nil
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := ledger.Open(cfg.Ledger.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	result, err := store.GetRun(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	cmd.Println(string(data))
	return nil
}
