package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"configurablestub/database"

	"github.com/spf13/cobra"
)

var (
	journalPath     string
	journalRouteKey string
)

var journalCmd = &cobra.Command{
	Use:     "journal",
	Short:   "Print the journaled requests of one route",
	Example: `  configurablestub journal --path ./data/journal.db --route "GET:api/orders/1"`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(journalPath); err != nil {
			return fmt.Errorf("journal not available: %w", err)
		}

		db, err := database.InitDB(journalPath)
		if err != nil {
			return err
		}
		defer db.Close()

		records, err := database.QueryByRouteKey(contextOrBackground(cmd), db, journalRouteKey)
		if err != nil {
			return fmt.Errorf("error retrieving journal: %w", err)
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	},
}

func init() {
	journalCmd.Flags().StringVar(&journalPath, "path", "./data/journal.db", "SQLite journal file")
	journalCmd.Flags().StringVar(&journalRouteKey, "route", "", `Route key, for example "POST:api/orders"`)
	_ = journalCmd.MarkFlagRequired("route")
	rootCmd.AddCommand(journalCmd)
}
