package cmd

import (
	"context"
	"fmt"
	"time"

	"configurablestub/client"

	"github.com/spf13/cobra"
)

var (
	healthURL  string
	healthWait time.Duration
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that a stub is up, optionally waiting for it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.New(healthURL)

		if healthWait > 0 {
			if err := client.WaitUntilHealthy(contextOrBackground(cmd), c, healthWait); err != nil {
				return err
			}
		} else if err := c.Health(contextOrBackground(cmd)); err != nil {
			return fmt.Errorf("unhealthy: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), "healthy")
		return nil
	},
}

func init() {
	healthCmd.Flags().StringVar(&healthURL, "url", "http://127.0.0.1:54988", "Base URL of the stub")
	healthCmd.Flags().DurationVar(&healthWait, "wait", 0, "Poll until healthy for up to this long")
	rootCmd.AddCommand(healthCmd)
}

func contextOrBackground(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
