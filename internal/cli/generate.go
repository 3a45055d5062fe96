package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var generatePurge bool

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Render the home page and every post into the page cache",
	RunE:  generateAction,
}

func init() {
	generateCmd.Flags().BoolVar(&generatePurge, "purge", false, "remove every cached page before rendering")
	rootCmd.AddCommand(generateCmd)
}

func generateAction(cmd *cobra.Command, _ []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	if generatePurge {
		removed, err := a.cache.Purge(ctx)
		if err != nil {
			return fmt.Errorf("purge cache: %w", err)
		}
		a.logger.Info("page cache purged", zap.Int64("pages", removed))
	}

	n, err := a.api.Prerender(ctx)
	if err != nil {
		return fmt.Errorf("prerender after %d pages: %w", n, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "generated %d pages\n", n)
	return nil
}
