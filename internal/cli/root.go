// Package cli provides the spacetraveling command-line interface.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version and Commit are set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
)

var envFiles []string

var rootCmd = &cobra.Command{
	Use:           "spacetraveling",
	Short:         "Blog front end for a Prismic posts repository",
	Long:          "spacetraveling serves the post listing and post pages from Prismic (or a local Markdown directory) and keeps rendered pages in a regenerating cache.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "spacetraveling %s (%s)\n", Version, Commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, "dotenv files loaded before reading the environment")
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
