// Package main provides the CLI entry point for seqtune.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/seqtune/seqtune/cmd/seqtune/commands"
)

var version = "0.1.0"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "seqtune",
	Short: "seqtune - PPO optimization for sequence-generation policies",
	Long: `seqtune optimizes sequence-generation policies with Proximal Policy
Optimization: KL-shaped per-token rewards against a frozen reference
policy, GAE advantages, and clipped policy/value updates with adaptive
KL control.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("seqtune %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(commands.TrainCmd)
}
