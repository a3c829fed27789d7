package main

import (
	"fmt"
	"strings"

	"leaffliction/internal/config"
	"leaffliction/internal/pipeline"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "init-config <path>",
	Short: "Write the default configuration to a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.CreateDefaultFile(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", args[0])
		return nil
	},
}

var stagesCmd = &cobra.Command{
	Use:   "stages",
	Short: "List the pipeline stages and what they depend on",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults := make(map[pipeline.Stage]bool)
		for _, s := range pipeline.DefaultStages() {
			defaults[s] = true
		}

		out := cmd.OutOrStdout()
		for _, s := range pipeline.Stages() {
			deps := make([]string, 0)
			for _, d := range pipeline.Dependencies(s) {
				deps = append(deps, d.String())
			}
			marker := " "
			if defaults[s] {
				marker = "*"
			}
			fmt.Fprintf(out, "%s %-16s <- %s\n", marker, s, strings.Join(deps, ", "))
		}
		fmt.Fprintln(out, "\n* produced by default")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd, stagesCmd)
}
