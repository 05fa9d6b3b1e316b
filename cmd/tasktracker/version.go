package main

import (
	"fmt"

	"tasktracker/internal/pkg/version"

	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "显示版本信息",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "tasktracker %s\n", version.GetVersion())
			fmt.Fprintf(out, "API Version: %s\n", version.APIVersion)
			fmt.Fprintf(out, "Build Time: %s\n", version.BuildTime)
			fmt.Fprintf(out, "Git Commit: %s\n", version.GitCommit)
			fmt.Fprintf(out, "Go Version: %s\n", version.GoVersion)
		},
	}
}
