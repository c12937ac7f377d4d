package main

import (
	"fmt"
	"path/filepath"

	"github.com/caffeineduck/loxpad/internal/config"
	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a default loxpad.yaml",
		Long: `Write a loxpad.yaml with every option set to its default value and
documented, in the given directory (default: current directory).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			force, _ := cmd.Flags().GetBool("force")
			path := filepath.Join(dir, config.FileNames[0])
			if err := config.WriteDefault(path, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolP("force", "f", false, "Overwrite an existing file")
	return cmd
}
