package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newFolderCommand(ctx *commandContext) *cobra.Command {
	folderCmd := &cobra.Command{
		Use:   "folder",
		Short: "Create and list publish folders",
	}

	folderCmd.AddCommand(newFolderCreateCommand(ctx))
	folderCmd.AddCommand(newFolderListCommand(ctx))

	return folderCmd
}

func newFolderCreateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "create <project> <path>",
		Short: "Create a folder path, including missing parents",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			folder, err := a.folders.EnsurePath(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", folder.ID, folder.Path)
			return nil
		},
	}
}

func newFolderListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "ls <project> [path]",
		Short: "List the folders below path",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			path := "/"
			if len(args) == 2 {
				path = args[1]
			}
			folders, err := a.folders.ListChildren(cmd.Context(), args[0], path)
			if err != nil {
				return err
			}
			for _, folder := range folders {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", folder.ID, folder.Path)
			}
			return nil
		},
	}
}
