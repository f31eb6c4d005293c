package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var s3ConfigFlag string

	ctx := newCommandContext(&configFlag, &s3ConfigFlag)

	rootCmd := &cobra.Command{
		Use:           "vfxpublish",
		Short:         "Publish versioned USD root layers and their entities",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&s3ConfigFlag, "s3-config", "", "S3 mirror configuration file (mirror disabled when empty)")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newPublishCommand(ctx))
	rootCmd.AddCommand(newMigrateCommand(ctx))
	rootCmd.AddCommand(newFolderCommand(ctx))

	return rootCmd
}
