package cmd

import (
	"log"

	"github.com/spf13/cobra"
	"github.com/tagherald/tagherald/tagherald"
)

var (
	runCmd = &cobra.Command{
		Use:   "run [flags]",
		Short: "Starts the tagherald bot",
		Run: func(cmd *cobra.Command, _ []string) {
			ctx := cmd.Context()
			th, err := tagherald.New(cfg)
			if err != nil {
				log.Fatalf("error creating tagherald: %s", err.Error())
			}

			if err = th.Run(ctx); err != nil {
				log.Fatalf("error running tagherald: %s", err.Error())
			}
		},
	}
)

//goland:noinspection GoLinter
func init() {
	rootCmd.AddCommand(runCmd)
}
