package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mpospelov/chewy"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of chewy",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("chewy version %s\n", chewy.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
