package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mpospelov/chewy"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show store and journal state",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		client := openClient()
		defer client.Close()
		printStatus(client)
	},
}

func printStatus(client *chewy.Client) {
	ctx := context.Background()
	exists, err := client.Journal().Exists(ctx)
	if err != nil {
		fatal("Error reading journal", err)
	}
	fmt.Printf("journal:        %s (exists: %t)\n", client.Journal().IndexName(), exists)
	fmt.Printf("specifications: %s\n", client.Specifications().IndexName())
	for _, st := range client.State() {
		fmt.Printf("%s: %+v\n", st.Type, st.State)
	}
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
