package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	storelifecycle "github.com/mpospelov/chewy/pkg/adapters/lifecycle"
	"github.com/mpospelov/chewy/pkg/core"
	"github.com/mpospelov/chewy/pkg/journal"
)

var (
	deleteStrict  bool
	filterIndices []string
	filterTypes   []string
	entriesSince  string
	entriesJSON   bool
	cleanUntil    string
	watchAll      bool
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Manage the indexing journal",
}

var journalCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create the journal index if it is missing",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		client := openClient()
		defer client.Close()

		if err := client.Journal().Create(context.Background()); err != nil {
			fatal("Error creating journal", err)
		}
		fmt.Printf("Journal ready: %s\n", client.Journal().IndexName())
	},
}

var journalDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete the journal index",
	Long:  `Delete drops the whole journal index. With --strict a missing journal is an error.`,
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		client := openClient()
		defer client.Close()
		ctx := context.Background()

		if deleteStrict {
			if err := client.Journal().Delete(ctx); err != nil {
				fatal("Error deleting journal", err)
			}
			fmt.Printf("Journal deleted: %s\n", client.Journal().IndexName())
			return
		}

		deleted, err := client.Journal().DeleteIfExists(ctx)
		if err != nil {
			fatal("Error deleting journal", err)
		}
		if !deleted {
			fmt.Println("No journal to delete")
			return
		}
		fmt.Printf("Journal deleted: %s\n", client.Journal().IndexName())
	},
}

var journalEntriesCmd = &cobra.Command{
	Use:   "entries",
	Short: "List journal entries created since a point in time",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		since, err := parseWhen(entriesSince, time.Now())
		if err != nil {
			fatal("Error parsing --since", err)
		}

		client := openClient()
		defer client.Close()

		entries, err := client.Journal().EntriesFrom(context.Background(), since, filter())
		if err != nil {
			fatal("Error reading journal", err)
		}

		if entriesJSON {
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(entries); err != nil {
				fatal("Error encoding JSON", err)
			}
			return
		}
		for _, e := range entries {
			fmt.Printf("%s %s/%s %s %v\n",
				time.Unix(e.CreatedAt, 0).UTC().Format(time.RFC3339), e.IndexName, e.TypeName, e.Action, e.ObjectIDs)
		}
	},
}

var journalCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete journal entries created before a point in time",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		until, err := parseWhen(cleanUntil, time.Now())
		if err != nil {
			fatal("Error parsing --until", err)
		}

		client := openClient()
		defer client.Close()

		n, err := client.Journal().CleanUntil(context.Background(), until, filter())
		if err != nil {
			fatal("Error cleaning journal", err)
		}
		fmt.Printf("Deleted %d journal entries\n", n)
	},
}

var journalWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print journal writes as they happen (filesystem store only)",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		client := openClient()
		defer client.Close()

		watchable, ok := client.Store().(core.Watchable)
		if !ok {
			fatal("Error watching journal", errors.New("store does not support watching"))
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := client.Journal().Create(ctx); err != nil {
			fatal("Error creating journal", err)
		}
		events, err := watchable.Watch(ctx, client.Journal().IndexName())
		if err != nil {
			fatal("Error watching journal", err)
		}

		keep := storelifecycle.OnlyTypes(core.EventCreate)
		if watchAll {
			keep = nil
		}
		src := storelifecycle.NewSource(events, keep)
		if err := src.Start(ctx); err != nil {
			fatal("Error watching journal", err)
		}

		fmt.Printf("Watching %s (Ctrl+C to stop)\n", client.Journal().IndexName())
		for event := range src.Events() {
			fmt.Println(event)
		}
	},
}

func filter() journal.Filter {
	return journal.Filter{Indices: filterIndices, Types: filterTypes}
}

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalCreateCmd, journalDeleteCmd, journalEntriesCmd, journalCleanCmd, journalWatchCmd)

	journalCmd.PersistentFlags().StringSliceVar(&filterIndices, "index", nil, "Only entries of these indices")
	journalCmd.PersistentFlags().StringSliceVar(&filterTypes, "type", nil, "Only entries of these types")

	journalDeleteCmd.Flags().BoolVar(&deleteStrict, "strict", false, "Fail when there is no journal")

	journalEntriesCmd.Flags().StringVar(&entriesSince, "since", "0", "Unix seconds, a duration back from now (36h) or a date")
	journalEntriesCmd.Flags().BoolVar(&entriesJSON, "json", false, "Output in JSON format")

	journalCleanCmd.Flags().StringVar(&cleanUntil, "until", "", "Unix seconds, a duration back from now (720h) or a date")
	_ = journalCleanCmd.MarkFlagRequired("until")

	journalWatchCmd.Flags().BoolVar(&watchAll, "all", false, "Also print modifications and deletions")
}
