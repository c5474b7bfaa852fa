package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mpospelov/chewy/pkg/index"
)

var (
	definitionsPath string
	showDiff        bool
)

var specCmd = &cobra.Command{
	Use:   "spec",
	Short: "Inspect and lock index specifications",
}

var specStatusCmd = &cobra.Command{
	Use:   "status [pattern]",
	Short: "Report which declared indices changed since their last lock",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		indices := loadIndices(args)
		client := openClient()
		defer client.Close()
		ctx := context.Background()

		stale := 0
		for _, idx := range indices {
			spec := client.Specification(idx)
			changed, err := spec.Changed(ctx)
			if err != nil {
				fatal("Error reading specification", err)
			}
			if !changed {
				fmt.Printf("%-30s up to date\n", idx.Name)
				continue
			}
			stale++
			fmt.Printf("%-30s changed\n", idx.Name)
			if showDiff {
				paths, err := spec.Diff(ctx)
				if err != nil {
					fatal("Error diffing specification", err)
				}
				for _, p := range paths {
					fmt.Printf("    %s\n", p)
				}
			}
		}
		if stale > 0 {
			exitCode = 2
		}
	},
}

var specLockCmd = &cobra.Command{
	Use:   "lock [pattern]",
	Short: "Lock the current definition of declared indices",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		indices := loadIndices(args)
		client := openClient()
		defer client.Close()
		ctx := context.Background()

		for _, idx := range indices {
			if err := client.Specification(idx).Lock(ctx); err != nil {
				fatal("Error locking specification", err)
			}
			fmt.Printf("Locked %s\n", idx.Name)
		}
	},
}

// loadIndices reads --definitions and keeps the indices matching the
// optional glob argument.
func loadIndices(args []string) []*index.Index {
	if definitionsPath == "" {
		fatal("Error loading definitions", fmt.Errorf("--definitions is required"))
	}
	f, err := os.Open(definitionsPath)
	if err != nil {
		fatal("Error loading definitions", err)
	}
	defer f.Close()

	indices, err := index.LoadDefinitions(f)
	if err != nil {
		fatal("Error loading definitions", err)
	}

	pattern := "**"
	if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
		pattern = args[0]
	}
	matched := index.NewRegistry(indices...).Match(pattern)
	if len(matched) == 0 {
		fatal("Error selecting indices", fmt.Errorf("no declared index matches %q", pattern))
	}
	return matched
}

func init() {
	rootCmd.AddCommand(specCmd)
	specCmd.AddCommand(specStatusCmd, specLockCmd)
	specCmd.PersistentFlags().StringVar(&definitionsPath, "definitions", "", "YAML file declaring the indices")
	specStatusCmd.Flags().BoolVar(&showDiff, "diff", false, "List the changed definition paths")
}
