/*
Command streamtree builds demo trees on an in-memory store and inspects them.

	streamtree stats --kind map --entries 100000
	streamtree dump --kind sequence --entries 200 --pos 17
	streamtree dot --kind vector --entries 500 > tree.dot
	streamtree check --readers 8

# BSD License

Copyright (c) Norbert Pillmayer <norbert@pillmayer.com>

Please refer to the License file for details.
*/
package main

import (
	"os"

	"github.com/npillmayer/schuko/tracing"
	"github.com/spf13/cobra"
)

var (
	blockSize int
	profile   string
	kind      string
	entries   int
	bits      int
	seed      int64
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "streamtree [command] (flags)",
	Short: "streamtree inspection tool",
	Long: `
Builds a map, vector or symbol sequence from random data and prints
statistics, a structural dump or a Graphviz rendering of the tree.
`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			for _, key := range []string{"streamtree", "streamtree.store", "streamtree.omap"} {
				tracing.Select(key).SetTraceLevel(tracing.LevelDebug)
			}
		}
	},
}

func init() {
	cobra.EnableCommandSorting = false
	rootCmd.AddCommand(
		statsCmd,
		dumpCmd,
		dotCmd,
		checkCmd,
	)

	flags := rootCmd.PersistentFlags()
	flags.IntVarP(&blockSize, "block-size", "b", 4096, "block size in bytes")
	flags.StringVarP(&profile, "profile", "p", "cow", "store profile (cow, inplace)")
	flags.StringVarP(&kind, "kind", "k", "vector", "container to build (vector, map, sequence)")
	flags.IntVarP(&entries, "entries", "n", 10000, "number of entries")
	flags.IntVar(&bits, "bits", 4, "alphabet width of a sequence")
	flags.Int64Var(&seed, "seed", 1, "random seed")
	flags.BoolVarP(&verbose, "verbose", "v", false, "trace store and tree operations")

	dumpCmd.Flags().IntVar(&dumpPos, "pos", -1, "dump an iterator at this position")
	dumpCmd.Flags().IntVar(&dumpRows, "rows", 4, "number of entries shown per leaf")
	dotCmd.Flags().StringVarP(&dotOut, "out", "o", "", "output file (default stdout)")
	checkCmd.Flags().IntVarP(&readers, "readers", "r", 4, "number of concurrent readers")
	checkCmd.Flags().IntVar(&seeks, "seeks", 1000, "random seeks per reader")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra has already printed the error message.
		os.Exit(1)
	}
}
