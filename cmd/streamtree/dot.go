package main

import (
	"os"

	"github.com/npillmayer/streamtree/btree"
	"github.com/spf13/cobra"
)

var dotOut string

var dotCmd = &cobra.Command{
	Use:   "dot",
	Short: "write the tree in Graphviz DOT format",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := buildDemo()
		if err != nil {
			return err
		}
		defer d.mem.Close()
		if dotOut == "" {
			return btree.ToDot(d.tree, cmd.OutOrStdout())
		}
		f, err := os.Create(dotOut)
		if err != nil {
			return err
		}
		if err := btree.ToDot(d.tree, f); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	},
}
