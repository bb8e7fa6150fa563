package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/npillmayer/streamtree/btree"
	"github.com/spf13/cobra"
)

var (
	dumpPos  int
	dumpRows int
)

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "print the nodes of the tree, one per line",
	Args:  cobra.NoArgs,
	RunE:  runDump,
}

func runDump(cmd *cobra.Command, args []string) error {
	d, err := buildDemo()
	if err != nil {
		return err
	}
	defer d.mem.Close()
	out := cmd.OutOrStdout()
	t := d.tree
	top := t.Height() - 1
	var werr error
	err = t.Walk(func(n btree.Node, pos int) bool {
		h := n.Header()
		indent := strings.Repeat("  ", top-h.Level)
		c := levelColor(h.Level)
		if !n.IsLeaf() {
			c.Fprintf(out, "%sbranch #%d L%d children=%d @%d\n", indent, h.ID, h.Level, n.Size(), pos)
			return true
		}
		c.Fprintf(out, "%sleaf #%d size=%d @%d", indent, h.ID, n.Size(), pos)
		werr = dumpLeaf(out, n.(*btree.LeafNode))
		return werr == nil
	})
	if err != nil {
		return err
	}
	if werr != nil {
		return werr
	}
	if dumpPos >= 0 {
		it, err := t.Seek(dumpPos)
		if err != nil {
			return err
		}
		heading.Fprintf(out, "iterator at %d\n", dumpPos)
		it.Dump(out)
	}
	return nil
}

func dumpLeaf(w io.Writer, leaf *btree.LeafNode) error {
	rows := min(dumpRows, leaf.Size())
	for i := 0; i < rows; i++ {
		if _, err := fmt.Fprintf(w, " %v", []uint64(leaf.Entry(i))); err != nil {
			return err
		}
	}
	if rows < leaf.Size() {
		fmt.Fprint(w, " ...")
	}
	_, err := fmt.Fprintln(w)
	return err
}
