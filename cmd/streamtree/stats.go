package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/npillmayer/streamtree/btree"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "print tree shape, node fill and store metrics",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

type levelStats struct {
	nodes, items, capacity int
}

func runStats(cmd *cobra.Command, args []string) error {
	d, err := buildDemo()
	if err != nil {
		return err
	}
	defer d.mem.Close()
	t := d.tree
	schema := t.Schema()
	perLevel := make(map[int]*levelStats)
	err = t.Walk(func(n btree.Node, _ int) bool {
		l := n.Header().Level
		st := perLevel[l]
		if st == nil {
			st = &levelStats{}
			perLevel[l] = st
		}
		st.nodes++
		st.items += n.Size()
		st.capacity += schema.MaxSize(n)
		return true
	})
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	heading.Fprintf(out, "%s tree on %s store\n", kind, d.mem.Options().Profile)
	fmt.Fprintf(out, "  entries      %d\n", t.Len())
	fmt.Fprintf(out, "  height       %d\n", t.Height())
	fmt.Fprintf(out, "  live blocks  %d\n", d.mem.LiveBlocks())
	fmt.Fprintf(out, "  leaf capacity %d, branch capacity %d at %d bytes\n",
		schema.LeafCapacity(blockSize), schema.MaxChildren(blockSize), blockSize)
	heading.Fprintln(out, "fill per level")
	width := lineWidth() - 30
	for l := t.Height() - 1; l >= 0; l-- {
		st := perLevel[l]
		if st == nil {
			continue
		}
		fill := float64(st.items) / float64(st.capacity)
		bar := strings.Repeat("#", int(fill*float64(width)))
		levelColor(l).Fprintf(out, "  L%d %6d nodes %5.1f%% %s\n", l, st.nodes, 100*fill, bar)
	}
	families, err := d.registry.Gather()
	if err != nil {
		return err
	}
	heading.Fprintln(out, "store metrics")
	sort.Slice(families, func(i, j int) bool { return families[i].GetName() < families[j].GetName() })
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			v := m.GetCounter().GetValue()
			if g := m.GetGauge(); g != nil {
				v = g.GetValue()
			}
			fmt.Fprintf(out, "  %-32s %g\n", mf.GetName(), v)
		}
	}
	return nil
}
