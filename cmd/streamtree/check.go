package main

import (
	"context"
	"math/rand"

	"github.com/cockroachdb/errors"
	"github.com/npillmayer/streamtree/btree"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	readers int
	seeks   int
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "verify tree invariants and scan the sealed tree concurrently",
	Args:  cobra.NoArgs,
	RunE:  runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	d, err := buildDemo()
	if err != nil {
		return err
	}
	defer d.mem.Close()
	out := cmd.OutOrStdout()
	if err := d.tree.Check(); err != nil {
		return err
	}
	good.Fprintf(out, "invariants hold for %d entries in %d levels\n", d.tree.Len(), d.tree.Height())
	g, ctx := errgroup.WithContext(context.Background())
	for r := 0; r < readers; r++ {
		rnd := rand.New(rand.NewSource(seed + int64(r)))
		g.Go(func() error {
			return scan(ctx, d.tree, rnd)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	good.Fprintf(out, "%d readers agree on %d seeks each\n", readers, seeks)
	return nil
}

// scan runs a full chunk scan, then random seeks, checking positions.
func scan(ctx context.Context, t *btree.Tree, rnd *rand.Rand) error {
	it, err := t.Begin()
	if err != nil {
		return err
	}
	total := 0
	for !it.IsAfterEnd() {
		if it.ChunkOffset() != total {
			return errors.Newf("chunk %d at offset %d, expected %d", it.LeafID(), it.ChunkOffset(), total)
		}
		total += it.ChunkSize()
		ok, err := it.NextChunk()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
	}
	if total != t.Len() {
		return errors.Newf("scan found %d entries, tree holds %d", total, t.Len())
	}
	for i := 0; i < seeks && total > 0; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		pos := rnd.Intn(total)
		it, err := t.Seek(pos)
		if err != nil {
			return err
		}
		if got := it.ChunkOffset() + it.EntryOffsetInChunk(); got != pos {
			return errors.Newf("seek to %d reached %d", pos, got)
		}
		if _, ok := it.Entry(); !ok {
			return errors.Newf("no entry at %d", pos)
		}
	}
	return nil
}
