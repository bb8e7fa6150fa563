package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/fatih/color"
	"github.com/npillmayer/streamtree/btree"
	"github.com/npillmayer/streamtree/containers/omap"
	"github.com/npillmayer/streamtree/containers/sequence"
	"github.com/npillmayer/streamtree/containers/vector"
	"github.com/npillmayer/streamtree/store"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/term"
)

// demo is a sealed snapshot holding one randomly filled container.
type demo struct {
	mem      *store.Memory
	snap     *store.Snapshot
	tree     *btree.Tree
	registry *prometheus.Registry
}

func parseProfile(s string) (store.Profile, error) {
	switch s {
	case "cow":
		return store.COW, nil
	case "inplace":
		return store.InPlace, nil
	}
	return 0, errors.Newf("unknown profile %q", s)
}

func buildDemo() (*demo, error) {
	p, err := parseProfile(profile)
	if err != nil {
		return nil, err
	}
	reg := prometheus.NewRegistry()
	mem, err := store.Open(store.Options{BlockSize: blockSize, Profile: p, Registerer: reg})
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := mem.Subscribe(ctx, 1)
	if err != nil {
		mem.Close()
		return nil, err
	}
	snap, err := mem.NewSnapshot()
	if err != nil {
		mem.Close()
		return nil, err
	}
	tree, err := fill(snap, rand.New(rand.NewSource(seed)))
	if err != nil {
		mem.Close()
		return nil, errors.Wrapf(err, "building %s", kind)
	}
	if err := snap.Seal(); err != nil {
		mem.Close()
		return nil, err
	}
	if ev, ok := (<-events).(store.CommitEvent); ok && verbose {
		fmt.Fprintf(os.Stderr, "sealed snapshot %d (%s): %d live blocks\n", ev.Snapshot, ev.Label, ev.Live)
	}
	return &demo{mem: mem, snap: snap, tree: tree, registry: reg}, nil
}

func fill(snap *store.Snapshot, rnd *rand.Rand) (*btree.Tree, error) {
	switch kind {
	case "vector":
		v, err := vector.New(snap, vector.Options{Bits: 32})
		if err != nil {
			return nil, err
		}
		values := make([]uint64, entries)
		for i := range values {
			values[i] = uint64(rnd.Intn(1000))
		}
		return v.Tree(), v.Append(values...)
	case "map":
		m, err := omap.New(snap, omap.Options{KeyBits: 32, ValueBits: 32})
		if err != nil {
			return nil, err
		}
		for _, k := range rnd.Perm(entries) {
			if _, err := m.Put(uint64(k), uint64(rnd.Intn(1<<20))); err != nil {
				return nil, err
			}
		}
		return m.Tree(), nil
	case "sequence":
		s, err := sequence.New(snap, sequence.Options{Bits: bits})
		if err != nil {
			return nil, err
		}
		symbols := make([]byte, entries)
		for i := range symbols {
			symbols[i] = byte(rnd.Intn(s.Alphabet()))
		}
		return s.Tree(), s.Append(symbols...)
	}
	return nil, errors.Newf("unknown container kind %q", kind)
}

// --- Output ----------------------------------------------------------------

var (
	heading = color.New(color.Bold)
	good    = color.New(color.FgGreen)
	levels  = []*color.Color{
		color.New(color.FgBlue),
		color.New(color.FgMagenta),
		color.New(color.FgCyan),
		color.New(color.FgYellow),
	}
)

func levelColor(level int) *color.Color {
	return levels[level%len(levels)]
}

// lineWidth returns the usable width of the terminal on stdout.
func lineWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return 65
	}
	w, _, err := term.GetSize(fd)
	switch {
	case err != nil:
		return 65
	case w > 65:
		return w - 10
	case w > 30:
		return w - 5
	}
	return max(w, 10)
}
