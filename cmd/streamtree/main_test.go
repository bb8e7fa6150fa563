package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute(), strings.Join(args, " "))
	return out.String()
}

func TestStats(t *testing.T) {
	out := run(t, "stats", "--kind", "map", "--profile", "cow", "--entries", "3000", "--block-size", "512")
	require.Contains(t, out, "entries      3000")
	require.Contains(t, out, "streamtree_store_blocks_created_total")
}

func TestDumpAndDot(t *testing.T) {
	out := run(t, "dump", "--kind", "sequence", "--profile", "cow", "--entries", "500", "--block-size", "1024", "--pos", "17")
	require.Contains(t, out, "leaf #")
	require.Contains(t, out, "iterator at 17")
	out = run(t, "dot", "--kind", "vector", "--entries", "300", "--block-size", "256")
	require.Contains(t, out, "digraph")
}

func TestCheckInPlace(t *testing.T) {
	out := run(t, "check", "--kind", "vector", "--block-size", "4096", "--profile", "inplace", "--entries", "5000", "--readers", "3", "--seeks", "200")
	require.Contains(t, out, "invariants hold for 5000 entries")
	require.Contains(t, out, "3 readers agree")
}
