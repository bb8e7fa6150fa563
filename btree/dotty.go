package btree

import (
	"fmt"
	"io"
	"strings"
)

// ToDot outputs the block structure of a tree in Graphviz DOT format (for
// debugging purposes). Blocks that the store reports as mutable are
// highlighted.
func ToDot(t *Tree, w io.Writer) error {
	var nodelist, edgelist strings.Builder
	err := t.Walk(func(n Node, pos int) bool {
		h := n.Header()
		styles := nodeDotStyles(n, t.store.IsMutable(n))
		switch n := n.(type) {
		case *LeafNode:
			label := fmt.Sprintf("%d\\n%d @%d", h.ID, n.Size(), pos)
			fmt.Fprintf(&nodelist, "\"%d\" [label=\"%s\"%s];\n", h.ID, label, styles)
		case *BranchNode:
			fmt.Fprintf(&nodelist, "\"%d\" [label=\"%d\\nL%d\"%s];\n", h.ID, h.ID, h.Level, styles)
			for i, id := range n.children {
				fmt.Fprintf(&edgelist, "\"%d\" -> \"%d\" [label=%d];\n", h.ID, id, n.entries[i].Count())
			}
		}
		return true
	})
	if err != nil {
		tracer().Errorf("tree DOT: %s", err.Error())
		return err
	}
	io.WriteString(w, "strict digraph {\n")
	io.WriteString(w, "\tnode [fontname=Arial,fontsize=12];\n")
	io.WriteString(w, nodelist.String())
	io.WriteString(w, edgelist.String())
	io.WriteString(w, "}\n")
	return nil
}

func nodeDotStyles(n Node, highlight bool) string {
	s := ",style=filled"
	if n.IsLeaf() {
		s += ",shape=box"
	} else {
		s += ",color=black,shape=circle"
	}
	level := min(n.Header().Level, len(hexcolors)-1)
	if highlight {
		s += fmt.Sprintf(",fillcolor=\"%s\"", hexhlcolors[level])
	} else {
		s += fmt.Sprintf(",fillcolor=\"%s\"", hexcolors[level])
	}
	return s
}

var hexhlcolors = [...]string{"#FFEEDD", "#FFDDCC", "#FFCCAA", "#FFBB88", "#FFAA66",
	"#FF9944", "#FF8822", "#FF7700", "#ff6600"}

var hexcolors = [...]string{"white", "#CCDDFF", "#AACCFF", "#88BBFF", "#66AAFF",
	"#4499FF", "#2288FF", "#0077FF", "#0066FF"}
