package btree

import "fmt"

// TreePath is the materialized chain of nodes from a leaf (level 0) up to
// the root. It is the only place where parent/child relations are known.
type TreePath struct {
	nodes []Node
	// idx[l] is the index of nodes[l] among the children of nodes[l+1].
	idx []int
}

// newPath creates a path holding only a root.
func newPath(root Node) *TreePath {
	h := root.Header().Level + 1
	p := &TreePath{nodes: make([]Node, h), idx: make([]int, h)}
	p.nodes[h-1] = root
	return p
}

// Height returns the number of levels.
func (p *TreePath) Height() int { return len(p.nodes) }

// Root returns the root node.
func (p *TreePath) Root() Node { return p.nodes[len(p.nodes)-1] }

// Leaf returns the leaf at level 0.
func (p *TreePath) Leaf() *LeafNode { return p.nodes[0].(*LeafNode) }

// Node returns the node at level.
func (p *TreePath) Node(level int) Node { return p.nodes[level] }

// Branch returns the branch at level > 0.
func (p *TreePath) Branch(level int) *BranchNode { return p.nodes[level].(*BranchNode) }

// ChildIdx returns the index of the node at level inside its parent.
func (p *TreePath) ChildIdx(level int) int { return p.idx[level] }

// IsRoot reports whether level is the root level.
func (p *TreePath) IsRoot(level int) bool { return level == len(p.nodes)-1 }

// Clone returns a copy of the path sharing the nodes.
func (p *TreePath) Clone() *TreePath {
	return &TreePath{
		nodes: append([]Node(nil), p.nodes...),
		idx:   append([]int(nil), p.idx...),
	}
}

func (p *TreePath) set(level int, n Node, idx int) {
	p.nodes[level] = n
	p.idx[level] = idx
}

// grow puts a new root on top of the path.
func (p *TreePath) grow(root Node) {
	p.idx[len(p.idx)-1] = 0
	p.nodes = append(p.nodes, root)
	p.idx = append(p.idx, 0)
}

// shrink drops the root level.
func (p *TreePath) shrink() {
	p.nodes = p.nodes[:len(p.nodes)-1]
	p.idx = p.idx[:len(p.idx)-1]
	p.idx[len(p.idx)-1] = 0
}

func (p *TreePath) String() string {
	s := "path["
	for l := len(p.nodes) - 1; l >= 0; l-- {
		if p.nodes[l] == nil {
			s += " -"
			continue
		}
		s += fmt.Sprintf(" %d@%d", p.nodes[l].Header().ID, p.idx[l])
	}
	return s + " ]"
}
