package btree

// Savepoint marks a position in the store's undo journal.
type Savepoint int

// BlockStore is the block persistence collaborator of the engine. It owns
// block identity, reference counts and the snapshot a tree handle works on.
//
// All calls are synchronous. A BlockStore is used by one mutating goroutine
// at a time.
type BlockStore interface {
	// BlockSize is the default size of new blocks in bytes.
	BlockSize() int
	// Registry is the dispatch table used to interpret blocks.
	Registry() *Registry
	// GetBlock returns the node stored in block id.
	GetBlock(id BlockID) (Node, error)
	// CreateNode allocates an empty node of the given kind. The new block
	// carries no references.
	CreateNode(kind *NodeKind, level int, root bool) (Node, error)
	// CloneBlock copies block id into a new unreferenced block and adds a
	// reference to every child of it.
	CloneBlock(id BlockID) (Node, error)
	RefBlock(id BlockID) error
	// UnrefBlock drops a reference. A block whose count drops to zero is
	// removed, after dropping its references to its children.
	UnrefBlock(id BlockID) error
	// ResizeBlock changes the byte size of a mutable block.
	ResizeBlock(id BlockID, size int) error
	// RemoveBlock frees an unreferenced block together with the subtree
	// only it references.
	RemoveBlock(id BlockID) error
	// Update announces an in-place write to n. It must be called before n is
	// mutated.
	Update(n Node) error
	// IsMutable reports whether n may be written in place by this handle.
	IsMutable(n Node) bool
	// CopyOnWrite reports whether immutable blocks are cloned before writes.
	// Stores without copy-on-write mark blocks dirty instead.
	CopyOnWrite() bool
	// Root returns the root block of the named tree, or NoBlock.
	Root(name string) BlockID
	// SetRoot references id as the root of the named tree and drops the
	// reference on the previous root.
	SetRoot(name string, id BlockID) error
	// Begin opens a savepoint. Savepoints nest.
	Begin() Savepoint
	// Commit closes a savepoint, keeping its changes.
	Commit(sp Savepoint) error
	// Rollback undoes all changes made since sp was opened.
	Rollback(sp Savepoint) error
}
