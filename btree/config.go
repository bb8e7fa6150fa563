package btree

import "github.com/cockroachdb/errors"

// DefaultTreeName is the root name used when Config.Name is empty.
const DefaultTreeName = "default"

// minFanout is the smallest node capacity that allows median splits to keep
// both halves at minimum fill.
const minFanout = 4

// Config configures a tree handle.
type Config struct {
	// Name selects the root of the tree at the store.
	Name string
	// RootBlockSize is the initial block size of a root leaf. Root leaves grow
	// up to the store block size before they split. Zero means the store
	// block size.
	RootBlockSize int
}

func (cfg Config) normalized(blockSize int) Config {
	if cfg.Name == "" {
		cfg.Name = DefaultTreeName
	}
	if cfg.RootBlockSize == 0 {
		cfg.RootBlockSize = blockSize
	}
	return cfg
}

func (cfg Config) validate(schema *Schema, blockSize int) error {
	cfg = cfg.normalized(blockSize)
	if schema == nil {
		return errors.Wrap(ErrInvalidConfig, "schema is required")
	}
	if cfg.RootBlockSize < 0 || cfg.RootBlockSize > blockSize {
		return errors.Wrapf(ErrInvalidConfig, "root block size %d outside (0,%d]", cfg.RootBlockSize, blockSize)
	}
	if schema.LeafCapacity(cfg.RootBlockSize) < 1 {
		return errors.Wrapf(ErrInvalidConfig, "root block size %d cannot hold an entry", cfg.RootBlockSize)
	}
	if c := schema.LeafCapacity(blockSize); c < minFanout {
		return errors.Wrapf(ErrInvalidConfig, "block size %d holds %d entries per leaf, need %d",
			blockSize, c, minFanout)
	}
	if c := schema.MaxChildren(blockSize); c < minFanout {
		return errors.Wrapf(ErrInvalidConfig, "block size %d holds %d children per branch, need %d",
			blockSize, c, minFanout)
	}
	return nil
}
