// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.

package chain

import (
	"encoding/binary"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	ldberrors "github.com/syndtr/goleveldb/leveldb/errors"

	"decoin/pkg/core/block"
)

// Database persists sealed blocks keyed by height, so a node's chain
// survives a restart. It uses the same embedded key/value store and
// open/recover strategy as a typical leveldb-backed chain database,
// reworked to key on block index and store canonical block JSON rather
// than a header/input/tx byte layout (this chain has no UTXO set to
// index).
type Database struct {
	ldb *leveldb.DB
}

// OpenDatabase opens (creating if absent) the leveldb store at path. A
// nil *Database is a valid no-op store, used by tests and by nodes
// that run without persistence.
func OpenDatabase(path string) (*Database, error) {
	ldb, err := leveldb.OpenFile(path, nil)
	if _, corrupted := err.(*ldberrors.ErrCorrupted); corrupted {
		ldb, err = leveldb.RecoverFile(path, nil)
	}
	if err != nil {
		return nil, errors.Wrap(err, "chain: open database")
	}
	return &Database{ldb: ldb}, nil
}

func indexKey(index int64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(index))
	return key
}

// WriteBlock persists blk at its index. No-op on a nil Database.
func (d *Database) WriteBlock(blk *block.Block) error {
	if d == nil {
		return nil
	}
	raw, err := json.Marshal(blk)
	if err != nil {
		return errors.Wrap(err, "chain: marshal block")
	}
	if err := d.ldb.Put(indexKey(blk.Index), raw, nil); err != nil {
		return errors.Wrap(err, "chain: write block")
	}
	return nil
}

// LoadChain reads back every persisted block in index order. Returns a
// nil slice and nil error for a nil Database or an empty store.
func (d *Database) LoadChain() ([]*block.Block, error) {
	if d == nil {
		return nil, nil
	}

	var blocks []*block.Block
	iter := d.ldb.NewIterator(nil, nil)
	defer iter.Release()

	for iter.Next() {
		var blk block.Block
		if err := json.Unmarshal(iter.Value(), &blk); err != nil {
			return nil, errors.Wrap(err, "chain: decode persisted block")
		}
		blocks = append(blocks, &blk)
	}
	if err := iter.Error(); err != nil {
		return nil, errors.Wrap(err, "chain: iterate database")
	}
	return blocks, nil
}

// Close releases the underlying leveldb handle. No-op on a nil Database.
func (d *Database) Close() error {
	if d == nil {
		return nil
	}
	return d.ldb.Close()
}
