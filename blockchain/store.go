package blockchain

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"sort"

	"github.com/dgraph-io/badger"

	"github.com/gregorybednov/bountychain/address"
	"github.com/gregorybednov/bountychain/market"
)

// Keys under this prefix are bookkeeping, not ledger records.
const metaPrefix = "_meta:"

var (
	keyHeight  = []byte(metaPrefix + "height")
	keyAppHash = []byte(metaPrefix + "apphash")
	keyParams  = []byte(metaPrefix + "params")
	keyChainID = []byte(metaPrefix + "chain_id")
)

func sequenceKey(signer address.Address) []byte {
	return []byte("sequence:" + signer.String())
}

// txnState exposes a badger transaction as market.State.
type txnState struct {
	txn *badger.Txn
}

func (s txnState) Get(key []byte) ([]byte, error) {
	item, err := s.txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return nil, market.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (s txnState) Set(key, value []byte) error { return s.txn.Set(key, value) }

func (s txnState) Delete(key []byte) error { return s.txn.Delete(key) }

// viewState reads the last committed state. Writes are rejected.
type viewState struct {
	db *badger.DB
}

var errReadOnly = errors.New("read-only state")

func (s viewState) Get(key []byte) ([]byte, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		v, err := txnState{txn}.Get(key)
		out = v
		return err
	})
	return out, err
}

func (viewState) Set(_, _ []byte) error { return errReadOnly }

func (viewState) Delete(_ []byte) error { return errReadOnly }

type cached struct {
	value   []byte
	deleted bool
}

// cacheState buffers writes over a parent State. Nothing reaches the parent
// until flush, so a failed operation is dropped by discarding the cache.
type cacheState struct {
	parent market.State
	writes map[string]cached
}

func newCache(parent market.State) *cacheState {
	return &cacheState{parent: parent, writes: make(map[string]cached)}
}

func (c *cacheState) Get(key []byte) ([]byte, error) {
	if w, ok := c.writes[string(key)]; ok {
		if w.deleted {
			return nil, market.ErrNotFound
		}
		return bytes.Clone(w.value), nil
	}
	return c.parent.Get(key)
}

func (c *cacheState) Set(key, value []byte) error {
	c.writes[string(key)] = cached{value: append([]byte{}, value...)}
	return nil
}

func (c *cacheState) Delete(key []byte) error {
	c.writes[string(key)] = cached{deleted: true}
	return nil
}

func (c *cacheState) keys() []string {
	keys := make([]string, 0, len(c.writes))
	for k := range c.writes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// flush applies the buffered writes to the parent in key order.
func (c *cacheState) flush() error {
	for _, k := range c.keys() {
		w := c.writes[k]
		var err error
		if w.deleted {
			err = c.parent.Delete([]byte(k))
		} else {
			err = c.parent.Set([]byte(k), w.value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// persist writes the buffered writes to w in key order.
func (c *cacheState) persist(w *batchWriter) error {
	for _, k := range c.keys() {
		cw := c.writes[k]
		if err := w.write([]byte(k), cw.value, cw.deleted); err != nil {
			return err
		}
	}
	return nil
}

// hashInto feeds the buffered writes into a block digest.
func (c *cacheState) hashInto(h *blockHasher) {
	for _, k := range c.keys() {
		w := c.writes[k]
		h.add([]byte(k), w.value, w.deleted)
	}
}

// batchWriter spreads writes over as many badger transactions as needed. When
// the open transaction is full it is committed and the write is retried on a
// fresh one.
type batchWriter struct {
	db  *badger.DB
	txn *badger.Txn
	// commits counts transactions committed so far.
	commits int
}

func newBatchWriter(db *badger.DB) *batchWriter {
	return &batchWriter{db: db, txn: db.NewTransaction(true)}
}

func (w *batchWriter) write(key, value []byte, deleted bool) error {
	err := w.apply(key, value, deleted)
	if err != badger.ErrTxnTooBig {
		return err
	}
	if err := w.flush(); err != nil {
		return err
	}
	return w.apply(key, value, deleted)
}

func (w *batchWriter) apply(key, value []byte, deleted bool) error {
	if deleted {
		return w.txn.Delete(key)
	}
	return w.txn.Set(key, value)
}

func (w *batchWriter) flush() error {
	if err := w.txn.Commit(); err != nil {
		return err
	}
	w.commits++
	w.txn = w.db.NewTransaction(true)
	return nil
}

// commit commits the open transaction.
func (w *batchWriter) commit() error {
	err := w.txn.Commit()
	if err == nil {
		w.commits++
	}
	return err
}

func (w *batchWriter) discard() { w.txn.Discard() }

// blockHasher chains every write of a block onto the previous app hash.
type blockHasher struct {
	buf bytes.Buffer
}

func (h *blockHasher) add(key, value []byte, deleted bool) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(key)))
	h.buf.Write(n[:])
	h.buf.Write(key)
	if deleted {
		h.buf.WriteByte(0)
		return
	}
	h.buf.WriteByte(1)
	binary.BigEndian.PutUint64(n[:], uint64(len(value)))
	h.buf.Write(n[:])
	h.buf.Write(value)
}

func (h *blockHasher) sum(prev []byte) []byte {
	d := sha256.New()
	d.Write(prev)
	d.Write(h.buf.Bytes())
	return d.Sum(nil)
}

func (h *blockHasher) reset() { h.buf.Reset() }

func putUint64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func getUint64(s market.State, key []byte) (uint64, error) {
	raw, err := s.Get(key)
	if errors.Is(err, market.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(raw) != 8 {
		return 0, errors.New("corrupted counter " + string(key))
	}
	return binary.BigEndian.Uint64(raw), nil
}
