package wal

import (
	"github.com/dgraph-io/ristretto/v2"
)

// entryCache is an optional read-through cache of decoded entry bytes
// keyed by LSN, backed by ristretto (the one direct cache dependency in
// the example pack, see SPEC_FULL.md's Domain stack). It is nil whenever
// Options.CacheSize is 0, which keeps it out of the hot path entirely
// when a caller hasn't asked for it.
type entryCache struct {
	c *ristretto.Cache[int32, []byte]
}

func newEntryCache(maxCost int64) (*entryCache, error) {
	if maxCost <= 0 {
		return nil, nil
	}
	c, err := ristretto.NewCache(&ristretto.Config[int32, []byte]{
		NumCounters: maxCost * 10,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &entryCache{c: c}, nil
}

func (ec *entryCache) get(lsn int32) ([]byte, bool) {
	if ec == nil {
		return nil, false
	}
	return ec.c.Get(lsn)
}

func (ec *entryCache) set(lsn int32, payload []byte) {
	if ec == nil {
		return
	}
	ec.c.Set(lsn, payload, int64(len(payload)))
}

// invalidateFrom drops every cached entry at or after lsn. Called by
// Truncate, since those LSNs may be reissued with different payloads.
func (ec *entryCache) invalidateFrom(lsn int32, head int32) {
	if ec == nil {
		return
	}
	for l := lsn; l < head; l++ {
		ec.c.Del(l)
	}
}

func (ec *entryCache) close() {
	if ec == nil {
		return
	}
	ec.c.Close()
}
