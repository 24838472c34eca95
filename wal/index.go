package wal

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/anikak11/durawal/randfile"
)

// Marker is the 4-byte ASCII tag stamped at the start of every index file.
const Marker = "IDX$"

// HeaderLen is the fixed size, in bytes, of an index file's header:
// marker(4) + base(4) + head(4) + commit(4).
const HeaderLen = 16

const (
	offMarker = 0
	offBase   = 4
	offHead   = 8
	offCommit = 12
)

// OffsetRecord is one emitted element of Index.GetRange: the byte offset
// and length of a single LSN's entry inside the log file.
type OffsetRecord struct {
	Offset int64
	Length int64
}

// Index is the on-disk index file: a 16-byte header followed by a densely
// packed array of 4-byte big-endian byte offsets, one per LSN in
// [base, head] (the slot at head is a sentinel equal to the log file's
// current size). See spec §4.B for the exact layout.
type Index struct {
	mu     sync.Mutex
	file   randfile.File
	header [HeaderLen]byte
}

var errIndexClosed = fmt.Errorf("%w: index must be open", ErrAssertion)

func decodeHeader(h *[HeaderLen]byte) (base, head, commit int32) {
	base = int32(binary.BigEndian.Uint32(h[offBase : offBase+4]))
	head = int32(binary.BigEndian.Uint32(h[offHead : offHead+4]))
	commit = int32(binary.BigEndian.Uint32(h[offCommit : offCommit+4]))
	return
}

// OpenIndex opens an existing index file, validating the marker and
// minimum size.
func OpenIndex(path string, writable bool) (*Index, error) {
	f, err := randfile.Open(path, writable)
	if err != nil {
		return nil, err
	}
	sz, err := f.Size()
	if err != nil {
		f.Close()
		return nil, err
	}
	if sz < HeaderLen {
		f.Close()
		return nil, assertf("index file %s is too small to contain a header", path)
	}
	hdr, err := f.ReadAt(0, HeaderLen)
	if err != nil {
		f.Close()
		return nil, err
	}
	idx := &Index{file: f}
	copy(idx.header[:], hdr)
	if string(idx.header[offMarker:offMarker+4]) != Marker {
		f.Close()
		return nil, assertf("index file %s has an invalid marker", path)
	}
	return idx, nil
}

// CreateIndex creates a new index file. It is not idempotent: it presumes
// no file exists at path. base is normally 0; byteOffset is the starting
// offset of the log (normally 0), written as the sentinel slot 0.
func CreateIndex(path string, base int32, byteOffset int64) (*Index, error) {
	f, err := randfile.Create(path)
	if err != nil {
		return nil, err
	}
	idx := &Index{file: f}
	copy(idx.header[offMarker:offMarker+4], Marker)
	binary.BigEndian.PutUint32(idx.header[offBase:offBase+4], uint32(base))
	binary.BigEndian.PutUint32(idx.header[offHead:offHead+4], uint32(base))
	noCommit := int32(-1)
	binary.BigEndian.PutUint32(idx.header[offCommit:offCommit+4], uint32(noCommit))
	if err := idx.file.WriteAt(0, idx.header[:]); err != nil {
		f.Close()
		return nil, err
	}
	var slot [4]byte
	binary.BigEndian.PutUint32(slot[:], uint32(byteOffset))
	if err := idx.file.WriteAt(HeaderLen, slot[:]); err != nil {
		f.Close()
		return nil, err
	}
	return idx, nil
}

// Head returns the next free LSN (one past the last written entry).
func (idx *Index) Head() int32 {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	_, head, _ := decodeHeader(&idx.header)
	return head
}

// CommitHead returns the last committed LSN, or -1 if none.
func (idx *Index) CommitHead() int32 {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	_, _, commit := decodeHeader(&idx.header)
	return commit
}

// BaseIndex returns the index's base LSN (always 0 in the current,
// single-segment design; reserved for future segmentation).
func (idx *Index) BaseIndex() int32 {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	base, _, _ := decodeHeader(&idx.header)
	return base
}

// MarkerString returns the 4-byte marker stamped in the header.
func (idx *Index) MarkerString() string {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return string(idx.header[offMarker : offMarker+4])
}

// IsCommitted reports whether L is strictly before the commit head.
//
// This is the literal, observed semantics of the source: the most
// recently committed LSN is itself reported as not-yet-committed by this
// predicate. It is preserved verbatim rather than "fixed" — see
// IsCommittedOrEarlier for the corrected comparison.
func (idx *Index) IsCommitted(l int32) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	_, _, commit := decodeHeader(&idx.header)
	return l < commit
}

// IsCommittedOrEarlier reports whether L is at or before the commit head
// (L <= commit), the comparison most callers actually want.
func (idx *Index) IsCommittedOrEarlier(l int32) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	_, _, commit := decodeHeader(&idx.header)
	return l <= commit
}

// Commit persists L as the new commit head. A request at or before the
// next expected commit (commit+1) that is already <= commit succeeds
// idempotently without writing. A request that skips ahead of commit+1
// fails with an *OutOfOrderCommitError.
func (idx *Index) Commit(l int32) (int32, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.file == nil {
		return 0, errIndexClosed
	}

	_, _, commit := decodeHeader(&idx.header)
	expected := commit + 1
	if l < expected {
		return l, nil
	}
	if l != expected {
		return 0, &OutOfOrderCommitError{Expected: expected, Received: l}
	}
	binary.BigEndian.PutUint32(idx.header[offCommit:offCommit+4], uint32(l))
	if err := idx.file.WriteAt(offCommit, idx.header[offCommit:offCommit+4]); err != nil {
		return 0, err
	}
	return l, nil
}

func (idx *Index) slotOffset(l int32) int64 {
	base, _, _ := decodeHeader(&idx.header)
	return HeaderLen + int64(l-base)*4
}

// Offset returns O(L), the starting byte offset of LSN L in the log file.
// Valid for L <= head.
func (idx *Index) Offset(l int32) (int64, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.file == nil {
		return 0, errIndexClosed
	}
	_, head, _ := decodeHeader(&idx.header)
	if l > head {
		return 0, assertf("index out of range: %d > head %d", l, head)
	}
	buf, err := idx.file.ReadAt(idx.slotOffset(l), 4)
	if err != nil {
		return 0, err
	}
	return int64(int32(binary.BigEndian.Uint32(buf))), nil
}

// Get returns the offset and length of LSN L's entry. Valid for L < head.
func (idx *Index) Get(l int32) (OffsetRecord, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.file == nil {
		return OffsetRecord{}, errIndexClosed
	}
	return idx.getLocked(l)
}

func (idx *Index) getLocked(l int32) (OffsetRecord, error) {
	_, head, _ := decodeHeader(&idx.header)
	if l >= head {
		return OffsetRecord{}, assertf("index out of range: %d >= head %d", l, head)
	}
	buf, err := idx.file.ReadAt(idx.slotOffset(l), 8)
	if err != nil {
		return OffsetRecord{}, err
	}
	o := int64(int32(binary.BigEndian.Uint32(buf[0:4])))
	n := int64(int32(binary.BigEndian.Uint32(buf[4:8])))
	return OffsetRecord{Offset: o, Length: n - o}, nil
}

// GetRange returns count consecutive OffsetRecords starting at L. Valid
// for L < head and count <= head-L.
func (idx *Index) GetRange(l int32, count int32) ([]OffsetRecord, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.file == nil {
		return nil, errIndexClosed
	}

	_, head, _ := decodeHeader(&idx.header)
	if l >= head {
		return nil, assertf("index out of range: %d >= head %d", l, head)
	}
	if count > head-l {
		return nil, assertf("requested range [%d,%d) exceeds head %d", l, l+count, head)
	}
	if count < 0 {
		return nil, assertf("count must be non-negative, got %d", count)
	}

	buf, err := idx.file.ReadAt(idx.slotOffset(l), int((count+1)*4))
	if err != nil {
		return nil, err
	}
	records := make([]OffsetRecord, count)
	for i := int32(0); i < count; i++ {
		o := int64(int32(binary.BigEndian.Uint32(buf[i*4 : i*4+4])))
		n := int64(int32(binary.BigEndian.Uint32(buf[(i+1)*4 : (i+1)*4+4])))
		records[i] = OffsetRecord{Offset: o, Length: n - o}
	}
	return records, nil
}

// Increment records that the entry starting at O(head) has been fully
// written, ending (exclusive) at nextEndOffset. It writes the new
// sentinel slot, bumps head, and returns the LSN that was just assigned
// (the pre-increment head).
func (idx *Index) Increment(nextEndOffset int64) (int32, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.file == nil {
		return 0, errIndexClosed
	}

	_, head, _ := decodeHeader(&idx.header)
	assigned := head

	var slot [4]byte
	binary.BigEndian.PutUint32(slot[:], uint32(int32(nextEndOffset)))
	if err := idx.file.WriteAt(idx.slotOffset(head+1), slot[:]); err != nil {
		return 0, err
	}

	binary.BigEndian.PutUint32(idx.header[offHead:offHead+4], uint32(head+1))
	if err := idx.file.WriteAt(offHead, idx.header[offHead:offHead+4]); err != nil {
		return 0, err
	}
	return assigned, nil
}

// Truncate discards every LSN at or after T. It requires T > commit and
// T < head, with one deliberate softening of that upper bound: T == head
// is accepted as a no-op success (see spec §9's note on recover's final
// truncate call landing exactly on head). It returns the new end-of-log
// byte offset the caller should truncate the log file to.
func (idx *Index) Truncate(t int32) (int64, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.file == nil {
		return 0, errIndexClosed
	}

	base, head, commit := decodeHeader(&idx.header)
	if t == head {
		return idx.offsetLocked(head)
	}
	if t <= commit {
		return 0, fmt.Errorf("%w: cannot truncate a committed log entry", ErrAssertion)
	}
	if t > head {
		return 0, assertf("index out of range: %d > head %d", t, head)
	}

	binary.BigEndian.PutUint32(idx.header[offHead:offHead+4], uint32(t))
	if err := idx.file.WriteAt(offHead, idx.header[offHead:offHead+4]); err != nil {
		return 0, err
	}
	// The index file's byte length tracks head: HLEN + (head-base+1)*4.
	// Shrink away the now-stale trailing slots beyond the new head.
	if err := idx.file.Truncate(HeaderLen + int64(t-base+1)*4); err != nil {
		return 0, err
	}

	if t == base {
		return idx.offsetLocked(base)
	}
	rec, err := idx.getLocked(t - 1)
	if err != nil {
		return 0, err
	}
	return rec.Offset + rec.Length, nil
}

func (idx *Index) offsetLocked(l int32) (int64, error) {
	buf, err := idx.file.ReadAt(idx.slotOffset(l), 4)
	if err != nil {
		return 0, err
	}
	return int64(int32(binary.BigEndian.Uint32(buf))), nil
}

// Sync flushes the underlying file to stable storage.
func (idx *Index) Sync() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.file == nil {
		return errIndexClosed
	}
	return idx.file.Sync()
}

// Close closes the underlying file and clears the cached header.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.file == nil {
		return nil
	}
	err := idx.file.Close()
	idx.file = nil
	idx.header = [HeaderLen]byte{}
	return err
}
