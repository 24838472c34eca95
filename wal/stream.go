package wal

// RangeCursor is a pull-driven lazy sequence over a contiguous run of
// LSNs, returned by WAL.ReadRange. The index is consulted once for the
// whole range; payloads are read from the log file by a background
// producer that starts when the cursor is created and blocks whenever
// its one-item buffer is full, so it runs at most a couple of items
// ahead of the consumer (spec §4.C, §4.D). The sequence ends after
// exactly Count items. The cursor is not tied to the WAL's lifetime:
// payloads still unread when the WAL is closed come back from Next as
// errors.
type RangeCursor struct {
	first int32
	count int32
	buf   *lookaheadBuffer
	stop  chan struct{}
}

func newRangeCursor(log logReader, records []OffsetRecord, first int32) *RangeCursor {
	c := &RangeCursor{
		first: first,
		count: int32(len(records)),
		buf:   newLookaheadBuffer(1),
		stop:  make(chan struct{}),
	}
	go c.produce(log, records)
	return c
}

// logReader is the subset of randfile.File the cursor's producer needs;
// kept narrow so tests can fake it without a full random-access file.
type logReader interface {
	ReadAt(offset int64, length int) ([]byte, error)
}

func (c *RangeCursor) produce(log logReader, records []OffsetRecord) {
	defer c.buf.close()
	for i, rec := range records {
		payload, err := log.ReadAt(rec.Offset, int(rec.Length))
		select {
		case <-c.stop:
			return
		default:
		}
		c.buf.push(entryOrErr{lsn: c.first + int32(i), payload: payload, err: err})
		if err != nil {
			return
		}
	}
}

// Next pulls the next (lsn, payload) pair. ok is false once the sequence
// is exhausted or the cursor has been closed early.
func (c *RangeCursor) Next() (lsn int32, payload []byte, ok bool, err error) {
	v, open := c.buf.pop()
	if !open {
		return 0, nil, false, nil
	}
	return v.lsn, v.payload, true, v.err
}

// Count returns the total number of items this cursor will yield.
func (c *RangeCursor) Count() int32 {
	return c.count
}

// Close stops the cursor's background producer early. It is safe to call
// even after the sequence has been fully drained.
func (c *RangeCursor) Close() {
	select {
	case <-c.stop:
	default:
		close(c.stop)
	}
	for range c.buf.items {
		// drain so the producer goroutine's blocked push (if any) unblocks
	}
}
