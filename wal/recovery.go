package wal

import "go.uber.org/zap"

// RecoveryDecider decides, for each uncommitted entry encountered during
// Recover, whether that entry should be kept (committed) or discarded
// (the log truncated at that point). It is the Go equivalent of the
// source's recovery handler, which could be either a callable or the
// literal sentinel false ("reject everything").
type RecoveryDecider interface {
	Decide(lsn int32, payload []byte) (bool, error)
}

// RecoverFunc adapts a plain function to a RecoveryDecider.
type RecoverFunc func(lsn int32, payload []byte) (bool, error)

// Decide implements RecoveryDecider.
func (f RecoverFunc) Decide(lsn int32, payload []byte) (bool, error) {
	return f(lsn, payload)
}

type rejectAll struct{}

func (rejectAll) Decide(int32, []byte) (bool, error) {
	return false, nil
}

// RejectAll is the Go equivalent of the source's recover(false) sentinel:
// every uncommitted entry is discarded.
var RejectAll RecoveryDecider = rejectAll{}

// Recover inspects every uncommitted entry (every LSN in
// [commit+1, head)) in order and asks decider whether to keep it. The
// first entry decider rejects, and everything after it, is discarded by
// truncating the log there. If decider accepts every uncommitted entry,
// the log is left with every surviving entry committed: next-1 == commit.
//
// If there is no uncommitted tail (commit+1 >= head), Recover returns
// immediately without calling decider.
func (w *WAL) Recover(decider RecoveryDecider) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}

	commit := w.idx.CommitHead()
	head := w.idx.Head()
	if commit+1 >= head {
		w.logger.Info("recover: nothing uncommitted", zap.Int32("commit", commit), zap.Int32("next", head))
		return nil
	}

	for lsn := commit + 1; lsn < head; lsn++ {
		payload, err := w.readLocked(lsn)
		if err != nil {
			return err
		}
		keep, err := decider.Decide(lsn, payload)
		if err != nil {
			return err
		}
		if !keep {
			w.logger.Info("recover: rejected, truncating", zap.Int32("lsn", lsn))
			return w.truncateLocked(lsn)
		}
		if _, err := w.idx.Commit(lsn); err != nil {
			return err
		}
		w.metrics.CommitCount++
		w.logger.Info("recover: accepted", zap.Int32("lsn", lsn))
	}

	newCommit := w.idx.CommitHead()
	w.logger.Info("recover: all accepted", zap.Int32("commit", newCommit))
	return w.truncateLocked(newCommit + 1)
}

// truncateLocked is Truncate's body, callable while w.mu is already held.
func (w *WAL) truncateLocked(fromLsn int32) error {
	head := w.idx.Head()
	newSize, err := w.idx.Truncate(fromLsn)
	if err != nil {
		return err
	}
	if err := w.log.Truncate(newSize); err != nil {
		return err
	}
	w.cache.invalidateFrom(fromLsn, head)
	w.metrics.TruncateCount++
	return nil
}
