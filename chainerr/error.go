// Package chainerr defines the tagged result type the chain engine, mempool,
// and template builder use in place of a boolean return plus side-channel
// logging. Every fallible operation returns an error of this type so callers
// can branch on Kind without string-matching messages.
package chainerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind tags the reason an operation failed, per the error taxonomy in the
// specification.
type Kind int

// The error kinds a caller of the core may observe.
const (
	// KindDuplicate reports that the block or transaction is already known.
	KindDuplicate Kind = iota
	// KindUnknownParent reports that a block's parent is not in the index.
	KindUnknownParent
	// KindBadProofOfWork reports a block whose bits do not match the
	// required retarget, or whose hash does not satisfy its own target.
	KindBadProofOfWork
	// KindBadTimestamp reports a block timestamp at or before the median
	// of its ancestors.
	KindBadTimestamp
	// KindBadCheckpoint reports a block hash that conflicts with a
	// hardcoded checkpoint at its height.
	KindBadCheckpoint
	// KindNonFinal reports a block containing a non-final transaction.
	KindNonFinal
	// KindBadTransaction reports a malformed transaction: empty
	// inputs/outputs, an out-of-range value, or a coinbase submitted as a
	// loose transaction.
	KindBadTransaction
	// KindInputsUnavailable reports a missing previous transaction. For
	// the mempool this signals the caller that the input may arrive later.
	KindInputsUnavailable
	// KindScriptVerifyFailed reports a signature that failed verification.
	KindScriptVerifyFailed
	// KindDoubleSpend reports a conflict with an already-confirmed or
	// already-mempooled spend of the same outpoint.
	KindDoubleSpend
	// KindFeeTooLow reports a transaction whose fee is below the policy
	// minimum for its size.
	KindFeeTooLow
	// KindRateLimited reports a free/low-fee transaction rejected by the
	// decaying-rate anti-DoS limiter.
	KindRateLimited
	// KindNonStandard reports a transaction rejected by chain policy.
	KindNonStandard
	// KindOversizedOrExcessiveSigops reports a transaction too large, or
	// with too many signature operations, for its size.
	KindOversizedOrExcessiveSigops
	// KindDiskSpace reports insufficient disk space to append a block.
	KindDiskSpace
	// KindIOError reports a fatal I/O error from the block file.
	KindIOError
	// KindStoreTransactionAborted reports a key-value store transaction
	// that failed to commit; the caller may retry.
	KindStoreTransactionAborted
)

var kindNames = map[Kind]string{
	KindDuplicate:                   "duplicate",
	KindUnknownParent:               "unknown parent",
	KindBadProofOfWork:              "bad proof of work",
	KindBadTimestamp:                "bad timestamp",
	KindBadCheckpoint:               "bad checkpoint",
	KindNonFinal:                    "non-final transaction",
	KindBadTransaction:              "bad transaction",
	KindInputsUnavailable:           "inputs unavailable",
	KindScriptVerifyFailed:          "script verification failed",
	KindDoubleSpend:                 "double spend",
	KindFeeTooLow:                   "fee too low",
	KindRateLimited:                 "rate limited",
	KindNonStandard:                 "non-standard transaction",
	KindOversizedOrExcessiveSigops:  "oversized or excessive sigops",
	KindDiskSpace:                   "out of disk space",
	KindIOError:                     "I/O error",
	KindStoreTransactionAborted:     "store transaction aborted",
}

// String returns the human-readable name of the error kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("unknown error kind (%d)", int(k))
}

// Error is the tagged result type returned by every fallible core operation.
// It wraps a github.com/pkg/errors-constructed error so that failures carry
// a stack trace the way the original project's error() logging helper did,
// without losing the caller-switchable Kind.
type Error struct {
	Kind Kind
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Err)
}

// Unwrap allows errors.Is/errors.As to see through to the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an *Error of the given kind, formatting msg/args with
// github.com/pkg/errors.Errorf so the result carries a stack trace.
func New(kind Kind, msg string, args ...interface{}) *Error {
	return &Error{Kind: kind, Err: errors.Errorf(msg, args...)}
}

// Wrap builds an *Error of the given kind around an existing error, adding
// msg as context, mirroring github.com/pkg/errors.Wrap.
func Wrap(kind Kind, err error, msg string) *Error {
	return &Error{Kind: kind, Err: errors.Wrap(err, msg)}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
