// Package errors provides shared sentinel errors used throughout the ledger.
package errors

import stderrors "errors"

var (
	// ErrNotFound indicates the requested record was not found.
	ErrNotFound = stderrors.New("not found")

	// ErrClosed indicates the resource has been closed.
	ErrClosed = stderrors.New("closed")

	// ErrInvalidInput indicates the input is invalid.
	ErrInvalidInput = stderrors.New("invalid input")

	// ErrAlreadyExists indicates the record already exists.
	ErrAlreadyExists = stderrors.New("already exists")

	// ErrInsufficientBalance indicates an account cannot cover a transfer or reservation.
	ErrInsufficientBalance = stderrors.New("insufficient balance")

	// ErrOverflow indicates a counter or balance would exceed its range.
	ErrOverflow = stderrors.New("overflow")

	// ErrBadOrigin indicates a call was not signed by the account it claims.
	ErrBadOrigin = stderrors.New("bad origin")

	// ErrTxnDone indicates a transaction was used after commit or discard.
	ErrTxnDone = stderrors.New("transaction already finished")

	// ErrBufferFull indicates a buffer is at capacity.
	ErrBufferFull = stderrors.New("buffer full")
)
