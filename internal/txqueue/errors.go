package txqueue

import "errors"

// Errors returned by the queue components. Match with errors.Is.
var (
	ErrNotFound              = errors.New("transaction not found")
	ErrDuplicateHash         = errors.New("transaction hash already queued")
	ErrNonceInUse            = errors.New("nonce already held by a pending transaction")
	ErrInvalidTransition     = errors.New("transaction already in a terminal state")
	ErrNotPending            = errors.New("transaction is not pending")
	ErrAlreadyRunning        = errors.New("a batch is already running")
	ErrInvalidBatch          = errors.New("invalid batch config")
	ErrInvalidBump           = errors.New("gas increase percent must not be negative")
	ErrReplacementInProgress = errors.New("a replacement for this nonce is already in flight")
	ErrForeignAccount        = errors.New("transaction was sent by another account")

	// ErrSubmitFailed wraps any signing or broadcast failure from the Submitter.
	ErrSubmitFailed = errors.New("submitting transaction")

	// ErrTransientQuery wraps receipt and gas price lookups that failed but
	// may succeed on retry.
	ErrTransientQuery = errors.New("chain query failed")
)
