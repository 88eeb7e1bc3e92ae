// Package reactorerr holds the sentinel errors surfaced across package
// boundaries, in the style of the teacher's util.errors.go.
package reactorerr

import "errors"

var (
	// ErrAlreadyStarted marks a component that only ever starts once;
	// TcpServer.Start itself stays a silent no-op on repeat calls per its
	// idempotency contract, but a wrapping application can use this to
	// reject an explicit double-start as a programmer error.
	ErrAlreadyStarted = errors.New("reactor: already started")

	// ErrLoopMismatch names a call that must run on a component's owning
	// loop being made from a different thread. No function in this module
	// returns it; EventLoop.AssertInLoopThread panics instead.
	ErrLoopMismatch = errors.New("reactor: call made off the owning loop thread")

	// ErrSelfConnect names a non-blocking connect that raced with the
	// kernel's ephemeral port allocation and connected the socket to
	// itself. Connector logs its message and retries; it is not returned.
	ErrSelfConnect = errors.New("reactor: self connect detected")

	// ErrFrameTooLarge signals a protocol-layer frame exceeding a
	// configured maximum; the core surfaces it only so that a consumer's
	// framing codec can report it, it is never thrown by the core itself.
	ErrFrameTooLarge = errors.New("reactor: frame exceeds configured maximum size")

	// ErrTimerNotFound names a TimerId that is not registered. It is not
	// returned: timer.Queue.Cancel has no error result and silently
	// ignores an unknown or already-expired id.
	ErrTimerNotFound = errors.New("reactor: unknown timer id")

	// ErrConnectorStopped names a Connector that has been stopped. It is
	// not returned: Connector.Start has no error result, and calling it
	// after Stop starts connecting again.
	ErrConnectorStopped = errors.New("reactor: connector stopped")

	// ErrRetryLimitExceeded names a Connector that has exhausted a retry
	// budget. It is not returned or passed to any callback: Connector has
	// no retry limit and keeps retrying with its capped backoff.
	ErrRetryLimitExceeded = errors.New("reactor: connect retry limit exceeded")
)
