package types

import "github.com/pkg/errors"

var (
	// ErrPeerInvalid is returned when an operation references an
	// unknown or wrong peer.
	ErrPeerInvalid = errors.New("unknown or invalid peer")

	// ErrPeerUnavailable is returned when no transport could be
	// established to the given address.
	ErrPeerUnavailable = errors.New("remote peer unavailable")

	// ErrPeerIncompatible is returned when a handshake is rejected.
	ErrPeerIncompatible = errors.New("remote peer incompatible")

	// ErrPeerDisconnected signals that the transport closed mid-stream.
	ErrPeerDisconnected = errors.New("remote peer disconnected")

	// ErrInvalidUpstream signals a batch on a stream id not known as
	// an upstream, a protocol violation by the remote.
	ErrInvalidUpstream = errors.New("invalid upstream")

	// ErrInvalidDownstream signals an ack or confirmation on a stream
	// id not known as a downstream.
	ErrInvalidDownstream = errors.New("invalid downstream")

	// ErrInvalidStreamState signals a credit overrun or an
	// out-of-order batch.
	ErrInvalidStreamState = errors.New("invalid stream state")

	// ErrUnexpectedMessage signals a wire frame that did not match
	// the expected form.
	ErrUnexpectedMessage = errors.New("unexpected message")

	// ErrShutdown is returned for operations invoked after shutdown.
	ErrShutdown = errors.New("endpoint is shutting down")
)
