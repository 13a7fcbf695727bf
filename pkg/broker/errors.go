package broker

import "github.com/jabolina/go-broker/pkg/broker/types"

// Error kinds surfaced by endpoint operations.
var (
	ErrPeerInvalid        = types.ErrPeerInvalid
	ErrPeerUnavailable    = types.ErrPeerUnavailable
	ErrPeerIncompatible   = types.ErrPeerIncompatible
	ErrPeerDisconnected   = types.ErrPeerDisconnected
	ErrInvalidUpstream    = types.ErrInvalidUpstream
	ErrInvalidDownstream  = types.ErrInvalidDownstream
	ErrInvalidStreamState = types.ErrInvalidStreamState
	ErrUnexpectedMessage  = types.ErrUnexpectedMessage
	ErrShutdown           = types.ErrShutdown
)
