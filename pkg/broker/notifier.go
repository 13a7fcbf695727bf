package broker

import (
	"github.com/jabolina/go-broker/pkg/broker/types"
	"github.com/pkg/errors"
)

// StatusCode enumerates the peer lifecycle events shipped on the
// statuses topic.
type StatusCode uint8

const (
	EndpointDiscovered StatusCode = iota
	PeerAdded
	PeerRemoved
	PeerLost
	EndpointUnreachable
)

func (s StatusCode) String() string {
	switch s {
	case EndpointDiscovered:
		return "endpoint_discovered"
	case PeerAdded:
		return "peer_added"
	case PeerRemoved:
		return "peer_removed"
	case PeerLost:
		return "peer_lost"
	case EndpointUnreachable:
		return "endpoint_unreachable"
	default:
		return "unknown"
	}
}

// notifier translates peer lifecycle events into data messages on
// the reserved topics. Shipping happens locally through the workers
// lane and is suppressed after NoEvents.
type notifier struct {
	e        *Endpoint
	disabled bool
}

func newNotifier(e *Endpoint) *notifier {
	return &notifier{e: e}
}

func (n *notifier) disable() {
	n.disabled = true
}

// statusEvent ships a status on the statuses topic.
func (n *notifier) statusEvent(code StatusCode, id types.EndpointID, msg string) {
	if n.disabled {
		return
	}
	n.e.conf.Logger.Debugf("status %s for %s: %s", code, id, msg)
	n.e.gov.LocalPush(types.TopicStatuses, n.payload(code.String(), id, msg))
}

// errorEvent ships an error on the errors topic. The kind is one of
// the types.Err* sentinels.
func (n *notifier) errorEvent(kind error, id types.EndpointID, msg string) {
	if n.disabled {
		return
	}
	n.e.conf.Logger.Debugf("error %v for %s: %s", kind, id, msg)
	n.e.gov.LocalPush(types.TopicErrors, n.payload(errorCodeName(kind), id, msg))
}

// unavailable ships a peer_unavailable error for an address that
// never resolved to an endpoint handle.
func (n *notifier) unavailable(addr types.NetworkAddress, msg string) {
	if n.disabled {
		return
	}
	n.e.gov.LocalPush(types.TopicErrors, types.Vector{
		types.EnumValue(errorCodeName(types.ErrPeerUnavailable)),
		types.None{},
		types.String(addr.String()),
		types.String(msg),
	})
}

// payload renders {code, node_id, network_address?, human_message}
// as a payload vector.
func (n *notifier) payload(code string, id types.EndpointID, msg string) types.Data {
	var addr types.Data = types.None{}
	if a, ok := n.e.cache.Find(id); ok {
		addr = types.String(a.String())
	}
	return types.Vector{
		types.EnumValue(code),
		types.String(string(id)),
		addr,
		types.String(msg),
	}
}

func errorCodeName(kind error) string {
	switch errors.Cause(kind) {
	case types.ErrPeerInvalid:
		return "peer_invalid"
	case types.ErrPeerUnavailable:
		return "peer_unavailable"
	case types.ErrPeerIncompatible:
		return "peer_incompatible"
	case types.ErrPeerDisconnected:
		return "peer_disconnected"
	case types.ErrInvalidUpstream:
		return "invalid_upstream"
	case types.ErrInvalidDownstream:
		return "invalid_downstream"
	case types.ErrInvalidStreamState:
		return "invalid_stream_state"
	case types.ErrUnexpectedMessage:
		return "unexpected_message"
	case types.ErrShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}
