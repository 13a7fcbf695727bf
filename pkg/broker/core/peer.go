package core

import (
	"github.com/jabolina/go-broker/pkg/broker/types"
)

// PeerStatus tracks how far the handshake with a remote endpoint has
// progressed.
type PeerStatus uint8

const (
	// PeerConnecting means the handshake started but at most one
	// direction of the channel is known.
	PeerConnecting PeerStatus = iota

	// PeerConnected means the local side opened its downstream and
	// confirmed the remote one, but the remote confirmation is still
	// outstanding.
	PeerConnected

	// PeerPeered means both directions exist and are confirmed.
	PeerPeered

	// PeerSevering means the peer is being torn down.
	PeerSevering
)

func (s PeerStatus) String() string {
	switch s {
	case PeerConnecting:
		return "connecting"
	case PeerConnected:
		return "connected"
	case PeerPeered:
		return "peered"
	case PeerSevering:
		return "severing"
	default:
		return "unknown"
	}
}

// PeerEntry holds everything the governor knows about one remote
// endpoint: the bidirectional channel stream ids, the downstream lane
// towards the remote and its advertised filter.
type PeerEntry struct {
	// Handle of the remote endpoint.
	Handle types.EndpointID

	// Config of this link, derived from the endpoint configuration
	// when the peering was established.
	Config *types.PeerConfiguration

	// IncomingSID is the stream the remote uses to send to us. Zero
	// until the handshake announced it.
	IncomingSID types.StreamID

	// Out is the downstream lane towards the remote, holding exactly
	// one path. Nil until the local downstream was opened.
	Out *Lane

	// Filter advertised by the remote endpoint.
	Filter types.Filter

	// Status of the handshake.
	Status PeerStatus
}

// OutgoingSID returns the stream id of the downstream towards the
// remote, or zero when it does not exist yet.
func (p *PeerEntry) OutgoingSID() types.StreamID {
	if p.Out == nil {
		return 0
	}
	return p.Out.SID()
}

// PeerDescriptor is the externally visible description of a peer.
type PeerDescriptor struct {
	Handle      types.EndpointID
	Name        string
	Address     *types.NetworkAddress
	Status      PeerStatus
	Filter      types.Filter
	IncomingSID types.StreamID
	OutgoingSID types.StreamID
}
