package core

import (
	"sync"

	"github.com/jabolina/go-broker/pkg/broker/types"
	"github.com/pkg/errors"
)

// Inbound is a frame received from a remote endpoint.
type Inbound struct {
	From  types.EndpointID
	Frame types.Frame
}

// Transport provides the communication primitives used by the
// governor. Frames between the same two endpoints are delivered in
// order; everything beyond that is up to the implementation.
type Transport interface {
	// Send the frame to the endpoint bound to the handle.
	Send(to types.EndpointID, f types.Frame) error

	// Listen for frames that arrive on the transport.
	Listen() <-chan Inbound

	// Close the transport for sending and receiving frames.
	Close()
}

const meshInboxSize = 1024

// Mesh is an in-process network of endpoints. Every joined endpoint
// gets a Transport bound to its identity; the mesh also doubles as
// the address resolver for the network cache.
type Mesh struct {
	mutex   sync.Mutex
	inboxes map[types.EndpointID]chan Inbound
	byAddr  map[types.NetworkAddress]types.EndpointID
	addrs   map[types.EndpointID]types.NetworkAddress
}

// NewMesh creates an empty in-process network.
func NewMesh() *Mesh {
	return &Mesh{
		inboxes: make(map[types.EndpointID]chan Inbound),
		byAddr:  make(map[types.NetworkAddress]types.EndpointID),
		addrs:   make(map[types.EndpointID]types.NetworkAddress),
	}
}

// Join registers the endpoint under the given address and returns its
// transport.
func (m *Mesh) Join(id types.EndpointID, addr types.NetworkAddress) Transport {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	inbox := make(chan Inbound, meshInboxSize)
	m.inboxes[id] = inbox
	m.byAddr[addr] = id
	m.addrs[id] = addr
	return &meshTransport{mesh: m, id: id, inbox: inbox}
}

// Leave drops the endpoint from the network. Frames towards it start
// failing, which peers observe as a disconnect.
func (m *Mesh) Leave(id types.EndpointID) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.drop(id)
}

func (m *Mesh) drop(id types.EndpointID) {
	inbox, ok := m.inboxes[id]
	if !ok {
		return
	}
	delete(m.inboxes, id)
	if addr, ok := m.addrs[id]; ok {
		delete(m.byAddr, addr)
		delete(m.addrs, id)
	}
	close(inbox)
}

// Resolve maps a network address to the endpoint listening on it.
// Implements the cache Resolver.
func (m *Mesh) Resolve(addr types.NetworkAddress) (types.EndpointID, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	id, ok := m.byAddr[addr]
	if !ok {
		return "", errors.Wrapf(types.ErrPeerUnavailable, "no endpoint on %s", addr)
	}
	return id, nil
}

// LookupAddr maps an endpoint back to its network address.
// Implements the cache Resolver.
func (m *Mesh) LookupAddr(id types.EndpointID) (types.NetworkAddress, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	addr, ok := m.addrs[id]
	if !ok {
		return types.NetworkAddress{}, errors.Wrapf(types.ErrPeerUnavailable, "unknown endpoint %s", id)
	}
	return addr, nil
}

func (m *Mesh) deliver(from, to types.EndpointID, f types.Frame) error {
	m.mutex.Lock()
	inbox, ok := m.inboxes[to]
	m.mutex.Unlock()
	if !ok {
		return errors.Wrapf(types.ErrPeerUnavailable, "endpoint %s left the network", to)
	}
	defer func() {
		// Sending on a just-closed inbox is a normal race with Leave.
		recover()
	}()
	inbox <- Inbound{From: from, Frame: f}
	return nil
}

type meshTransport struct {
	mesh   *Mesh
	id     types.EndpointID
	inbox  chan Inbound
	closed sync.Once
}

// meshTransport implements the Transport interface.
func (t *meshTransport) Send(to types.EndpointID, f types.Frame) error {
	return t.mesh.deliver(t.id, to, f)
}

// meshTransport implements the Transport interface.
func (t *meshTransport) Listen() <-chan Inbound {
	return t.inbox
}

// meshTransport implements the Transport interface.
func (t *meshTransport) Close() {
	t.closed.Do(func() {
		t.mesh.Leave(t.id)
	})
}
