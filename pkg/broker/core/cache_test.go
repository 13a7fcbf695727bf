package core

import (
	"testing"
	"time"

	"github.com/jabolina/go-broker/pkg/broker/types"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapResolver struct {
	byAddr map[types.NetworkAddress]types.EndpointID
}

func (r *mapResolver) Resolve(addr types.NetworkAddress) (types.EndpointID, error) {
	if id, ok := r.byAddr[addr]; ok {
		return id, nil
	}
	return "", errors.Wrap(types.ErrPeerUnavailable, addr.String())
}

func (r *mapResolver) LookupAddr(id types.EndpointID) (types.NetworkAddress, error) {
	for addr, known := range r.byAddr {
		if known == id {
			return addr, nil
		}
	}
	return types.NetworkAddress{}, errors.Wrap(types.ErrPeerUnavailable, string(id))
}

// drainingPost emulates the core task mailbox: continuations queue up
// and the test drains them explicitly.
type drainingPost struct {
	queue chan func()
}

func (p *drainingPost) post(f func()) {
	p.queue <- f
}

func (p *drainingPost) drainOne(t *testing.T) {
	t.Helper()
	select {
	case f := <-p.queue:
		f()
	case <-time.After(time.Second):
		t.Fatal("no continuation arrived")
	}
}

func TestNetworkCache_FetchResolvesThroughContinuation(t *testing.T) {
	addr := types.NetworkAddress{Host: "10.0.0.1", Port: 9999}
	resolver := &mapResolver{byAddr: map[types.NetworkAddress]types.EndpointID{addr: "node-1"}}
	mailbox := &drainingPost{queue: make(chan func(), 8)}
	cache := NewNetworkCache(resolver, InvokerInstance(), mailbox.post)

	var resolved types.EndpointID
	cache.Fetch(addr,
		func(id types.EndpointID) { resolved = id },
		func(err error) { t.Fatalf("unexpected resolution failure %v", err) })

	mailbox.drainOne(t)
	assert.Equal(t, types.EndpointID("node-1"), resolved)

	// A second fetch answers synchronously from the cache.
	resolved = ""
	cache.Fetch(addr,
		func(id types.EndpointID) { resolved = id },
		func(err error) { t.Fatalf("unexpected resolution failure %v", err) })
	assert.Equal(t, types.EndpointID("node-1"), resolved)
}

func TestNetworkCache_FetchUnknownAddressFails(t *testing.T) {
	resolver := &mapResolver{byAddr: map[types.NetworkAddress]types.EndpointID{}}
	mailbox := &drainingPost{queue: make(chan func(), 8)}
	cache := NewNetworkCache(resolver, InvokerInstance(), mailbox.post)

	var failure error
	cache.Fetch(types.NetworkAddress{Host: "nowhere", Port: 1},
		func(types.EndpointID) { t.Fatal("resolution should fail") },
		func(err error) { failure = err })

	mailbox.drainOne(t)
	require.Error(t, failure)
	assert.ErrorIs(t, failure, types.ErrPeerUnavailable)
}

func TestNetworkCache_AddRemoveFind(t *testing.T) {
	resolver := &mapResolver{byAddr: map[types.NetworkAddress]types.EndpointID{}}
	cache := NewNetworkCache(resolver, InvokerInstance(), func(f func()) { f() })

	addr := types.NetworkAddress{Host: "host", Port: 1}
	cache.Add("node", addr)

	found, ok := cache.Find("node")
	require.True(t, ok)
	assert.Equal(t, addr, found)

	cache.Remove("node")
	_, ok = cache.Find("node")
	assert.False(t, ok)
}
