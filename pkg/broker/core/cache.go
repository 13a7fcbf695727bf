package core

import (
	"github.com/jabolina/go-broker/pkg/broker/types"
)

// Resolver turns network addresses into endpoint handles and back.
// Lookups may be slow; the cache always calls them off the core task.
type Resolver interface {
	Resolve(addr types.NetworkAddress) (types.EndpointID, error)
	LookupAddr(id types.EndpointID) (types.NetworkAddress, error)
}

// NetworkCache associates network addresses to endpoint handles and
// vice versa. Resolution happens asynchronously: the result is posted
// back into the core task through the post callback, so cache state
// is only ever touched from that task. Continuations run after other
// messages may have interleaved and must re-check whatever peer state
// they depend on.
type NetworkCache struct {
	resolver Resolver
	invoker  Invoker
	post     func(continuation func())
	byID     map[types.EndpointID]types.NetworkAddress
	byAddr   map[types.NetworkAddress]types.EndpointID
}

// NewNetworkCache creates a cache resolving through the given
// resolver and posting continuations with post.
func NewNetworkCache(resolver Resolver, invoker Invoker, post func(func())) *NetworkCache {
	return &NetworkCache{
		resolver: resolver,
		invoker:  invoker,
		post:     post,
		byID:     make(map[types.EndpointID]types.NetworkAddress),
		byAddr:   make(map[types.NetworkAddress]types.EndpointID),
	}
}

// Add records a known handle to address mapping.
func (c *NetworkCache) Add(id types.EndpointID, addr types.NetworkAddress) {
	c.byID[id] = addr
	c.byAddr[addr] = id
}

// Remove drops the mapping for the handle.
func (c *NetworkCache) Remove(id types.EndpointID) {
	if addr, ok := c.byID[id]; ok {
		delete(c.byAddr, addr)
		delete(c.byID, id)
	}
}

// Find returns the cached address for the handle.
func (c *NetworkCache) Find(id types.EndpointID) (types.NetworkAddress, bool) {
	addr, ok := c.byID[id]
	return addr, ok
}

// Fetch resolves the address into an endpoint handle, invoking
// exactly one of the callbacks from the core task.
func (c *NetworkCache) Fetch(addr types.NetworkAddress, onOk func(types.EndpointID), onErr func(error)) {
	if id, ok := c.byAddr[addr]; ok {
		onOk(id)
		return
	}
	c.invoker.Spawn(func() {
		id, err := c.resolver.Resolve(addr)
		c.post(func() {
			if err != nil {
				onErr(err)
				return
			}
			c.Add(id, addr)
			onOk(id)
		})
	})
}

// FetchAddr resolves the handle into a network address, invoking
// exactly one of the callbacks from the core task.
func (c *NetworkCache) FetchAddr(id types.EndpointID, onOk func(types.NetworkAddress), onErr func(error)) {
	if addr, ok := c.byID[id]; ok {
		onOk(addr)
		return
	}
	c.invoker.Spawn(func() {
		addr, err := c.resolver.LookupAddr(id)
		c.post(func() {
			if err != nil {
				onErr(err)
				return
			}
			c.Add(id, addr)
			onOk(addr)
		})
	})
}
