package broker

import (
	"sync"

	"github.com/jabolina/go-broker/pkg/broker/core"
	"github.com/jabolina/go-broker/pkg/broker/definition"
	"github.com/jabolina/go-broker/pkg/broker/helper"
	"github.com/jabolina/go-broker/pkg/broker/types"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// Mailbox capacity of the core task.
	mailboxSize = 256

	// Initial credit granted to local workers and stores.
	defaultConsumerCredit = int64(64)
)

// Handler consumes batches delivered on the workers lane.
type Handler func(batch []types.Message)

// Holds information for shutting down the whole endpoint.
type poweroff struct {
	shutdown bool
	ch       chan struct{}
	mutex    *sync.Mutex
}

// Endpoint is a single participant of the broker mesh. It owns the
// stream governor and runs the core task: a single goroutine that
// serializes every mutation of governor state. External calls are
// delivered as messages through the mailbox.
type Endpoint struct {
	conf *types.Configuration

	gov      *core.Governor
	trans    core.Transport
	cache    *core.NetworkCache
	notifier *notifier
	invoker  core.Invoker
	registry *prometheus.Registry

	mailbox chan func()

	// Completion channels for in-flight peering attempts.
	pending map[types.EndpointID][]chan error

	// Waiters registered through AwaitPeer.
	waiters map[types.EndpointID][]chan error

	publishers map[types.StreamID]*Publisher

	off poweroff
}

// NewEndpoint creates an endpoint and starts its core task. The
// transport carries peer frames, the resolver backs the network
// cache.
func NewEndpoint(conf *types.Configuration, trans core.Transport, resolver core.Resolver) (*Endpoint, error) {
	if conf.ID == "" {
		conf.ID = helper.NewEndpointID()
	}
	if conf.Logger == nil {
		conf.Logger = definition.NewDefaultLogger(conf.Name)
	}
	if conf.Version == 0 {
		conf.Version = types.LatestProtocolVersion
	}
	e := &Endpoint{
		conf:       conf,
		trans:      trans,
		invoker:    core.InvokerInstance(),
		registry:   prometheus.NewRegistry(),
		mailbox:    make(chan func(), mailboxSize),
		pending:    make(map[types.EndpointID][]chan error),
		waiters:    make(map[types.EndpointID][]chan error),
		publishers: make(map[types.StreamID]*Publisher),
		off: poweroff{
			ch:    make(chan struct{}),
			mutex: &sync.Mutex{},
		},
	}
	e.notifier = newNotifier(e)
	metrics := core.NewMetrics(e.registry)
	e.gov = core.NewGovernor(conf, trans, e, metrics)
	e.cache = core.NewNetworkCache(resolver, e.invoker, func(continuation func()) {
		// Continuations tolerate arriving after termination.
		e.post(continuation)
	})
	e.invoker.Spawn(e.poll)
	return e, nil
}

// ID returns the endpoint identity.
func (e *Endpoint) ID() types.EndpointID {
	return e.conf.ID
}

// Registry exposes the endpoint's metric registry.
func (e *Endpoint) Registry() *prometheus.Registry {
	return e.registry
}

// Done is closed once the core task terminated.
func (e *Endpoint) Done() <-chan struct{} {
	return e.off.ch
}

// --- core task ---------------------------------------------------------------

// This method keeps polling as long as the endpoint is active,
// serializing operation requests and frames from the transport. A
// single handler runs to completion before the next one starts.
func (e *Endpoint) poll() {
	defer e.conf.Logger.Infof("shutdown endpoint %s", e.conf.ID)
	listen := e.trans.Listen()
	for {
		select {
		case <-e.off.ch:
			return
		case op := <-e.mailbox:
			op()
		case in, ok := <-listen:
			if !ok {
				listen = nil
				continue
			}
			e.gov.HandleFrame(in.From, in.Frame)
		}
	}
}

// post delivers an operation into the mailbox.
func (e *Endpoint) post(op func()) error {
	select {
	case <-e.off.ch:
		return types.ErrShutdown
	default:
	}
	select {
	case <-e.off.ch:
		return types.ErrShutdown
	case e.mailbox <- op:
		return nil
	}
}

// ask posts an operation and waits for its result.
func (e *Endpoint) ask(op func() error) error {
	res := make(chan error, 1)
	if err := e.post(func() { res <- op() }); err != nil {
		return err
	}
	select {
	case <-e.off.ch:
		return types.ErrShutdown
	case err := <-res:
		return err
	}
}

// wait posts an operation that completes later through the returned
// channel, for requests spanning multiple core task steps.
func (e *Endpoint) wait(op func(res chan error)) error {
	res := make(chan error, 1)
	if err := e.post(func() { op(res) }); err != nil {
		return err
	}
	select {
	case <-e.off.ch:
		return types.ErrShutdown
	case err := <-res:
		return err
	}
}

// --- operations --------------------------------------------------------------

// Subscribe adds the given topics to the endpoint filter and ships
// the updated filter to every peer when it changed.
func (e *Endpoint) Subscribe(topics ...types.Topic) error {
	return e.ask(func() error {
		if e.gov.ShuttingDown() {
			return types.ErrShutdown
		}
		e.gov.Subscribe(topics...)
		return nil
	})
}

// Filter returns the endpoint's current subscriptions.
func (e *Endpoint) Filter() (types.Filter, error) {
	var f types.Filter
	err := e.ask(func() error {
		f = e.gov.Filter()
		return nil
	})
	return f, err
}

// Publish routes a data message from an anonymous local producer,
// fire and forget. Credited producers use NewPublisher instead.
func (e *Endpoint) Publish(t types.Topic, d types.Data) error {
	return e.post(func() {
		if e.gov.ShuttingDown() {
			e.conf.Logger.Warnf("dropping publish on %s after shutdown", t)
			return
		}
		e.gov.PublishData(t, d)
	})
}

// PublishCommand routes a store command from an anonymous local
// producer.
func (e *Endpoint) PublishCommand(t types.Topic, cmd types.Command) error {
	return e.post(func() {
		if e.gov.ShuttingDown() {
			e.conf.Logger.Warnf("dropping command on %s after shutdown", t)
			return
		}
		e.gov.PublishCommand(t, cmd)
	})
}

// AttachWorker installs a local subscriber fed by the workers lane.
func (e *Endpoint) AttachWorker(name string, h Handler) error {
	return e.ask(func() error {
		e.gov.AttachWorker(&workerConsumer{name: name, handler: h}, defaultConsumerCredit)
		return nil
	})
}

// AttachStore installs a local data store fed by the stores lane.
func (e *Endpoint) AttachStore(name string, s types.Store) error {
	return e.ask(func() error {
		e.gov.AttachStore(&storeConsumer{name: name, store: s, log: e.conf.Logger}, defaultConsumerCredit)
		return nil
	})
}

// Detach removes a local worker or store.
func (e *Endpoint) Detach(name string) error {
	return e.ask(func() error {
		if !e.gov.DetachConsumer(name) {
			return types.ErrInvalidDownstream
		}
		return nil
	})
}

// Peer establishes a peering with the remote endpoint, completing
// when the handshake reaches the peered state or fails.
func (e *Endpoint) Peer(id types.EndpointID) error {
	return e.wait(func(res chan error) {
		e.startPeering(id, res)
	})
}

// PeerAddr resolves the network address and peers with the endpoint
// listening on it. Resolution happens off the core task; the
// continuation re-enters it.
func (e *Endpoint) PeerAddr(host string, port uint16) error {
	addr := types.NetworkAddress{Host: host, Port: port}
	return e.wait(func(res chan error) {
		e.cache.Fetch(addr,
			func(id types.EndpointID) { e.startPeering(id, res) },
			func(err error) {
				e.notifier.unavailable(addr, "unable to connect to remote peer")
				res <- err
			})
	})
}

func (e *Endpoint) startPeering(id types.EndpointID, res chan error) {
	if e.gov.ShuttingDown() {
		res <- types.ErrShutdown
		return
	}
	if entry := e.gov.Peer(id); entry != nil && entry.Status == core.PeerPeered {
		res <- nil
		return
	}
	if err := e.gov.StartPeering(id); err != nil {
		res <- err
		return
	}
	e.pending[id] = append(e.pending[id], res)
}

// Unpeer removes the peering with the remote endpoint.
func (e *Endpoint) Unpeer(id types.EndpointID) error {
	return e.ask(func() error {
		return e.gov.Unpeer(id)
	})
}

// UnpeerAddr removes the peering with the endpoint on the address.
func (e *Endpoint) UnpeerAddr(host string, port uint16) error {
	addr := types.NetworkAddress{Host: host, Port: port}
	return e.wait(func(res chan error) {
		e.cache.Fetch(addr,
			func(id types.EndpointID) { res <- e.gov.Unpeer(id) },
			func(err error) {
				e.notifier.errorEvent(types.ErrPeerInvalid, "", "cannot unpeer from unknown address "+addr.String())
				res <- types.ErrPeerInvalid
			})
	})
}

// AwaitPeer completes once the given node reaches the peered state.
func (e *Endpoint) AwaitPeer(id types.EndpointID) error {
	return e.wait(func(res chan error) {
		if entry := e.gov.Peer(id); entry != nil && entry.Status == core.PeerPeered {
			res <- nil
			return
		}
		e.waiters[id] = append(e.waiters[id], res)
	})
}

// PeerInfo describes every known peer.
func (e *Endpoint) PeerInfo() ([]core.PeerDescriptor, error) {
	var info []core.PeerDescriptor
	err := e.ask(func() error {
		info = e.gov.PeerInfo()
		for i := range info {
			if addr, ok := e.cache.Find(info[i].Handle); ok {
				a := addr
				info[i].Address = &a
			}
		}
		return nil
	})
	return info, err
}

// NoEvents disables status and error shipping on this endpoint.
func (e *Endpoint) NoEvents() error {
	return e.ask(func() error {
		e.notifier.disable()
		return nil
	})
}

// Shutdown closes every local source, stops accepting new publishes
// and blocks until all in-flight messages were acknowledged and the
// core task terminated.
func (e *Endpoint) Shutdown() {
	e.post(func() {
		for sid, p := range e.publishers {
			p.markClosed()
			e.gov.RemoveLocalSource(sid)
		}
		e.publishers = make(map[types.StreamID]*Publisher)
		e.gov.Shutdown()
	})
	<-e.off.ch
}

// --- governor events ---------------------------------------------------------

// Endpoint implements the core.Events interface. Every callback runs
// inside the core task.

func (e *Endpoint) PeerDiscovered(id types.EndpointID) {
	e.notifier.statusEvent(EndpointDiscovered, id, "found a new peer in the network")
}

func (e *Endpoint) PeerAdded(id types.EndpointID) {
	e.notifier.statusEvent(PeerAdded, id, "handshake successful")
	e.resolve(id, nil)
}

func (e *Endpoint) PeerRemoved(id types.EndpointID, msg string) {
	e.notifier.statusEvent(PeerRemoved, id, msg)
}

func (e *Endpoint) PeerLost(id types.EndpointID, msg string) {
	e.notifier.statusEvent(PeerLost, id, msg)
	e.resolve(id, types.ErrPeerUnavailable)
}

func (e *Endpoint) PeerError(kind error, id types.EndpointID, msg string) {
	e.notifier.errorEvent(kind, id, msg)
	e.resolve(id, kind)
}

func (e *Endpoint) ShutdownComplete() {
	e.off.mutex.Lock()
	defer e.off.mutex.Unlock()
	if e.off.shutdown {
		return
	}
	e.off.shutdown = true
	for id, waiters := range e.pending {
		for _, res := range waiters {
			res <- types.ErrShutdown
		}
		delete(e.pending, id)
	}
	for id, waiters := range e.waiters {
		for _, res := range waiters {
			res <- types.ErrShutdown
		}
		delete(e.waiters, id)
	}
	close(e.off.ch)
	e.trans.Close()
}

// resolve completes pending peering attempts and await waiters.
func (e *Endpoint) resolve(id types.EndpointID, err error) {
	for _, res := range e.pending[id] {
		res <- err
	}
	delete(e.pending, id)
	if err == nil {
		for _, res := range e.waiters[id] {
			res <- nil
		}
		delete(e.waiters, id)
	}
}

// --- local consumers ---------------------------------------------------------

type workerConsumer struct {
	name    string
	handler Handler
}

func (w *workerConsumer) ID() string {
	return w.name
}

func (w *workerConsumer) Deliver(batch []types.Message) int64 {
	w.handler(batch)
	return int64(len(batch))
}

type storeConsumer struct {
	name  string
	store types.Store
	log   types.Logger
}

func (s *storeConsumer) ID() string {
	return s.name
}

func (s *storeConsumer) Deliver(batch []types.Message) int64 {
	for _, m := range batch {
		if !m.IsCommand() {
			continue
		}
		if err := s.store.Apply(*m.Command); err != nil {
			s.log.Errorf("store %s failed applying command on %s. %v", s.name, m.Topic, err)
		}
	}
	return int64(len(batch))
}
