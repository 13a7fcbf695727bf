package core

import (
	"github.com/jabolina/go-broker/pkg/broker/helper"
	"github.com/jabolina/go-broker/pkg/broker/types"
	"github.com/pkg/errors"
)

// minBufferSize is the slack the governor keeps on top of the
// downstream credit when granting credit upstream.
const minBufferSize = int64(5)

// Events receives peer lifecycle callbacks from the governor. The
// core actor implements it and fans out to its observers.
type Events interface {
	// PeerDiscovered fires when a new remote endpoint shows up.
	PeerDiscovered(id types.EndpointID)

	// PeerAdded fires when a handshake completes on this side.
	PeerAdded(id types.EndpointID)

	// PeerRemoved fires when the local side removed the peering.
	PeerRemoved(id types.EndpointID, msg string)

	// PeerLost fires when the remote side vanished.
	PeerLost(id types.EndpointID, msg string)

	// PeerError fires when an operation or handshake failed. The kind
	// is one of the types.Err* sentinels.
	PeerError(kind error, id types.EndpointID, msg string)

	// ShutdownComplete fires once after the governor drained every
	// path and terminated.
	ShutdownComplete()
}

// Governor multiplexes one upstream of published messages onto the
// local workers lane, the local stores lane and one lane per peer,
// applying filter matching, fan-out and credit based flow control.
// All methods must be called from the core task; the governor holds
// no locks.
type Governor struct {
	conf    *types.Configuration
	id      types.EndpointID
	version uint
	log     types.Logger
	metrics *Metrics
	trans   Transport
	events  Events

	filter types.Filter

	in      *Upstream
	workers *Lane
	stores  *Lane

	peers        map[types.EndpointID]*PeerEntry
	inputToPeers map[types.StreamID]*PeerEntry

	consumers    map[string]Consumer
	localSources map[types.StreamID]string

	shuttingDown bool
	terminated   bool

	sidBase    uint64
	sidCounter uint64
}

// NewGovernor creates a governor for the configured endpoint.
func NewGovernor(conf *types.Configuration, trans Transport, events Events, metrics *Metrics) *Governor {
	g := &Governor{
		conf:         conf,
		id:           conf.ID,
		version:      conf.Version,
		log:          conf.Logger,
		metrics:      metrics,
		trans:        trans,
		events:       events,
		filter:       conf.Filter.Clone(),
		in:           NewUpstream(),
		peers:        make(map[types.EndpointID]*PeerEntry),
		inputToPeers: make(map[types.StreamID]*PeerEntry),
		consumers:    make(map[string]Consumer),
		localSources: make(map[types.StreamID]string),
		sidBase:      helper.IdentityBits(conf.ID),
	}
	g.workers = NewLane(g.makeStreamID())
	g.stores = NewLane(g.makeStreamID())
	g.log.Debugf("started governor with workers SID %d and stores SID %d",
		g.workers.SID(), g.stores.SID())
	return g
}

func (g *Governor) makeStreamID() types.StreamID {
	g.sidCounter++
	return types.StreamID(g.sidBase | g.sidCounter)
}

// Filter returns the endpoint's current subscriptions.
func (g *Governor) Filter() types.Filter {
	return g.filter.Clone()
}

// ShuttingDown reports whether shutdown was requested.
func (g *Governor) ShuttingDown() bool {
	return g.shuttingDown
}

// Subscribe extends the endpoint filter and, on change, ships the new
// full filter to every peer in the connected or peered state. Returns
// whether the canonical filter changed.
func (g *Governor) Subscribe(additions ...types.Topic) bool {
	if !g.filter.Extend(additions...) {
		return false
	}
	for _, entry := range g.peers {
		if entry.Status == PeerConnecting || entry.Status == PeerSevering {
			continue
		}
		if err := g.trans.Send(entry.Handle, types.Frame{
			Type:   types.FilterUpdate,
			Node:   g.id,
			Filter: g.filter.Clone(),
		}); err != nil {
			g.peerDisconnected(entry, err)
		}
	}
	return true
}

// --- local consumers ---------------------------------------------------------

// AttachWorker installs a local subscriber on the workers lane.
func (g *Governor) AttachWorker(c Consumer, initialCredit int64) {
	g.consumers[c.ID()] = c
	g.workers.ConfirmPath("", c.ID(), initialCredit)
	g.emitLocal(g.workers)
	g.assignCredit()
}

// AttachStore installs a local data store on the stores lane.
func (g *Governor) AttachStore(c Consumer, initialCredit int64) {
	g.consumers[c.ID()] = c
	g.stores.ConfirmPath("", c.ID(), initialCredit)
	g.emitLocal(g.stores)
	g.assignCredit()
}

// DetachConsumer removes a local worker or store path.
func (g *Governor) DetachConsumer(handle string) bool {
	if !g.workers.RemovePath(handle) && !g.stores.RemovePath(handle) {
		return false
	}
	delete(g.consumers, handle)
	g.assignCredit()
	g.shutdownIfAtEnd("aborted last local sink")
	return true
}

// --- local sources -----------------------------------------------------------

// AddLocalSource installs a credited local publisher. Newly assigned
// credit is shipped through the grant callback.
func (g *Governor) AddLocalSource(grant func(add int64)) types.StreamID {
	sid := g.makeStreamID()
	handle := "local/" + helper.GenerateUID()
	g.localSources[sid] = handle
	g.in.AddPath(handle, sid, g.assignableCredit(), grant)
	return sid
}

// RemoveLocalSource closes a local publisher.
func (g *Governor) RemoveLocalSource(sid types.StreamID) {
	handle, ok := g.localSources[sid]
	if !ok {
		return
	}
	delete(g.localSources, sid)
	g.in.RemovePath(handle)
	g.shutdownIfAtEnd("closed last local input")
}

// HasLocalSources reports whether any local publisher is open.
func (g *Governor) HasLocalSources() bool {
	return len(g.localSources) > 0
}

// --- publishing --------------------------------------------------------------

// PublishData routes a locally published data message.
func (g *Governor) PublishData(t types.Topic, d types.Data) {
	g.publishLocal(types.NewDataMessage(t, d))
}

// PublishCommand routes a locally published store command.
func (g *Governor) PublishCommand(t types.Topic, cmd types.Command) {
	g.publishLocal(types.NewCommandMessage(t, cmd))
}

// PublishFrom routes a message coming from a credited local source.
func (g *Governor) PublishFrom(sid types.StreamID, m types.Message) error {
	path := g.in.FindBySID(sid)
	if path == nil {
		return errors.Wrapf(types.ErrInvalidUpstream, "source %d", sid)
	}
	if path.AssignedCredit <= 0 {
		return errors.Wrapf(types.ErrInvalidStreamState, "source %d has no credit", sid)
	}
	path.AssignedCredit--
	path.LastBatchID++
	g.publishLocal(m)
	return nil
}

func (g *Governor) publishLocal(m types.Message) {
	g.metrics.Published.Inc()
	for _, entry := range g.peers {
		if entry.Out == nil {
			continue
		}
		if !entry.Filter.Matches(m.Topic) {
			continue
		}
		entry.Out.Push(m)
		g.emitPeer(entry)
	}
	// Local delivery only when the endpoint subscribed to the topic.
	// Messages from peers skip this check: they already matched the
	// filter this endpoint advertised.
	if g.filter.Matches(m.Topic) {
		if m.IsCommand() {
			g.stores.Push(m)
			g.emitLocal(g.stores)
		} else {
			g.workers.Push(m)
			g.emitLocal(g.workers)
		}
	}
	g.updateBufferGauge()
	g.assignCredit()
}

// LocalPush delivers a data message to local subscribers only. Used
// for status and error events on the reserved topics.
func (g *Governor) LocalPush(t types.Topic, d types.Data) {
	g.workers.Push(types.NewDataMessage(t, d))
	g.emitLocal(g.workers)
	g.assignCredit()
}

// --- emission ----------------------------------------------------------------

// emitLocal drains a local lane, delivering batches to the consumers
// and applying their granted demand. Acking may free credit for more
// buffered messages, so emission loops until the lane stalls.
func (g *Governor) emitLocal(l *Lane) {
	for {
		emissions := l.EmitBatches()
		if len(emissions) == 0 {
			return
		}
		for _, em := range emissions {
			g.metrics.BatchesEmitted.Inc()
			c, ok := g.consumers[em.Handle]
			if !ok {
				// Path without a consumer, drop and refill.
				l.Ack(em.Handle, em.BatchID, int64(len(em.Messages)))
				continue
			}
			demand := c.Deliver(em.Messages)
			g.metrics.Delivered.Add(float64(len(em.Messages)))
			l.Ack(em.Handle, em.BatchID, demand)
		}
	}
}

// emitPeer drains the downstream lane of one peer into batch frames.
func (g *Governor) emitPeer(entry *PeerEntry) {
	if entry.Out == nil {
		return
	}
	for _, em := range entry.Out.EmitBatches() {
		g.metrics.BatchesEmitted.Inc()
		g.metrics.Forwarded.Add(float64(len(em.Messages)))
		err := g.trans.Send(entry.Handle, types.Frame{
			Type:     types.Batch,
			Node:     g.id,
			SID:      entry.Out.SID(),
			BatchID:  em.BatchID,
			Credit:   int64(len(em.Messages)),
			Messages: em.Messages,
		})
		if err != nil {
			g.peerDisconnected(entry, err)
			return
		}
	}
}

// pushAll flushes every lane that still buffers messages.
func (g *Governor) pushAll() {
	if g.workers.BufSize() > 0 {
		g.emitLocal(g.workers)
	}
	if g.stores.BufSize() > 0 {
		g.emitLocal(g.stores)
	}
	for _, entry := range g.peers {
		if entry.Out != nil && entry.Out.BufSize() > 0 {
			g.emitPeer(entry)
		}
	}
	g.updateBufferGauge()
}

// --- credit ------------------------------------------------------------------

// downstreamCredit returns the minimum open credit across every
// downstream path that currently exists, plus the buffer slack.
func (g *Governor) downstreamCredit() int64 {
	result := creditSentinel
	for _, entry := range g.peers {
		if entry.Out == nil || entry.Out.NumPaths() == 0 {
			continue
		}
		if c := entry.Out.MinCredit(); c < result {
			result = c
		}
	}
	if g.workers.NumPaths() > 0 {
		if c := g.workers.MinCredit(); c < result {
			result = c
		}
	}
	if g.stores.NumPaths() > 0 {
		if c := g.stores.MinCredit(); c < result {
			result = c
		}
	}
	if result == creditSentinel {
		result = 0
	}
	return result + minBufferSize
}

// downstreamBufferSize returns how many messages are buffered across
// all downstream lanes. Workers carry data messages and stores carry
// commands, so both counts add up.
func (g *Governor) downstreamBufferSize() int64 {
	result := g.workers.BufSize() + g.stores.BufSize()
	for _, entry := range g.peers {
		if entry.Out != nil {
			result += entry.Out.BufSize()
		}
	}
	return result
}

// assignableCredit is how much new credit the governor is willing to
// hand out upstream right now.
func (g *Governor) assignableCredit() int64 {
	current := g.downstreamBufferSize()
	desired := g.downstreamCredit()
	if current >= desired {
		return 0
	}
	return desired - current
}

// assignCredit grants the currently assignable credit upstream.
func (g *Governor) assignCredit() {
	if x := g.assignableCredit(); x > 0 {
		g.in.AssignCredit(x)
	}
}

func (g *Governor) updateBufferGauge() {
	g.metrics.Buffered.Set(float64(g.downstreamBufferSize()))
}

// --- peering -----------------------------------------------------------------

// Peer returns the entry for the handle, or nil.
func (g *Governor) Peer(id types.EndpointID) *PeerEntry {
	return g.peers[id]
}

// PeerInfo describes every known peer.
func (g *Governor) PeerInfo() []PeerDescriptor {
	out := make([]PeerDescriptor, 0, len(g.peers))
	for _, entry := range g.peers {
		out = append(out, PeerDescriptor{
			Handle:      entry.Handle,
			Name:        entry.Config.Name,
			Status:      entry.Status,
			Filter:      entry.Filter.Clone(),
			IncomingSID: entry.IncomingSID,
			OutgoingSID: entry.OutgoingSID(),
		})
	}
	return out
}

// StartPeering performs step zero of the handshake towards the
// remote endpoint. Idempotent for already known handles.
func (g *Governor) StartPeering(to types.EndpointID) error {
	if g.shuttingDown {
		return types.ErrShutdown
	}
	if _, ok := g.peers[to]; ok {
		return nil
	}
	entry := &PeerEntry{
		Handle: to,
		Config: g.conf.NewPeerConfiguration(to),
		Status: PeerConnecting,
	}
	g.peers[to] = entry
	g.metrics.Peers.Set(float64(len(g.peers)))
	g.events.PeerDiscovered(to)
	err := g.trans.Send(to, types.Frame{
		Type:    types.Hello,
		Node:    g.id,
		Version: g.version,
		Filter:  g.filter.Clone(),
	})
	if err != nil {
		delete(g.peers, to)
		g.metrics.Peers.Set(float64(len(g.peers)))
		g.events.PeerError(types.ErrPeerUnavailable, to, "unable to reach remote peer")
		return errors.Wrapf(types.ErrPeerUnavailable, "hello to %s", to)
	}
	return nil
}

// Unpeer tears down the peering with the remote endpoint.
func (g *Governor) Unpeer(id types.EndpointID) error {
	entry, ok := g.peers[id]
	if !ok {
		g.events.PeerError(types.ErrPeerInvalid, id, "cannot unpeer from unknown peer")
		return errors.Wrapf(types.ErrPeerInvalid, "unpeer %s", id)
	}
	entry.Status = PeerSevering
	if entry.Out != nil {
		g.trans.Send(id, types.Frame{
			Type:   types.Close,
			Node:   g.id,
			SID:    entry.Out.SID(),
			Reason: "user shutdown",
		})
		entry.Out.Abort()
	}
	g.erasePeer(entry)
	g.events.PeerRemoved(id, "removed connection to remote peer")
	g.shutdownIfAtEnd("removed last peer")
	return nil
}

// erasePeer removes the upstream path and the entry itself.
func (g *Governor) erasePeer(entry *PeerEntry) {
	if entry.IncomingSID != 0 {
		delete(g.inputToPeers, entry.IncomingSID)
	}
	g.in.RemovePath(string(entry.Handle))
	delete(g.peers, entry.Handle)
	g.metrics.Peers.Set(float64(len(g.peers)))
}

// peerLost handles an observed disconnect of the remote side.
func (g *Governor) peerLost(entry *PeerEntry, msg string) {
	entry.Status = PeerSevering
	if entry.Out != nil {
		entry.Out.Abort()
	}
	g.erasePeer(entry)
	g.events.PeerLost(entry.Handle, msg)
	g.shutdownIfAtEnd("lost last peer")
}

func (g *Governor) peerDisconnected(entry *PeerEntry, err error) {
	if entry.Status == PeerSevering {
		return
	}
	g.log.Warnf("transport on link %s failed. %v", entry.Config.Name, err)
	g.peerLost(entry, "lost connection to remote peer")
}

// dropPeer removes a peer after a protocol violation.
func (g *Governor) dropPeer(entry *PeerEntry, cause error) {
	g.log.Warnf("dropping link %s. %v", entry.Config.Name, cause)
	entry.Status = PeerSevering
	if entry.Out != nil {
		entry.Out.Abort()
	}
	g.erasePeer(entry)
	g.events.PeerError(types.ErrPeerIncompatible, entry.Handle, cause.Error())
	g.trans.Send(entry.Handle, types.Frame{
		Type:   types.Close,
		Node:   g.id,
		Reason: cause.Error(),
	})
}

// --- frame handling ----------------------------------------------------------

// HandleFrame processes one frame received from the transport.
func (g *Governor) HandleFrame(from types.EndpointID, f types.Frame) {
	switch f.Type {
	case types.Hello:
		g.handleHello(from, f)
	case types.HelloAck:
		g.handleHelloAck(from, f)
	case types.Open:
		g.handleOpen(from, f)
	case types.AckOpen:
		g.handleAckOpen(from, f)
	case types.Batch:
		if err := g.handleBatch(from, f); err != nil {
			if entry, ok := g.peers[from]; ok {
				g.dropPeer(entry, err)
			}
		}
	case types.BatchAck:
		g.handleBatchAck(from, f)
	case types.FilterUpdate:
		if entry, ok := g.peers[from]; ok {
			entry.Filter = f.Filter.Clone()
		}
	case types.Close:
		g.handleClose(from, f)
	case types.Bye:
		if entry, ok := g.peers[from]; ok {
			g.peerLost(entry, "remote endpoint shut down")
		}
	default:
		g.log.Warnf("unexpected frame type %d from %s", f.Type, from)
		if entry, ok := g.peers[from]; ok {
			g.dropPeer(entry, errors.Wrapf(types.ErrUnexpectedMessage, "frame type %d", f.Type))
		}
	}
}

// handleHello runs step one: open the downstream towards the
// requester and answer with our filter and the new stream id.
func (g *Governor) handleHello(from types.EndpointID, f types.Frame) {
	if g.shuttingDown {
		g.trans.Send(from, types.Frame{Type: types.Close, Node: g.id, Reason: "shutting down"})
		return
	}
	if f.Version != g.version {
		g.events.PeerError(types.ErrPeerIncompatible, from, "protocol version mismatch")
		g.trans.Send(from, types.Frame{Type: types.Close, Node: g.id, Reason: "protocol version mismatch"})
		return
	}
	if entry, ok := g.peers[from]; ok {
		// Duplicate handshake attempts are idempotent, unless the
		// second one carries a conflicting filter.
		if !entry.Filter.Equal(f.Filter) {
			g.events.PeerError(types.ErrPeerInvalid, from, "conflicting filter on duplicate handshake")
		}
		return
	}
	entry := &PeerEntry{
		Handle: from,
		Config: g.conf.NewPeerConfiguration(from),
		Filter: f.Filter.Clone(),
		Status: PeerConnecting,
	}
	entry.Out = NewLane(g.makeStreamID())
	entry.Out.ConfirmPath("", string(from), 0)
	g.peers[from] = entry
	g.metrics.Peers.Set(float64(len(g.peers)))
	g.events.PeerDiscovered(from)
	err := g.trans.Send(from, types.Frame{
		Type:    types.HelloAck,
		Node:    g.id,
		Version: g.version,
		Filter:  g.filter.Clone(),
		SID:     entry.Out.SID(),
	})
	if err != nil {
		g.peerDisconnected(entry, err)
	}
}

// handleHelloAck runs step two: confirm the remote downstream as our
// upstream and open the reverse direction.
func (g *Governor) handleHelloAck(from types.EndpointID, f types.Frame) {
	entry, ok := g.peers[from]
	if !ok {
		g.log.Warnf("HELLO_ACK from unknown endpoint %s", from)
		return
	}
	entry.Filter = f.Filter.Clone()
	g.addPeerUpstream(entry, f.SID)
	entry.Out = NewLane(g.makeStreamID())
	entry.Out.ConfirmPath("", string(from), 0)
	entry.Status = PeerConnected
	err := g.trans.Send(from, types.Frame{
		Type: types.Open,
		Node: g.id,
		SID:  entry.Out.SID(),
	})
	if err != nil {
		g.peerDisconnected(entry, err)
		return
	}
	g.assignCredit()
}

// handleOpen runs step three on the responder: record the incoming
// stream and confirm it.
func (g *Governor) handleOpen(from types.EndpointID, f types.Frame) {
	entry, ok := g.peers[from]
	if !ok {
		g.log.Warnf("OPEN from unknown endpoint %s", from)
		return
	}
	g.addPeerUpstream(entry, f.SID)
	err := g.trans.Send(from, types.Frame{
		Type: types.AckOpen,
		Node: g.id,
		SID:  f.SID,
	})
	if err != nil {
		g.peerDisconnected(entry, err)
		return
	}
	g.assignCredit()
	g.markPeered(entry)
}

// handleAckOpen runs step four on the requester side.
func (g *Governor) handleAckOpen(from types.EndpointID, f types.Frame) {
	entry, ok := g.peers[from]
	if !ok || entry.Out == nil || entry.Out.SID() != f.SID {
		g.log.Warnf("ACK_OPEN for unknown downstream %d from %s", f.SID, from)
		return
	}
	g.markPeered(entry)
}

// markPeered transitions once both directions of the channel exist.
func (g *Governor) markPeered(entry *PeerEntry) {
	if entry.Status == PeerPeered {
		return
	}
	if entry.IncomingSID == 0 || entry.Out == nil {
		return
	}
	entry.Status = PeerPeered
	g.events.PeerAdded(entry.Handle)
}

// addPeerUpstream installs the peer's incoming stream as an upstream
// path whose credit grants travel back as BATCH_ACK frames.
func (g *Governor) addPeerUpstream(entry *PeerEntry, sid types.StreamID) {
	entry.IncomingSID = sid
	handle := string(entry.Handle)
	to := entry.Handle
	var path *UpstreamPath
	path = g.in.AddPath(handle, sid, 0, func(add int64) {
		err := g.trans.Send(to, types.Frame{
			Type:    types.BatchAck,
			Node:    g.id,
			SID:     sid,
			BatchID: path.LastBatchID,
			Credit:  add,
		})
		if err != nil {
			if e, ok := g.peers[to]; ok {
				g.peerDisconnected(e, err)
			}
		}
	})
	g.inputToPeers[sid] = entry
}

// handleBatch applies the upstream batch contract: validate source
// and credit, fan out to every other peer and to the local lanes,
// then grant new credit upstream.
func (g *Governor) handleBatch(from types.EndpointID, f types.Frame) error {
	path := g.in.Find(string(from))
	if path == nil {
		return errors.Wrapf(types.ErrInvalidUpstream, "batch from %s", from)
	}
	size := int64(len(f.Messages))
	if size > path.AssignedCredit {
		return errors.Wrapf(types.ErrInvalidStreamState,
			"batch of %d exceeds assigned credit %d", size, path.AssignedCredit)
	}
	if f.BatchID <= path.LastBatchID {
		return errors.Wrapf(types.ErrInvalidStreamState,
			"batch id %d not after %d", f.BatchID, path.LastBatchID)
	}
	g.metrics.BatchesReceived.Inc()
	path.LastBatchID = f.BatchID
	path.AssignedCredit -= size
	for _, m := range f.Messages {
		m.Origin = from
		for _, entry := range g.peers {
			// Never echo a message back on the stream it came in on.
			if entry.IncomingSID == f.SID || entry.Out == nil {
				continue
			}
			if entry.Filter.Matches(m.Topic) {
				entry.Out.Push(m)
			}
		}
		if m.IsCommand() {
			g.stores.Push(m)
		} else {
			g.workers.Push(m)
		}
	}
	g.pushAll()
	g.assignCredit()
	return nil
}

// handleBatchAck opens credit on the downstream towards the peer.
func (g *Governor) handleBatchAck(from types.EndpointID, f types.Frame) {
	entry, ok := g.peers[from]
	if !ok || entry.Out == nil || entry.Out.SID() != f.SID {
		g.log.Warnf("BATCH_ACK for unknown downstream %d from %s", f.SID, from)
		return
	}
	if err := entry.Out.Ack(string(from), f.BatchID, f.Credit); err != nil {
		g.dropPeer(entry, err)
		return
	}
	g.shutdownIfAtEnd("received last ack")
	if g.terminated {
		return
	}
	g.emitPeer(entry)
	g.updateBufferGauge()
	g.assignCredit()
}

// handleClose tears down the channel with the sending peer. A close
// during the handshake reports a rejected peering instead.
func (g *Governor) handleClose(from types.EndpointID, f types.Frame) {
	entry, ok := g.peers[from]
	if !ok {
		return
	}
	if entry.Status == PeerConnecting || entry.Status == PeerConnected {
		entry.Status = PeerSevering
		if entry.Out != nil {
			entry.Out.Abort()
		}
		g.erasePeer(entry)
		g.events.PeerError(types.ErrPeerIncompatible, from, f.Reason)
		return
	}
	g.peerLost(entry, "lost remote peer")
}

// --- termination -------------------------------------------------------------

// Shutdown stops accepting local publishes and terminates the
// governor once every path drained.
func (g *Governor) Shutdown() {
	g.shuttingDown = true
	g.shutdownIfAtEnd("shutdown requested")
}

// atEnd verifies the termination predicate: shutdown requested, no
// local sources, local lanes drained and every path clean.
func (g *Governor) atEnd() bool {
	if !g.shuttingDown || len(g.localSources) > 0 {
		return false
	}
	if !g.workers.Closed() || !g.stores.Closed() {
		return false
	}
	for _, entry := range g.peers {
		if entry.Out != nil && !entry.Out.Clean() {
			return false
		}
	}
	return true
}

func (g *Governor) shutdownIfAtEnd(reason string) {
	if g.terminated || !g.atEnd() {
		return
	}
	g.log.Debugf("governor terminating: %s", reason)
	g.terminate()
}

// terminate says goodbye to every peer, aborts all paths and fires
// the shutdown event exactly once.
func (g *Governor) terminate() {
	g.terminated = true
	for _, entry := range g.peers {
		if entry.Status == PeerSevering {
			continue
		}
		g.trans.Send(entry.Handle, types.Frame{Type: types.Bye, Node: g.id})
		if entry.Out != nil {
			entry.Out.Abort()
		}
	}
	g.peers = make(map[types.EndpointID]*PeerEntry)
	g.inputToPeers = make(map[types.StreamID]*PeerEntry)
	g.workers.Abort()
	g.stores.Abort()
	g.in.Abort()
	g.metrics.Peers.Set(0)
	g.events.ShutdownComplete()
}
