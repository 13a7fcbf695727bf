package core

import (
	"math"

	"github.com/jabolina/go-broker/pkg/broker/types"
	"github.com/pkg/errors"
)

// creditSentinel stands in for the minimum credit of a lane class
// that currently has no paths.
const creditSentinel = int64(math.MaxInt64)

// Emission is a single batch assembled by a lane, ready to be
// shipped to the consumer behind the path.
type Emission struct {
	Handle   string
	BatchID  int64
	Messages []types.Message
}

// Lane owns the downstream paths of one fan-out class: the local
// workers, the local stores, or the single path towards one peer.
// Pushing buffers a message on every path; emission drains buffers
// into batches bounded by each path's open credit.
type Lane struct {
	sid   types.StreamID
	paths []*DownstreamPath
}

// NewLane creates an empty lane using the given outgoing stream id.
func NewLane(sid types.StreamID) *Lane {
	return &Lane{sid: sid}
}

// SID returns the outgoing stream id of this lane.
func (l *Lane) SID() types.StreamID {
	return l.sid
}

// Push appends the message to the buffer of every path.
func (l *Lane) Push(m types.Message) {
	for _, p := range l.paths {
		p.pending = append(p.pending, m)
	}
}

// EmitBatches assembles batches on every path while open credit and
// buffered messages remain. Each batch holds at most the path's open
// credit, carries a strictly monotonic id and no message is ever
// emitted twice on the same path.
func (l *Lane) EmitBatches() []Emission {
	var out []Emission
	for _, p := range l.paths {
		for p.OpenCredit > 0 && len(p.pending) > 0 {
			n := p.OpenCredit
			if max := int64(len(p.pending)); n > max {
				n = max
			}
			batch := make([]types.Message, n)
			copy(batch, p.pending[:n])
			p.pending = p.pending[n:]
			out = append(out, Emission{
				Handle:   p.Handle,
				BatchID:  p.NextBatchID,
				Messages: batch,
			})
			p.NextBatchID++
			p.OpenCredit -= n
		}
	}
	return out
}

// ConfirmPath installs a downstream path. When old is non-empty the
// existing path is rebound to the new handle instead.
func (l *Lane) ConfirmPath(old, handle string, initialCredit int64) bool {
	if old != "" {
		p := l.Find(old)
		if p == nil {
			return false
		}
		p.Handle = handle
		p.OpenCredit += initialCredit
		return true
	}
	if l.Find(handle) != nil {
		return false
	}
	l.paths = append(l.paths, &DownstreamPath{
		Handle:     handle,
		OpenCredit: initialCredit,
	})
	return true
}

// Find returns the path bound to the handle, or nil.
func (l *Lane) Find(handle string) *DownstreamPath {
	for _, p := range l.paths {
		if p.Handle == handle {
			return p
		}
	}
	return nil
}

// Ack acknowledges a batch on the path bound to the handle and opens
// the granted credit.
func (l *Lane) Ack(handle string, batchID, demand int64) error {
	p := l.Find(handle)
	if p == nil {
		return errors.Wrapf(types.ErrInvalidDownstream, "handle %s", handle)
	}
	p.Ack(batchID, demand)
	return nil
}

// RemovePath drops the path bound to the handle, discarding whatever
// is still buffered on it.
func (l *Lane) RemovePath(handle string) bool {
	for i, p := range l.paths {
		if p.Handle == handle {
			l.paths = append(l.paths[:i], l.paths[i+1:]...)
			return true
		}
	}
	return false
}

// Abort cancels every path, discarding all buffered messages.
func (l *Lane) Abort() {
	l.paths = nil
}

// MinCredit returns the minimum open credit across all paths, or the
// sentinel when the lane has no paths.
func (l *Lane) MinCredit() int64 {
	result := creditSentinel
	for _, p := range l.paths {
		if p.OpenCredit < result {
			result = p.OpenCredit
		}
	}
	return result
}

// BufSize returns the largest pending buffer across the lane's paths.
func (l *Lane) BufSize() int64 {
	var result int64
	for _, p := range l.paths {
		if n := int64(len(p.pending)); n > result {
			result = n
		}
	}
	return result
}

// NumPaths returns how many paths the lane currently holds.
func (l *Lane) NumPaths() int {
	return len(l.paths)
}

// Clean reports whether every path is clean.
func (l *Lane) Clean() bool {
	for _, p := range l.paths {
		if !p.Clean() {
			return false
		}
	}
	return true
}

// Closed reports whether the lane holds no undelivered data.
func (l *Lane) Closed() bool {
	return l.Clean()
}

// Paths exposes the lane's paths for inspection.
func (l *Lane) Paths() []*DownstreamPath {
	return l.paths
}

// Upstream aggregates every producer path feeding the governor, both
// local publishers and remote peers.
type Upstream struct {
	paths map[string]*UpstreamPath
	bySID map[types.StreamID]*UpstreamPath
}

// NewUpstream creates an empty upstream aggregator.
func NewUpstream() *Upstream {
	return &Upstream{
		paths: make(map[string]*UpstreamPath),
		bySID: make(map[types.StreamID]*UpstreamPath),
	}
}

// AddPath installs a producer path and grants it the initial credit
// through the grant callback.
func (u *Upstream) AddPath(handle string, sid types.StreamID, initialCredit int64, grant func(add int64)) *UpstreamPath {
	p := &UpstreamPath{
		Handle:      handle,
		SID:         sid,
		LastBatchID: -1,
		grant:       grant,
	}
	u.paths[handle] = p
	u.bySID[sid] = p
	if initialCredit > 0 {
		p.AssignedCredit = initialCredit
		if grant != nil {
			grant(initialCredit)
		}
	}
	return p
}

// Find returns the producer path bound to the handle, or nil.
func (u *Upstream) Find(handle string) *UpstreamPath {
	return u.paths[handle]
}

// FindBySID returns the producer path using the stream id, or nil.
func (u *Upstream) FindBySID(sid types.StreamID) *UpstreamPath {
	return u.bySID[sid]
}

// RemovePath drops the producer path bound to the handle.
func (u *Upstream) RemovePath(handle string) bool {
	p, ok := u.paths[handle]
	if !ok {
		return false
	}
	delete(u.paths, handle)
	delete(u.bySID, p.SID)
	return true
}

// AssignCredit tops every producer path up to the given amount of
// open credit, shipping the difference through the grant callback.
func (u *Upstream) AssignCredit(available int64) {
	if available <= 0 {
		return
	}
	for _, p := range u.paths {
		if add := available - p.AssignedCredit; add > 0 {
			p.AssignedCredit += add
			if p.grant != nil {
				p.grant(add)
			}
		}
	}
}

// NumPaths returns how many producer paths exist.
func (u *Upstream) NumPaths() int {
	return len(u.paths)
}

// Abort drops every producer path.
func (u *Upstream) Abort() {
	u.paths = make(map[string]*UpstreamPath)
	u.bySID = make(map[types.StreamID]*UpstreamPath)
}
