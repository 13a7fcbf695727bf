package core

import (
	"github.com/jabolina/go-broker/pkg/broker/types"
)

// DownstreamPath tracks credit and batch accounting towards a single
// downstream consumer. Batch ids are strictly monotonic per path and
// the path is clean iff every sent batch has been acked and nothing is
// left in its buffer.
type DownstreamPath struct {
	// Handle of the consumer behind this path.
	Handle string

	// OpenCredit is how many more messages the consumer accepts.
	OpenCredit int64

	// NextBatchID to assign on the next emitted batch.
	NextBatchID int64

	// NextAckID is the lowest batch id not yet acknowledged.
	NextAckID int64

	// Messages accepted by the path but not yet emitted.
	pending []types.Message
}

// Clean reports whether every emitted batch has been acked and no
// message is waiting in the buffer.
func (p *DownstreamPath) Clean() bool {
	return p.NextAckID == p.NextBatchID && len(p.pending) == 0
}

// Ack records the acknowledgment of the given batch id and opens the
// granted credit. Pure credit grants carry a negative batch id.
func (p *DownstreamPath) Ack(batchID int64, demand int64) {
	if next := batchID + 1; next > p.NextAckID {
		p.NextAckID = next
	}
	p.OpenCredit += demand
}

// UpstreamPath tracks the credit granted to a single producer, either
// a local publisher or a remote peer.
type UpstreamPath struct {
	// Handle of the producer feeding this path.
	Handle string

	// SID is the incoming stream id used by the producer.
	SID types.StreamID

	// AssignedCredit granted upstream and not yet consumed.
	AssignedCredit int64

	// LastBatchID received on this path.
	LastBatchID int64

	// grant ships newly assigned credit to the producer.
	grant func(add int64)
}
