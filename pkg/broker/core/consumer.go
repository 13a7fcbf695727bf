package core

import "github.com/jabolina/go-broker/pkg/broker/types"

// Consumer is a local downstream sink fed by the workers or stores
// lane. Deliver hands over one batch and returns how much new credit
// the consumer grants; a consumer that returns zero stalls its path,
// since the governor has no other way to open credit on it.
type Consumer interface {
	// ID of the consumer, used as the path handle.
	ID() string

	// Deliver the batch and return the granted demand.
	Deliver(batch []types.Message) int64
}
