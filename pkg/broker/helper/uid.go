package helper

import (
	"hash/fnv"

	"github.com/google/uuid"
	"github.com/jabolina/go-broker/pkg/broker/types"
)

// GenerateUID creates a unique identifier.
func GenerateUID() string {
	return uuid.New().String()
}

// NewEndpointID creates a fresh endpoint identity.
func NewEndpointID() types.EndpointID {
	return types.EndpointID(GenerateUID())
}

// IdentityBits hashes an endpoint identity into the high 16 bits of a
// stream id, so ids allocated by different endpoints never collide.
func IdentityBits(id types.EndpointID) uint64 {
	h := fnv.New64a()
	h.Write([]byte(id))
	return h.Sum64() << 48
}
