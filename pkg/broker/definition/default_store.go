package definition

import (
	"github.com/jabolina/go-broker/pkg/broker/types"
	"github.com/pkg/errors"
)

var ErrCommandUnknown = errors.New("unknown command applied into store")

// An in memory store to be used when no durable backend is needed.
// Commands arrive serialized through the stores lane, so no locking
// is required beyond the snapshot copy.
type InMemoryStore struct {
	values map[string]types.Data
}

// NewInMemoryStore creates an empty in memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{values: make(map[string]types.Data)}
}

// Apply implements the types.Store interface.
func (s *InMemoryStore) Apply(cmd types.Command) error {
	switch cmd.Op {
	case types.CommandPut:
		s.values[cmd.Key] = cmd.Value
	case types.CommandErase:
		delete(s.values, cmd.Key)
	case types.CommandClear:
		s.values = make(map[string]types.Data)
	default:
		return errors.Wrapf(ErrCommandUnknown, "op %d", cmd.Op)
	}
	return nil
}

// Snapshot implements the types.Store interface.
func (s *InMemoryStore) Snapshot() map[string]types.Data {
	out := make(map[string]types.Data, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}
