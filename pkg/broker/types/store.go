package types

// Store is a local data-store replica fed by the stores lane.
// Commands delivered by the governor are applied in order.
type Store interface {
	// Apply a single store command.
	Apply(cmd Command) error

	// Snapshot returns a copy of the current key space.
	Snapshot() map[string]Data
}
