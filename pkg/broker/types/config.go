package types

// LatestProtocolVersion is the most recent version of the peering
// protocol this library can speak.
const LatestProtocolVersion uint = 1

// Logger is the logging abstraction used across the whole library.
// Users can plug their own implementation through the configuration.
type Logger interface {
	Info(v ...interface{})
	Infof(format string, v ...interface{})

	Warn(v ...interface{})
	Warnf(format string, v ...interface{})

	Error(v ...interface{})
	Errorf(format string, v ...interface{})

	Debug(v ...interface{})
	Debugf(format string, v ...interface{})

	Fatal(v ...interface{})
	Fatalf(format string, v ...interface{})

	// Toggle debug level logging on or off, returning the new state.
	ToggleDebug(value bool) bool
}

// Configuration holds everything needed to bootstrap an endpoint.
type Configuration struct {
	// Name used on logs for this endpoint.
	Name string

	// ID is the unique endpoint identity. Generated when empty.
	ID EndpointID

	// Version of the peering protocol to speak.
	Version uint

	// Filter holds the initial topic subscriptions.
	Filter Filter

	// Logger utility, a default will be used when nil.
	Logger Logger
}

// PeerConfiguration holds the settings of a single peer link,
// derived from the endpoint configuration when the peering is
// established.
type PeerConfiguration struct {
	// Name of the link, used on logs.
	Name string

	// Local endpoint identity.
	Local EndpointID

	// Remote endpoint identity.
	Remote EndpointID

	// Version of the peering protocol spoken on this link.
	Version uint
}

// NewPeerConfiguration derives the configuration for the link
// towards the given remote endpoint.
func (c *Configuration) NewPeerConfiguration(remote EndpointID) *PeerConfiguration {
	return &PeerConfiguration{
		Name:    c.Name + "->" + string(remote),
		Local:   c.ID,
		Remote:  remote,
		Version: c.Version,
	}
}
