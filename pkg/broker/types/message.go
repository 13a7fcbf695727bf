package types

import "fmt"

// EndpointID identifies a single endpoint in the mesh.
type EndpointID string

// StreamID identifies one direction of a streaming channel. The high
// bits carry the identity of the allocating endpoint, the low bits a
// monotonic counter, so ids are unique across the mesh.
type StreamID uint64

// NetworkAddress locates an endpoint on the network.
type NetworkAddress struct {
	Host string
	Port uint16
}

func (a NetworkAddress) String() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// CommandOp tags the operation carried by a store command.
type CommandOp uint8

const (
	CommandPut CommandOp = iota
	CommandErase
	CommandClear
)

// Command is an internal data-store command, distinct from user data.
// It flows only on the stores lane.
type Command struct {
	Op    CommandOp
	Key   string
	Value Data
}

// Message is a single routed message: a topic together with either a
// user data payload or an internal store command. Origin holds the
// peer the message was received from, or is empty for messages
// published locally.
type Message struct {
	Topic   Topic
	Data    Data
	Command *Command
	Origin  EndpointID
}

// NewDataMessage builds a user data message.
func NewDataMessage(t Topic, d Data) Message {
	return Message{Topic: t, Data: d}
}

// NewCommandMessage builds an internal store command message.
func NewCommandMessage(t Topic, c Command) Message {
	return Message{Topic: t, Command: &c}
}

// IsCommand reports whether the payload is a store command.
func (m Message) IsCommand() bool {
	return m.Command != nil
}

// --- wire protocol -----------------------------------------------------------

// FrameType tags a frame of the peer wire protocol.
type FrameType uint8

const (
	// Hello requests a peering: carries node id, version and filter.
	Hello FrameType = iota

	// HelloAck answers a Hello: carries node id, filter and the
	// responder's freshly opened downstream stream id.
	HelloAck

	// Open announces the requester's downstream stream id.
	Open

	// AckOpen confirms a downstream announced with Open.
	AckOpen

	// Batch carries a credit-sized group of messages.
	Batch

	// BatchAck acknowledges a batch and grants new credit.
	BatchAck

	// FilterUpdate replaces the sender's advertised filter.
	FilterUpdate

	// Close tears down the whole peering with the sending endpoint,
	// both directions.
	Close

	// Bye announces that the sending endpoint shuts down.
	Bye
)

func (t FrameType) String() string {
	switch t {
	case Hello:
		return "HELLO"
	case HelloAck:
		return "HELLO_ACK"
	case Open:
		return "OPEN"
	case AckOpen:
		return "ACK_OPEN"
	case Batch:
		return "BATCH"
	case BatchAck:
		return "BATCH_ACK"
	case FilterUpdate:
		return "FILTER_UPDATE"
	case Close:
		return "CLOSE"
	case Bye:
		return "BYE"
	default:
		return "UNKNOWN"
	}
}

// Frame is a single unit of the peer wire protocol. The transport
// delivers frames between two endpoints in order.
type Frame struct {
	Type     FrameType
	Node     EndpointID
	Version  uint
	Filter   Filter
	SID      StreamID
	BatchID  int64
	Credit   int64
	Messages []Message
	Reason   string
}
