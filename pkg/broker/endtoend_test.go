package broker_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/jabolina/go-broker/pkg/broker/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestBroker_ShutdownWithoutPeersTerminates(t *testing.T) {
	defer goleak.VerifyNone(t)

	env := newEnvironment(t)
	e1 := env.create("lonely", "t")
	sink := &collectWorker{}
	require.NoError(t, e1.AttachWorker("sink", sink.handler))
	require.NoError(t, e1.Publish("t", types.Count(1)))

	e1.Shutdown()

	select {
	case <-e1.Done():
	default:
		t.Fatal("endpoint did not terminate")
	}

	// Operations after shutdown fail fast.
	assert.ErrorIs(t, e1.Subscribe("x"), types.ErrShutdown)
	assert.ErrorIs(t, e1.Publish("t", types.Count(2)), types.ErrShutdown)
}

// An endpoint only terminates after the peer acknowledged every
// in-flight message; nothing is dropped on a clean shutdown.
func TestBroker_CleanShutdownDrainsInFlight(t *testing.T) {
	defer goleak.VerifyNone(t)

	const total = 100

	env := newEnvironment(t)
	e1 := env.create("producer")
	e2 := env.create("consumer", "t")

	sink := &collectWorker{}
	require.NoError(t, e2.AttachWorker("sink", sink.handler))
	require.NoError(t, e1.Peer(e2.ID()))

	pub, err := e1.NewPublisher()
	require.NoError(t, err)
	for i := 0; i < total; i++ {
		require.NoError(t, pub.Publish("t", types.Count(uint64(i))))
	}
	require.NoError(t, pub.Close())

	e1.Shutdown()

	// Termination implies the consumer acked the batch carrying the
	// last message, so every message already reached its lane.
	received := sink.onTopic("t")
	require.Equal(t, total, len(received))
	for i, m := range received {
		assert.True(t, types.Equal(m.Data, types.Count(uint64(i))),
			"message %d out of order: %s", i, types.ToString(m.Data))
	}

	e2.Shutdown()
}

// Messages published by a single producer on topics matching one
// peer's filter arrive at that peer in publish order.
func TestBroker_SinglePublisherOrderingAcrossPeering(t *testing.T) {
	defer goleak.VerifyNone(t)

	const total = 256

	env := newEnvironment(t)
	e1 := env.create("producer")
	e2 := env.create("consumer", "seq")

	sink := &collectWorker{}
	require.NoError(t, e2.AttachWorker("sink", sink.handler))
	require.NoError(t, e1.Peer(e2.ID()))

	pub, err := e1.NewPublisher()
	require.NoError(t, err)
	for i := 0; i < total; i++ {
		require.NoError(t, pub.Publish("seq", types.Integer(int64(i))))
	}

	sink.waitFor(t, "seq", total)
	for i, m := range sink.onTopic("seq") {
		require.True(t, types.Equal(m.Data, types.Integer(int64(i))),
			"message %d out of order: %s", i, types.ToString(m.Data))
	}

	require.NoError(t, pub.Close())
	env.off()
}

// A peer that grants three credit and then withholds every further
// ack: the publisher fills the downstream credit plus the governor
// slack and stalls.
func TestBroker_PublisherStallsWithoutDownstreamCredit(t *testing.T) {
	defer goleak.VerifyNone(t)

	const initialGrant = 3
	const slack = 5

	env := newEnvironment(t)
	e1 := env.create("producer")

	// A scripted peer living directly on the mesh: it completes the
	// handshake, grants a fixed credit and then goes silent.
	silent := types.EndpointID("silent-peer")
	env.port++
	ft := env.mesh.Join(silent, types.NetworkAddress{Host: "silent", Port: env.port})
	peerDone := make(chan struct{})
	go func() {
		defer close(peerDone)
		for in := range ft.Listen() {
			switch in.Frame.Type {
			case types.Hello:
				ft.Send(in.From, types.Frame{
					Type:    types.HelloAck,
					Node:    silent,
					Version: types.LatestProtocolVersion,
					Filter:  types.Filter{"t"},
					SID:     4242,
				})
			case types.Open:
				ft.Send(in.From, types.Frame{Type: types.AckOpen, Node: silent, SID: in.Frame.SID})
				ft.Send(in.From, types.Frame{
					Type:    types.BatchAck,
					Node:    silent,
					SID:     in.Frame.SID,
					BatchID: -1,
					Credit:  initialGrant,
				})
			default:
				// Swallow batches and never ack again.
			}
		}
	}()

	require.NoError(t, e1.Peer(silent))

	pub, err := e1.NewPublisher()
	require.NoError(t, err)

	var progress int64
	published := make(chan int64, 1)
	go func() {
		for {
			if pubErr := pub.Publish("t", types.Count(uint64(atomic.LoadInt64(&progress)))); pubErr != nil {
				break
			}
			atomic.AddInt64(&progress, 1)
		}
		published <- atomic.LoadInt64(&progress)
	}()

	// The publisher accepts exactly the granted credit plus the
	// governor slack before blocking.
	waitUntil(t, "publisher consumed all open credit", func() bool {
		return atomic.LoadInt64(&progress) == initialGrant+slack
	})
	select {
	case n := <-published:
		t.Fatalf("publisher never stalled, published %d messages", n)
	case <-time.After(200 * time.Millisecond):
		// Blocked as expected.
	}

	// Severing the peer discards the stalled buffer and unblocks the
	// endpoint for shutdown.
	require.NoError(t, e1.Unpeer(silent))
	e1.Shutdown()
	<-published
	ft.Close()
	<-peerDone
}
