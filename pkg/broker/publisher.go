package broker

import (
	"sync"

	"github.com/jabolina/go-broker/pkg/broker/types"
)

// Publisher is a credited local message source. Publishing consumes
// credit granted by the governor; when every downstream stalled the
// publisher blocks until new credit arrives, propagating backpressure
// into the producing code.
type Publisher struct {
	e   *Endpoint
	sid types.StreamID

	mutex  sync.Mutex
	cond   *sync.Cond
	credit int64
	closed bool
}

// NewPublisher registers a credited local source on the endpoint.
func (e *Endpoint) NewPublisher() (*Publisher, error) {
	p := &Publisher{e: e}
	p.cond = sync.NewCond(&p.mutex)
	err := e.ask(func() error {
		if e.gov.ShuttingDown() {
			return types.ErrShutdown
		}
		p.sid = e.gov.AddLocalSource(p.grant)
		e.publishers[p.sid] = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// grant opens new credit. Called from the core task.
func (p *Publisher) grant(add int64) {
	p.mutex.Lock()
	p.credit += add
	p.mutex.Unlock()
	p.cond.Broadcast()
}

// markClosed wakes up blocked publishers during shutdown.
func (p *Publisher) markClosed() {
	p.mutex.Lock()
	p.closed = true
	p.mutex.Unlock()
	p.cond.Broadcast()
}

// acquire blocks until one credit is available.
func (p *Publisher) acquire() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	for p.credit == 0 && !p.closed {
		p.cond.Wait()
	}
	if p.closed {
		return types.ErrShutdown
	}
	p.credit--
	return nil
}

// Publish routes a data message through the publisher's upstream
// path, blocking while no credit is open.
func (p *Publisher) Publish(t types.Topic, d types.Data) error {
	return p.publish(types.NewDataMessage(t, d))
}

// PublishCommand routes a store command through the publisher's
// upstream path.
func (p *Publisher) PublishCommand(t types.Topic, cmd types.Command) error {
	return p.publish(types.NewCommandMessage(t, cmd))
}

func (p *Publisher) publish(m types.Message) error {
	if err := p.acquire(); err != nil {
		return err
	}
	return p.e.post(func() {
		if err := p.e.gov.PublishFrom(p.sid, m); err != nil {
			p.e.conf.Logger.Warnf("dropping publish on %s. %v", m.Topic, err)
		}
	})
}

// Close removes the source. Buffered messages still drain; an
// endpoint only terminates after every local source closed.
func (p *Publisher) Close() error {
	p.markClosed()
	return p.e.post(func() {
		delete(p.e.publishers, p.sid)
		p.e.gov.RemoveLocalSource(p.sid)
	})
}
