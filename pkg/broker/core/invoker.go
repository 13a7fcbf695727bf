package core

import "sync"

// Invoker is used to spawn and control all go routines.
type Invoker interface {
	// Spawn runs the given function on a new go routine.
	Spawn(f func())

	// Stop blocks until every spawned routine finished.
	Stop()
}

type defaultInvoker struct {
	group *sync.WaitGroup
}

func (i *defaultInvoker) Spawn(f func()) {
	i.group.Add(1)
	go func() {
		defer i.group.Done()
		f()
	}()
}

func (i *defaultInvoker) Stop() {
	i.group.Wait()
}

var (
	invoker     Invoker
	invokerOnce sync.Once
)

// InvokerInstance returns the process-wide invoker.
func InvokerInstance() Invoker {
	invokerOnce.Do(func() {
		invoker = &defaultInvoker{group: &sync.WaitGroup{}}
	})
	return invoker
}
