package sandbox

import (
	"errors"
	"sync"
	"time"

	starlarktime "go.starlark.net/lib/time"
	"go.starlark.net/starlark"
)

// Sandbox executes translated module bodies inside isolated scopes built
// from a fixed capability set. One Sandbox is shared across the modules
// of a compile pass; the only state that crosses module executions is the
// explicit exports object handed back to the resolver.
type Sandbox struct {
	caps *Capabilities
	pool *threadPool
}

// New creates a sandbox with the given capability set.
func New(caps *Capabilities) *Sandbox {
	return &Sandbox{
		caps: caps,
		pool: newThreadPool(8),
	}
}

// Capabilities returns the capability set modules execute against.
func (s *Sandbox) Capabilities() *Capabilities {
	return s.caps
}

// Execute runs one translated module body. The exports dict is created by
// the caller before execution so its identity is stable: a circular import
// receives this same live object while the body is still running. Globals
// are returned unfrozen; freezing would poison partially-built exports
// objects reachable through a cycle.
func (s *Sandbox) Execute(name, src string, require *starlark.Builtin, exports *starlark.Dict) (starlark.StringDict, error) {
	predeclared := s.caps.Predeclared(require, exports)

	_, prog, err := starlark.SourceProgram(name, src, predeclared.Has) //nolint:staticcheck // SA1019: will migrate to SourceProgramOptions later
	if err != nil {
		return nil, err
	}

	thread := s.pool.get("module:" + name)
	defer s.pool.put(thread)

	return prog.Init(thread, predeclared)
}

// Call invokes a component callable produced by a compile pass. Runtime
// faults surface as the returned error and never cross this boundary as
// panics.
func (s *Sandbox) Call(fn starlark.Callable, kwargs []starlark.Tuple) (starlark.Value, error) {
	thread := s.pool.get("invoke:" + fn.Name())
	defer s.pool.put(thread)

	return starlark.Call(thread, fn, nil, kwargs)
}

// threadPool recycles Starlark threads across module executions.
type threadPool struct {
	mu      sync.Mutex
	threads []*starlark.Thread
	maxSize int
}

func newThreadPool(maxSize int) *threadPool {
	if maxSize <= 0 {
		maxSize = 8
	}
	return &threadPool{
		threads: make([]*starlark.Thread, 0, maxSize),
		maxSize: maxSize,
	}
}

func (p *threadPool) get(name string) *starlark.Thread {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.threads) > 0 {
		thread := p.threads[len(p.threads)-1]
		p.threads = p.threads[:len(p.threads)-1]
		thread.Name = name
		return thread
	}

	thread := &starlark.Thread{
		Name: name,
		Print: func(_ *starlark.Thread, _ string) {
			// Component print output is swallowed; components render, they
			// do not log to the host.
		},
	}
	// time.now() would make frame output depend on the wall clock; the
	// injected frame parameters are the only time a component may read.
	starlarktime.SetNow(thread, func() (time.Time, error) {
		return time.Time{}, errors.New("wall clock is not available, use the injected frame time")
	})
	return thread
}

func (p *threadPool) put(thread *starlark.Thread) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.threads) < p.maxSize {
		thread.Name = ""
		p.threads = append(p.threads, thread)
	}
}
