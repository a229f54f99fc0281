package realtime

import (
	"sync"
	"time"
)

// Memory is an in-process realtime store with full disconnect-safety
// semantics. It backs the daemon and the test suite; the managed store
// is an external collaborator behind the same interface.
type Memory struct {
	mu       sync.Mutex
	values   map[string]*Value
	watchers map[string]map[int]chan *Value
	nextID   int
}

// NewMemory creates an empty in-memory realtime store.
func NewMemory() *Memory {
	return &Memory{
		values:   make(map[string]*Value),
		watchers: make(map[string]map[int]chan *Value),
	}
}

// Connect opens a new client connection.
func (m *Memory) Connect() Conn {
	return &memoryConn{store: m, connected: true}
}

// Watch observes a path, delivering the current value first.
func (m *Memory) Watch(path string) *Subscription {
	ch := make(chan *Value, 8)

	m.mu.Lock()
	if m.watchers[path] == nil {
		m.watchers[path] = make(map[int]chan *Value)
	}
	id := m.nextID
	m.nextID++
	m.watchers[path][id] = ch
	ch <- m.values[path]
	m.mu.Unlock()

	return NewSubscription(ch, func() {
		m.mu.Lock()
		delete(m.watchers[path], id)
		m.mu.Unlock()
	})
}

// Get returns the current value at path, nil if absent.
func (m *Memory) Get(path string) *Value {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[path]
}

func (m *Memory) set(path string, v Value) {
	v.LastChanged = time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()
	stored := v
	m.values[path] = &stored
	for _, ch := range m.watchers[path] {
		select {
		case ch <- &stored:
		default:
			// Slow watcher: drop the oldest buffered value so the
			// latest one always lands.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- &stored:
			default:
			}
		}
	}
}

type disconnectWrite struct {
	path  string
	value Value
}

type memoryConn struct {
	store *Memory

	mu        sync.Mutex
	connected bool
	pending   []disconnectWrite
	watchers  map[int]chan bool
	nextID    int
}

func (c *memoryConn) Set(path string, v Value) error {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return ErrDisconnected
	}
	c.mu.Unlock()

	c.store.set(path, v)
	return nil
}

func (c *memoryConn) OnDisconnect(path string, v Value) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return ErrDisconnected
	}
	c.pending = append(c.pending, disconnectWrite{path: path, value: v})
	return nil
}

func (c *memoryConn) Connectivity() *BoolSubscription {
	ch := make(chan bool, 4)

	c.mu.Lock()
	if c.watchers == nil {
		c.watchers = make(map[int]chan bool)
	}
	id := c.nextID
	c.nextID++
	c.watchers[id] = ch
	ch <- c.connected
	c.mu.Unlock()

	return NewBoolSubscription(ch, func() {
		c.mu.Lock()
		delete(c.watchers, id)
		c.mu.Unlock()
	})
}

func (c *memoryConn) Close() error {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return nil
	}
	c.connected = false
	pending := c.pending
	c.pending = nil
	watchers := make([]chan bool, 0, len(c.watchers))
	for _, ch := range c.watchers {
		watchers = append(watchers, ch)
	}
	c.mu.Unlock()

	// The store applies registered writes on the client's behalf.
	for _, w := range pending {
		c.store.set(w.path, w.value)
	}
	for _, ch := range watchers {
		select {
		case ch <- false:
		default:
		}
	}
	return nil
}
