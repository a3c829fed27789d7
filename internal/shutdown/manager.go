// Package shutdown stops the server's components in reverse registration
// order when a termination signal arrives.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"leaffliction/internal/logger"
)

// Component is anything that can be stopped within a deadline.
type Component interface {
	Shutdown(ctx context.Context) error
}

// ComponentFunc adapts a function to Component.
type ComponentFunc func(ctx context.Context) error

func (f ComponentFunc) Shutdown(ctx context.Context) error { return f(ctx) }

// Closer adapts an io.Closer style Close method.
func Closer(close func() error) Component {
	return ComponentFunc(func(context.Context) error { return close() })
}

type registered struct {
	name      string
	component Component
}

type Manager struct {
	components []registered
	logger     logger.Logger
	timeout    time.Duration
	mu         sync.Mutex
	done       chan struct{}
	finished   chan struct{}
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewManager returns a manager that gives every component timeout to stop.
func NewManager(log logger.Logger, timeout time.Duration) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Manager{
		logger:   log,
		timeout:  timeout,
		done:     make(chan struct{}),
		finished: make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (m *Manager) Register(name string, component Component) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.components = append(m.components, registered{name: name, component: component})
}

// Listen shuts down on SIGINT or SIGTERM.
func (m *Manager) Listen() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			m.logger.Info("ShutdownManager", "shutdown signal received", map[string]interface{}{
				"signal": sig.String(),
			})
			m.Shutdown()
		case <-m.done:
		}
		signal.Stop(sigChan)
	}()
}

// Shutdown stops every component once. Later calls return immediately.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	select {
	case <-m.done:
		return
	default:
		close(m.done)
	}

	m.logger.Info("ShutdownManager", "shutdown sequence initiated", map[string]interface{}{
		"components": len(m.components),
	})

	m.cancel()

	for i := len(m.components) - 1; i >= 0; i-- {
		c := m.components[i]
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)

		errCh := make(chan error, 1)
		go func() {
			errCh <- c.component.Shutdown(ctx)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				m.logger.Error("ShutdownManager", err, map[string]interface{}{"component": c.name})
			}
		case <-ctx.Done():
			m.logger.Warning("ShutdownManager", "component shutdown timeout", map[string]interface{}{
				"component": c.name,
			})
		}
		cancel()
	}

	m.logger.Info("ShutdownManager", "shutdown sequence completed", nil)
	close(m.finished)
}

// Context is cancelled when shutdown starts.
func (m *Manager) Context() context.Context {
	return m.ctx
}

// Done is closed when shutdown starts.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Finished is closed once every component has been stopped.
func (m *Manager) Finished() <-chan struct{} {
	return m.finished
}
