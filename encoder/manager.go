// Package encoder implements the hardware video encoder adapter: a
// manager that probes the machine for usable codec backends, a factory
// that hands out encoder sessions, and the session state machine that
// feeds frames to a backend and delivers encoded output asynchronously.
package encoder

import (
	"fmt"
	"sync"

	"Vidra/codec"

	"github.com/kataras/golog"
)

var logger = golog.Child("[encoder]")

// Manager keeps the registry of codec backends detected on this machine.
// An empty registry is a valid state: it means no encoder support, and
// the factory reports it as an empty codec list rather than an error.
type Manager struct {
	mu        sync.Mutex
	factories map[string]backendFactory
	order     []string
	caps      []Capability
}

var (
	managerOnce sync.Once
	managerInst *Manager
)

// Instance returns the singleton manager, probing backends on first use.
func Instance() *Manager {
	managerOnce.Do(func() {
		managerInst = &Manager{factories: make(map[string]backendFactory)}
		registerX264Backend(managerInst)
		detectHardwareBackends(managerInst)
		if len(managerInst.order) == 0 {
			logger.Warnf("no encoder backends available on this machine")
		}
	})
	return managerInst
}

func (m *Manager) registerBackend(factory backendFactory) {
	if m == nil || factory == nil {
		return
	}
	cap := factory.Capability()
	if cap.Codec == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.factories[cap.Codec]; exists {
		logger.Debugf("backend for %s already registered, keeping first", cap.Codec)
		return
	}
	m.factories[cap.Codec] = factory
	m.order = append(m.order, cap.Codec)
	m.caps = append(m.caps, cap)
	logger.Infof("registered %s backend %q (hardware=%v)", cap.Codec, cap.Name, cap.Hardware)
}

// addCapability records a capability without a usable backend, for
// probed hardware whose bindings are not linked into this build.
func (m *Manager) addCapability(cap Capability) {
	if m == nil || cap.Name == "" {
		return
	}
	m.mu.Lock()
	m.caps = append(m.caps, cap)
	m.mu.Unlock()
}

// Capabilities returns every known capability, including disabled ones.
func (m *Manager) Capabilities() []Capability {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Capability, len(m.caps))
	copy(out, m.caps)
	return out
}

// supported lists the codec configurations with a live backend, in
// registration order.
func (m *Manager) supported() []codec.Info {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	infos := make([]codec.Info, 0, len(m.order))
	for _, name := range m.order {
		factory := m.factories[name]
		if factory == nil {
			continue
		}
		cap := factory.Capability()
		infos = append(infos, codec.Info{
			Name:     cap.Codec,
			Hardware: cap.Hardware,
			Params:   cap.Params,
		})
	}
	return infos
}

func (m *Manager) lookup(codecName string) (backendFactory, error) {
	if m == nil {
		return nil, fmt.Errorf("encoder: manager unavailable")
	}
	m.mu.Lock()
	factory := m.factories[codecName]
	m.mu.Unlock()
	if factory == nil {
		return nil, fmt.Errorf("encoder: no backend for codec %q", codecName)
	}
	return factory, nil
}
