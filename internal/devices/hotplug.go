//go:build linux

package devices

import (
	"context"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"github.com/smazurov/scopeview/internal/logging"
)

// HotplugMonitor listens for video4linux udev events and triggers a registry
// refresh on device add/remove. Connection failures are non-fatal: hotplug
// detection is advisory and the registry can still be refreshed manually.
type HotplugMonitor struct {
	registry *Registry
	logger   logging.Logger

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

// NewHotplugMonitor creates a monitor bound to the registry.
func NewHotplugMonitor(registry *Registry) *HotplugMonitor {
	return &HotplugMonitor{
		registry: registry,
		logger:   logging.GetLogger("hotplug"),
	}
}

// Start begins listening for udev netlink events.
func (m *HotplugMonitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		m.logger.Warn("Failed to connect to netlink socket, hotplug detection unavailable", "error", err)
		return nil // Non-fatal: enumeration still works on demand
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	quit := m.quit
	go m.monitorLoop(ctx, quit)

	m.logger.Info("Hotplug monitor started")
	return nil
}

// Stop shuts down the monitor.
func (m *HotplugMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	if m.quit != nil {
		close(m.quit)
		m.quit = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.running = false

	m.logger.Info("Hotplug monitor stopped")
}

// Running reports whether the monitor is active.
func (m *HotplugMonitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// monitorLoop reads netlink events and refreshes the registry.
func (m *HotplugMonitor) monitorLoop(ctx context.Context, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)

	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return
	}

	monitorQuit := conn.Monitor(queue, errs, m.buildMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			m.logger.Debug("Video device hotplug event",
				"action", string(uevent.Action), "kobj", uevent.KObj)
			m.registry.Refresh(ctx, "hotplug")
		case err := <-errs:
			m.logger.Warn("Hotplug monitor error", "error", err)
		}
	}
}

// buildMatcher matches video4linux add/remove events.
func (m *HotplugMonitor) buildMatcher() netlink.Matcher {
	action := "add|remove"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "video4linux",
		},
	})
	return rules
}
