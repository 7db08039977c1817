package hal

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/openvhal/vhal-go/pkg/log"
	"github.com/openvhal/vhal-go/pkg/vehicle"
)

// RegisterClient assigns a fresh ClientID to cb. The ID stays valid until
// UnregisterClient, and is never reused.
func (m *Manager) RegisterClient(cb vehicle.Callback) (ClientID, error) {
	if m.closed.Load() {
		return uuid.Nil, errClosed
	}
	if cb == nil {
		return uuid.Nil, vehicle.Errorf(vehicle.StatusInvalidArg, "nil callback")
	}
	c := &connectedClient{
		id:       uuid.New(),
		callback: cb,
		getKey:   uuid.New(),
		setKey:   uuid.New(),
	}

	m.mu.Lock()
	m.clients[c.id] = c
	n := len(m.clients)
	m.mu.Unlock()

	m.logger.Debug("client registered", slog.String("client_id", c.id.String()), slog.Int("clients", n))
	m.plog.Log(clientStateEvent(c.id, "", "REGISTERED"))
	return c.id, nil
}

// UnregisterClient drops every subscription of the client and answers its
// pending requests with TRY_AGAIN.
func (m *Manager) UnregisterClient(id ClientID) error {
	m.subMu.Lock()
	m.mu.Lock()
	c, ok := m.clients[id]
	delete(m.clients, id)
	m.mu.Unlock()
	if !ok {
		m.subMu.Unlock()
		return vehicle.Errorf(vehicle.StatusNotFound, "client %s not registered", id)
	}

	for _, propID := range m.subs.UnsubscribeAll(id) {
		m.releaseHardware(propID)
	}
	m.subMu.Unlock()

	// Flushing fires the timeout callbacks, which skip unregistered clients.
	m.requests.FlushClient(c.getKey)
	m.requests.FlushClient(c.setKey)

	m.logger.Debug("client unregistered", slog.String("client_id", id.String()))
	m.plog.Log(clientStateEvent(id, "REGISTERED", "UNREGISTERED"))
	return nil
}

// ClientCount returns the number of registered clients.
func (m *Manager) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

func (m *Manager) client(id ClientID) (*connectedClient, error) {
	m.mu.RLock()
	c, ok := m.clients[id]
	m.mu.RUnlock()
	if !ok {
		return nil, vehicle.Errorf(vehicle.StatusInvalidArg, "client %s not registered", id)
	}
	return c, nil
}

func (m *Manager) isRegistered(id ClientID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.clients[id]
	return ok
}

func clientStateEvent(id ClientID, oldState, newState string) log.Event {
	return log.Event{
		Timestamp:   time.Now(),
		ClientID:    id.String(),
		Direction:   log.DirectionIn,
		Layer:       log.LayerClient,
		Category:    log.CategoryState,
		StateChange: &log.StateChangeEvent{Entity: log.StateEntityClient, OldState: oldState, NewState: newState},
	}
}
