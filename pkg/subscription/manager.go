package subscription

import (
	"errors"
	"slices"
	"sort"
	"sync"

	"github.com/openvhal/vhal-go/pkg/vehicle"
)

// Errors returned by Manager.
var (
	// ErrInvalidCallback indicates a new client without a callback.
	ErrInvalidCallback = errors.New("subscription: callback must not be nil")

	// ErrClientNotFound indicates the client has no subscriptions.
	ErrClientNotFound = errors.New("subscription: client not found")

	// ErrNotSubscribed indicates the client is not subscribed to the property.
	ErrNotSubscribed = errors.New("subscription: not subscribed to property")
)

// ClientValues is the part of an event batch destined for one client.
type ClientValues struct {
	Client *HalClient
	Values []*vehicle.PropertyValue
}

// Manager is the subscription registry. It is safe for concurrent use.
type Manager struct {
	mu sync.RWMutex

	clients map[ClientID]*HalClient

	// Clients per property, in order of first subscription.
	propToClients map[int32][]*HalClient

	// Merged HAL_EVENT subscriptions as seen by the hardware.
	halEventOptions map[int32]vehicle.SubscribeOptions
}

// NewManager creates an empty registry.
func NewManager() *Manager {
	return &Manager{
		clients:         make(map[ClientID]*HalClient),
		propToClients:   make(map[int32][]*HalClient),
		halEventOptions: make(map[int32]vehicle.SubscribeOptions),
	}
}

// AddOrUpdateSubscription records options for a client, creating the
// client on first use, and returns the hardware-facing subscriptions that
// changed as a result. Options must already be validated by the caller.
func (m *Manager) AddOrUpdateSubscription(id ClientID, cb vehicle.Callback, options []vehicle.SubscribeOptions) ([]vehicle.SubscribeOptions, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	client, ok := m.clients[id]
	if !ok {
		if cb == nil {
			return nil, ErrInvalidCallback
		}
		client = newHalClient(id, cb)
		m.clients[id] = client
	}

	var updated []vehicle.SubscribeOptions
	for _, opts := range options {
		m.addClientToPropLocked(opts.PropID, client)
		client.addOrUpdate(opts)

		if opts.Flags&vehicle.FlagHalEvent == 0 {
			continue
		}
		if merged, changed := m.updateHalEventLocked(opts); changed {
			updated = append(updated, merged)
		}
	}
	return updated, nil
}

func (m *Manager) addClientToPropLocked(propID int32, client *HalClient) {
	list := m.propToClients[propID]
	if slices.Contains(list, client) {
		return
	}
	m.propToClients[propID] = append(list, client)
}

func (m *Manager) updateHalEventLocked(opts vehicle.SubscribeOptions) (vehicle.SubscribeOptions, bool) {
	old, ok := m.halEventOptions[opts.PropID]
	if !ok {
		m.halEventOptions[opts.PropID] = opts
		return opts, true
	}
	merged, changed := MergeSubscribeOptions(old, opts)
	if changed {
		m.halEventOptions[opts.PropID] = merged
	}
	return merged, changed
}

// Unsubscribe removes the client's subscription to propID. It returns
// true when no remaining client needs hardware events for propID, in
// which case the hardware-facing entry has been dropped.
func (m *Manager) Unsubscribe(id ClientID, propID int32) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	client, ok := m.clients[id]
	if !ok {
		return false, ErrClientNotFound
	}
	if _, ok := client.subscriptions[propID]; !ok {
		return false, ErrNotSubscribed
	}
	return m.removeLocked(client, propID), nil
}

// UnsubscribeAll drops every subscription of a client and returns the
// properties the hardware no longer needs to serve, in ascending order.
func (m *Manager) UnsubscribeAll(id ClientID) []int32 {
	m.mu.Lock()
	defer m.mu.Unlock()

	client, ok := m.clients[id]
	if !ok {
		return nil
	}
	props := make([]int32, 0, len(client.subscriptions))
	for p := range client.subscriptions {
		props = append(props, p)
	}
	sort.Slice(props, func(i, j int) bool { return props[i] < props[j] })

	var released []int32
	for _, p := range props {
		if m.removeLocked(client, p) {
			released = append(released, p)
		}
	}
	return released
}

func (m *Manager) removeLocked(client *HalClient, propID int32) bool {
	delete(client.subscriptions, propID)
	if len(client.subscriptions) == 0 {
		delete(m.clients, client.id)
	}

	list := slices.DeleteFunc(m.propToClients[propID], func(c *HalClient) bool { return c == client })
	if len(list) == 0 {
		delete(m.propToClients, propID)
	} else {
		m.propToClients[propID] = list
	}

	if _, ok := m.halEventOptions[propID]; !ok {
		return false
	}
	for _, c := range list {
		if c.subscriptions[propID].Flags&vehicle.FlagHalEvent != 0 {
			return false
		}
	}
	delete(m.halEventOptions, propID)
	return true
}

// DistributeValuesToClients groups values by the clients subscribed to
// them with any of flags. Clients appear in the order they are first
// matched; each client's values keep their input order.
func (m *Manager) DistributeValuesToClients(values []*vehicle.PropertyValue, flags vehicle.SubscribeFlags) []ClientValues {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ClientValues
	index := make(map[*HalClient]int)
	for _, v := range values {
		for _, c := range m.propToClients[v.Prop] {
			if !c.isSubscribed(v.Prop, v.AreaID, flags) {
				continue
			}
			i, ok := index[c]
			if !ok {
				i = len(out)
				index[c] = i
				out = append(out, ClientValues{Client: c})
			}
			out[i].Values = append(out[i].Values, v)
		}
	}
	return out
}

// GetSubscribedClients returns the clients that should see an event for
// (propID, areaID) from the sources in flags.
func (m *Manager) GetSubscribedClients(propID, areaID int32, flags vehicle.SubscribeFlags) []*HalClient {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*HalClient
	for _, c := range m.propToClients[propID] {
		if c.isSubscribed(propID, areaID, flags) {
			out = append(out, c)
		}
	}
	return out
}

// HalEventSubscription returns the merged hardware-facing options for
// propID.
func (m *Manager) HalEventSubscription(propID int32) (vehicle.SubscribeOptions, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	opts, ok := m.halEventOptions[propID]
	return opts, ok
}

// HalEventSubscriptions returns every hardware-facing subscription sorted
// by property.
func (m *Manager) HalEventSubscriptions() []vehicle.SubscribeOptions {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]vehicle.SubscribeOptions, 0, len(m.halEventOptions))
	for _, o := range m.halEventOptions {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PropID < out[j].PropID })
	return out
}

// ClientSubscriptions returns the options held by one client.
func (m *Manager) ClientSubscriptions(id ClientID) []vehicle.SubscribeOptions {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.clients[id]
	if !ok {
		return nil
	}
	return c.snapshot()
}

// ClientCount returns the number of clients with at least one subscription.
func (m *Manager) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}
