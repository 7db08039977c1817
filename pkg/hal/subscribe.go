package hal

import (
	"errors"
	"log/slog"
	"time"

	"github.com/openvhal/vhal-go/pkg/log"
	"github.com/openvhal/vhal-go/pkg/subscription"
	"github.com/openvhal/vhal-go/pkg/vehicle"
)

const knownFlags = vehicle.FlagHalEvent | vehicle.FlagSetCall

// Subscribe validates options against the property configs and records
// them for the client. Only hardware subscriptions whose effective
// configuration changed are pushed down to the hardware. Validation is
// all-or-nothing: an invalid option leaves every subscription unchanged.
// Hardware errors are reported after the subscriptions were recorded.
func (m *Manager) Subscribe(id ClientID, options []vehicle.SubscribeOptions) error {
	if m.closed.Load() {
		return errClosed
	}
	c, err := m.client(id)
	if err != nil {
		return err
	}

	verified := make([]vehicle.SubscribeOptions, 0, len(options))
	for _, opts := range options {
		v, err := m.checkSubscribeOptions(opts)
		if err != nil {
			return err
		}
		verified = append(verified, v)
	}

	m.subMu.Lock()
	defer m.subMu.Unlock()
	if !m.isRegistered(id) {
		return vehicle.Errorf(vehicle.StatusInvalidArg, "client %s not registered", id)
	}

	updated, err := m.subs.AddOrUpdateSubscription(id, c.callback, verified)
	if err != nil {
		return vehicle.Errorf(vehicle.StatusInvalidArg, "%v", err)
	}
	m.logSubscription(id, log.SubscriptionActionSubscribe, verified, 0)

	var errs []error
	for _, opts := range updated {
		m.logger.Debug("updating hardware subscription", slog.String("options", opts.String()))
		if err := m.hw.Subscribe(opts); err != nil {
			errs = append(errs, err)
			continue
		}
		m.logSubscription(id, log.SubscriptionActionHardwareUpdate, []vehicle.SubscribeOptions{opts}, 0)
	}
	if len(errs) > 0 {
		return vehicle.Errorf(vehicle.StatusInternalError, "hardware subscribe: %v", errors.Join(errs...))
	}
	return nil
}

// checkSubscribeOptions rejects options the property cannot honour and
// normalizes the rest: global properties get the all-areas mask and the
// sample rate is clamped for continuous properties and zeroed otherwise.
func (m *Manager) checkSubscribeOptions(opts vehicle.SubscribeOptions) (vehicle.SubscribeOptions, error) {
	cfg, ok := m.index.Get(opts.PropID)
	if !ok {
		return opts, vehicle.Errorf(vehicle.StatusInvalidArg, "unknown property 0x%x", opts.PropID)
	}
	if opts.Flags == vehicle.FlagUndefined || opts.Flags&^knownFlags != 0 {
		return opts, vehicle.Errorf(vehicle.StatusInvalidArg, "invalid flags %s for %s", opts.Flags, vehicle.PropertyName(opts.PropID))
	}
	if !isSubscribable(cfg, opts.Flags) {
		return opts, vehicle.Errorf(vehicle.StatusInvalidArg, "property %s is not subscribable with %s", vehicle.PropertyName(opts.PropID), opts.Flags)
	}

	if vehicle.IsGlobalProperty(opts.PropID) {
		opts.AreaMask = vehicle.AllAreas
	} else if !opts.AreaMask.IsAll() {
		supported := cfg.SupportedAreas()
		if !supported.IsAll() && int32(opts.AreaMask)&^int32(supported) != 0 {
			return opts, vehicle.Errorf(vehicle.StatusInvalidArg, "area mask 0x%x not supported by %s", int32(opts.AreaMask), vehicle.PropertyName(opts.PropID))
		}
	}

	if cfg.ChangeMode == vehicle.ChangeModeContinuous {
		opts.SampleRateHz = clampRate(opts.SampleRateHz, cfg.MinSampleRate, cfg.MaxSampleRate)
	} else {
		opts.SampleRateHz = 0
	}
	return opts, nil
}

func isSubscribable(cfg vehicle.PropConfig, flags vehicle.SubscribeFlags) bool {
	if flags&vehicle.FlagHalEvent != 0 {
		if !cfg.Access.CanRead() || cfg.ChangeMode == vehicle.ChangeModeStatic {
			return false
		}
	}
	if flags&vehicle.FlagSetCall != 0 && !cfg.Access.CanWrite() {
		return false
	}
	return true
}

func clampRate(rate, lo, hi float32) float32 {
	if rate < lo {
		return lo
	}
	if rate > hi {
		return hi
	}
	return rate
}

// Unsubscribe removes the client's subscription to propID and stops the
// hardware feed when nobody else needs it.
func (m *Manager) Unsubscribe(id ClientID, propID int32) error {
	if m.closed.Load() {
		return errClosed
	}
	m.subMu.Lock()
	defer m.subMu.Unlock()
	if _, err := m.client(id); err != nil {
		return err
	}

	last, err := m.subs.Unsubscribe(id, propID)
	switch {
	case errors.Is(err, subscription.ErrClientNotFound), errors.Is(err, subscription.ErrNotSubscribed):
		return vehicle.Errorf(vehicle.StatusNotFound, "client is not subscribed to %s", vehicle.PropertyName(propID))
	case err != nil:
		return vehicle.Errorf(vehicle.StatusInternalError, "%v", err)
	}
	m.logSubscription(id, log.SubscriptionActionUnsubscribe, nil, propID)

	if last {
		return m.releaseHardware(propID)
	}
	return nil
}

func (m *Manager) releaseHardware(propID int32) error {
	if err := m.hw.Unsubscribe(propID); err != nil {
		m.logger.Warn("hardware unsubscribe failed",
			slog.String("prop", vehicle.PropertyName(propID)),
			slog.Any("error", err))
		return vehicle.Errorf(vehicle.StatusInternalError, "hardware unsubscribe: %v", err)
	}
	m.logSubscription(ClientID{}, log.SubscriptionActionHardwareRelease, nil, propID)
	return nil
}

// Subscriptions returns the client's current subscriptions.
func (m *Manager) Subscriptions(id ClientID) []vehicle.SubscribeOptions {
	return m.subs.ClientSubscriptions(id)
}

// HardwareSubscriptions returns what the hardware is asked to deliver.
func (m *Manager) HardwareSubscriptions() []vehicle.SubscribeOptions {
	return m.subs.HalEventSubscriptions()
}

func (m *Manager) logSubscription(id ClientID, action log.SubscriptionAction, opts []vehicle.SubscribeOptions, propID int32) {
	layer := log.LayerClient
	dir := log.DirectionIn
	if action == log.SubscriptionActionHardwareUpdate || action == log.SubscriptionActionHardwareRelease {
		layer = log.LayerHardware
		dir = log.DirectionOut
	}
	e := log.Event{
		Timestamp:    time.Now(),
		Direction:    dir,
		Layer:        layer,
		Category:     log.CategorySubscription,
		Subscription: &log.SubscriptionEvent{Action: action, Options: opts, PropID: propID},
	}
	if id != (ClientID{}) {
		e.ClientID = id.String()
	}
	m.plog.Log(e)
}
