package hal

import (
	"errors"
	"log/slog"
	"time"

	"github.com/openvhal/vhal-go/pkg/log"
	"github.com/openvhal/vhal-go/pkg/pending"
	"github.com/openvhal/vhal-go/pkg/vehicle"
)

type propArea struct {
	prop int32
	area int32
}

// GetValues answers a batch of get requests asynchronously through the
// client's OnGetValues. Requests that fail validation are answered right
// away; the rest are tracked in the pending pool and answered by the
// hardware or, if it is too slow, with TRY_AGAIN.
func (m *Manager) GetValues(id ClientID, requests []vehicle.GetValueRequest) error {
	if m.closed.Load() {
		return errClosed
	}
	c, err := m.client(id)
	if err != nil {
		return err
	}

	targets := make([]propArea, len(requests))
	ids := make([]int64, len(requests))
	for i, r := range requests {
		ids[i] = r.RequestID
		targets[i] = propArea{r.Prop.Prop, r.Prop.AreaID}
	}
	if err := checkDuplicates(ids, targets); err != nil {
		return err
	}

	var failed []vehicle.GetValueResult
	var forward []vehicle.GetValueRequest
	var forwardIDs []int64
	for _, r := range requests {
		if _, err := m.checkAccess(r.Prop.Prop, r.Prop.AreaID, vehicle.AccessRead); err != nil {
			failed = append(failed, vehicle.GetValueResult{RequestID: r.RequestID, Status: vehicle.StatusOf(err)})
			continue
		}
		forward = append(forward, r)
		forwardIDs = append(forwardIDs, r.RequestID)
	}

	if len(forward) > 0 {
		onTimeout := func(timedOut []int64) { m.onGetTimeout(c, timedOut) }
		if err := m.requests.AddRequests(c.getKey, forwardIDs, onTimeout); err != nil {
			return pendingError(err)
		}
	}
	m.logRequest(id, log.RequestKindGetValues, ids, nil, false)

	if len(failed) > 0 {
		m.deliverGetResults(c, failed)
	}
	if len(forward) == 0 {
		return nil
	}

	done := func(results []vehicle.GetValueResult) { m.finishGet(c, results) }
	if ah, ok := m.hw.(AsyncHardware); ok {
		if err := ah.GetValues(forward, done); err != nil {
			m.requests.TryFinishRequests(c.getKey, forwardIDs)
			return hardwareError("get values", err)
		}
		return nil
	}
	go func() {
		results := make([]vehicle.GetValueResult, len(forward))
		for i, r := range forward {
			results[i] = vehicle.GetValueResult{RequestID: r.RequestID}
			v, err := m.hw.Get(r.Prop)
			if err != nil {
				results[i].Status = vehicle.StatusOf(hardwareError("get", err))
				continue
			}
			results[i].Prop = &v
		}
		done(results)
	}()
	return nil
}

// SetValues is the set counterpart of GetValues. Clients subscribed with
// SET_CALL are notified of every forwarded value.
func (m *Manager) SetValues(id ClientID, requests []vehicle.SetValueRequest) error {
	if m.closed.Load() {
		return errClosed
	}
	c, err := m.client(id)
	if err != nil {
		return err
	}

	targets := make([]propArea, len(requests))
	ids := make([]int64, len(requests))
	for i, r := range requests {
		ids[i] = r.RequestID
		targets[i] = propArea{r.Value.Prop, r.Value.AreaID}
	}
	if err := checkDuplicates(ids, targets); err != nil {
		return err
	}

	var failed []vehicle.SetValueResult
	var forward []vehicle.SetValueRequest
	var forwardIDs []int64
	for _, r := range requests {
		cfg, err := m.checkAccess(r.Value.Prop, r.Value.AreaID, vehicle.AccessWrite)
		if err == nil {
			err = checkValue(cfg, r.Value)
		}
		if err != nil {
			failed = append(failed, vehicle.SetValueResult{RequestID: r.RequestID, Status: vehicle.StatusOf(err)})
			continue
		}
		forward = append(forward, r)
		forwardIDs = append(forwardIDs, r.RequestID)
	}

	if len(forward) > 0 {
		onTimeout := func(timedOut []int64) { m.onSetTimeout(c, timedOut) }
		if err := m.requests.AddRequests(c.setKey, forwardIDs, onTimeout); err != nil {
			return pendingError(err)
		}
	}
	m.logRequest(id, log.RequestKindSetValues, ids, nil, false)

	if len(failed) > 0 {
		m.deliverSetResults(c, failed)
	}
	if len(forward) == 0 {
		return nil
	}

	for _, r := range forward {
		for _, sc := range m.subs.GetSubscribedClients(r.Value.Prop, r.Value.AreaID, vehicle.FlagSetCall) {
			if err := sc.Callback().OnPropertySet(r.Value.Clone()); err != nil {
				m.logCallbackError(sc.ID(), "OnPropertySet", err)
			}
		}
	}

	done := func(results []vehicle.SetValueResult) { m.finishSet(c, results) }
	if ah, ok := m.hw.(AsyncHardware); ok {
		if err := ah.SetValues(forward, done); err != nil {
			m.requests.TryFinishRequests(c.setKey, forwardIDs)
			return hardwareError("set values", err)
		}
		return nil
	}
	go func() {
		results := make([]vehicle.SetValueResult, len(forward))
		for i, r := range forward {
			results[i] = vehicle.SetValueResult{RequestID: r.RequestID}
			if err := m.hw.Set(r.Value); err != nil {
				results[i].Status = vehicle.StatusOf(hardwareError("set", err))
			}
		}
		done(results)
	}()
	return nil
}

// PendingRequests returns the number of requests awaiting an answer.
func (m *Manager) PendingRequests() int {
	return m.requests.CountPendingRequests()
}

func checkDuplicates(ids []int64, targets []propArea) error {
	seenIDs := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seenIDs[id]; ok {
			return vehicle.Errorf(vehicle.StatusInvalidArg, "duplicate request ID %d", id)
		}
		seenIDs[id] = struct{}{}
	}
	seenTargets := make(map[propArea]struct{}, len(targets))
	for _, t := range targets {
		if _, ok := seenTargets[t]; ok {
			return vehicle.Errorf(vehicle.StatusInvalidArg, "duplicate request for %s area 0x%x", vehicle.PropertyName(t.prop), t.area)
		}
		seenTargets[t] = struct{}{}
	}
	return nil
}

func pendingError(err error) error {
	switch {
	case errors.Is(err, pending.ErrDuplicateID):
		return vehicle.Errorf(vehicle.StatusInvalidArg, "%v", err)
	case errors.Is(err, pending.ErrTooManyPending):
		return vehicle.Errorf(vehicle.StatusTryAgain, "%v", err)
	case errors.Is(err, pending.ErrClosed):
		return vehicle.Errorf(vehicle.StatusIllegalState, "%v", err)
	}
	return vehicle.Errorf(vehicle.StatusInternalError, "%v", err)
}

func (m *Manager) finishGet(c *connectedClient, results []vehicle.GetValueResult) {
	ids := make([]int64, len(results))
	for i, r := range results {
		ids[i] = r.RequestID
	}
	finished := toSet(m.requests.TryFinishRequests(c.getKey, ids))
	out := results[:0:0]
	for _, r := range results {
		if _, ok := finished[r.RequestID]; ok {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return
	}
	m.deliverGetResults(c, out)
}

func (m *Manager) finishSet(c *connectedClient, results []vehicle.SetValueResult) {
	ids := make([]int64, len(results))
	for i, r := range results {
		ids[i] = r.RequestID
	}
	finished := toSet(m.requests.TryFinishRequests(c.setKey, ids))
	out := results[:0:0]
	for _, r := range results {
		if _, ok := finished[r.RequestID]; ok {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return
	}
	m.deliverSetResults(c, out)
}

func (m *Manager) onGetTimeout(c *connectedClient, ids []int64) {
	results := make([]vehicle.GetValueResult, len(ids))
	for i, id := range ids {
		results[i] = vehicle.GetValueResult{RequestID: id, Status: vehicle.StatusTryAgain}
	}
	m.logTimeout(c.id, log.RequestKindGetValues, ids)
	m.deliverGetResults(c, results)
}

func (m *Manager) onSetTimeout(c *connectedClient, ids []int64) {
	results := make([]vehicle.SetValueResult, len(ids))
	for i, id := range ids {
		results[i] = vehicle.SetValueResult{RequestID: id, Status: vehicle.StatusTryAgain}
	}
	m.logTimeout(c.id, log.RequestKindSetValues, ids)
	m.deliverSetResults(c, results)
}

// Results for clients that unregistered in the meantime are dropped.
func (m *Manager) deliverGetResults(c *connectedClient, results []vehicle.GetValueResult) {
	if !m.isRegistered(c.id) {
		return
	}
	if err := c.callback.OnGetValues(results); err != nil {
		m.logCallbackError(c.id, "OnGetValues", err)
	}
}

func (m *Manager) deliverSetResults(c *connectedClient, results []vehicle.SetValueResult) {
	if !m.isRegistered(c.id) {
		return
	}
	if err := c.callback.OnSetValues(results); err != nil {
		m.logCallbackError(c.id, "OnSetValues", err)
	}
}

func (m *Manager) logTimeout(id ClientID, kind log.RequestKind, ids []int64) {
	m.logger.Warn("requests timed out",
		slog.String("client_id", id.String()),
		slog.String("kind", kind.String()),
		slog.Int("count", len(ids)))
	status := vehicle.StatusTryAgain
	m.logRequest(id, kind, ids, &status, true)
}

func (m *Manager) logRequest(id ClientID, kind log.RequestKind, ids []int64, status *vehicle.StatusCode, timedOut bool) {
	dir := log.DirectionIn
	if status != nil {
		dir = log.DirectionOut
	}
	m.plog.Log(log.Event{
		Timestamp: time.Now(),
		ClientID:  id.String(),
		Direction: dir,
		Layer:     log.LayerClient,
		Category:  log.CategoryRequest,
		Request:   &log.RequestEvent{Kind: kind, RequestIDs: ids, Status: status, TimedOut: timedOut},
	})
}

func toSet(ids []int64) map[int64]struct{} {
	s := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}
