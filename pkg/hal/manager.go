package hal

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/openvhal/vhal-go/pkg/batching"
	"github.com/openvhal/vhal-go/pkg/log"
	"github.com/openvhal/vhal-go/pkg/objpool"
	"github.com/openvhal/vhal-go/pkg/pending"
	"github.com/openvhal/vhal-go/pkg/subscription"
	"github.com/openvhal/vhal-go/pkg/timer"
	"github.com/openvhal/vhal-go/pkg/vehicle"
)

// ClientID identifies a registered client.
type ClientID = subscription.ClientID

// errClosed is returned by every operation after Close.
var errClosed = &vehicle.StatusError{Code: vehicle.StatusIllegalState, Message: "manager closed"}

type connectedClient struct {
	id       ClientID
	callback vehicle.Callback

	// Pending pool keys; get and set requests are tracked separately so
	// their IDs may overlap.
	getKey uuid.UUID
	setKey uuid.UUID
}

// Manager routes properties between clients and the hardware.
type Manager struct {
	config  Config
	logger  *slog.Logger
	plog    log.Logger
	hw      Hardware
	index   *vehicle.ConfigIndex
	started time.Time

	valuePool *objpool.Pool
	queue     *batching.Queue[*objpool.Recyclable]
	consumer  *batching.Consumer[*objpool.Recyclable]
	subs      *subscription.Manager
	requests  *pending.RequestPool
	timers    *timer.RecurrentTimer

	mu      sync.RWMutex
	clients map[ClientID]*connectedClient

	// subMu orders subscription changes and the hardware calls they cause.
	// Client registration is checked again under it.
	subMu sync.Mutex

	// Reused by the consumer goroutine only.
	deliveryBuf []vehicle.PropertyValue

	closed atomic.Bool
}

// NewManager starts the batching consumer, initializes the hardware and
// indexes its property configurations.
func NewManager(hw Hardware, cfg Config) (*Manager, error) {
	cfg = cfg.withDefaults()

	m := &Manager{
		config:    cfg,
		logger:    cfg.Logger,
		plog:      cfg.ProtocolLogger,
		hw:        hw,
		started:   time.Now(),
		valuePool: objpool.New(cfg.ObjectPool),
		queue:     batching.NewQueue[*objpool.Recyclable](),
		consumer:  batching.NewConsumer[*objpool.Recyclable](),
		subs:      subscription.NewManager(),
		timers:    timer.New(),
		clients:   make(map[ClientID]*connectedClient),
	}
	m.deliveryBuf = make([]vehicle.PropertyValue, 0, cfg.MaxPooledVectorSize)

	m.consumer.Run(m.queue, cfg.BatchWindow, m.onBatchHalEvent)

	if err := hw.Init(m.valuePool, m); err != nil {
		m.stopConsumer()
		return nil, fmt.Errorf("hardware init: %w", err)
	}
	m.index = vehicle.NewConfigIndex(hw.ListProperties())

	m.requests = pending.NewRequestPool(pending.Config{
		Timeout:             cfg.RequestTimeout,
		MaxPendingPerClient: cfg.MaxPendingPerClient,
		Logger:              cfg.Logger,
	})

	if cfg.HeartbeatInterval > 0 && m.index.Has(vehicle.PropVhalHeartbeat) {
		if _, err := m.timers.Register(cfg.HeartbeatInterval, m.sendHeartbeat); err != nil {
			m.logger.Warn("heartbeat disabled", slog.Any("error", err))
		}
	}

	m.logger.Info("vehicle HAL manager started",
		slog.Int("properties", m.index.Len()),
		slog.Duration("batch_window", cfg.BatchWindow))
	m.logState(log.StateEntityManager, "", "RUNNING", "")
	return m, nil
}

// Close shuts the manager down. Queued events are dropped and pending
// requests are answered with TRY_AGAIN. Close is idempotent.
func (m *Manager) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}
	m.timers.Stop()
	m.stopConsumer()
	for _, r := range m.queue.Flush() {
		r.Release()
	}
	m.requests.Close()

	m.logger.Info("vehicle HAL manager stopped")
	m.logState(log.StateEntityManager, "RUNNING", "STOPPED", "close")
	return nil
}

func (m *Manager) stopConsumer() {
	m.consumer.RequestStop()
	m.queue.Deactivate()
	m.consumer.WaitStopped()
}

// OnHalEvent implements EventSink. The manager owns v from here on.
func (m *Manager) OnHalEvent(v *objpool.Recyclable) {
	if v == nil {
		return
	}
	if !m.queue.Push(v) {
		v.Release()
	}
}

// OnHalError implements EventSink. Clients subscribed to hardware events
// of the property are told about the failed set.
func (m *Manager) OnHalError(code vehicle.StatusCode, propID, areaID int32) {
	m.logger.Warn("hardware set error",
		slog.String("prop", vehicle.PropertyName(propID)),
		slog.Int("area", int(areaID)),
		slog.String("status", code.String()))
	m.plog.Log(log.Event{
		Timestamp: time.Now(),
		Direction: log.DirectionIn,
		Layer:     log.LayerHardware,
		Category:  log.CategoryProperty,
		Property: log.NewPropertyEvent(log.PropertyKindSetError,
			[]vehicle.PropertyValue{{Prop: propID, AreaID: areaID, Status: vehicle.PropertyStatusError}}),
	})

	for _, c := range m.subs.GetSubscribedClients(propID, areaID, vehicle.FlagHalEvent) {
		if err := c.Callback().OnPropertySetError(code, propID, areaID); err != nil {
			m.logCallbackError(c.ID(), "OnPropertySetError", err)
		}
	}
}

// OnHalEventValue copies v into a pooled value and queues it.
func (m *Manager) OnHalEventValue(v vehicle.PropertyValue) {
	m.OnHalEvent(m.valuePool.ObtainCopy(v))
}

func (m *Manager) onBatchHalEvent(items []*objpool.Recyclable) {
	values := make([]*vehicle.PropertyValue, len(items))
	for i, r := range items {
		values[i] = r.Value
	}
	defer func() {
		for _, r := range items {
			r.Release()
		}
	}()

	m.logBatch(values)

	for _, cv := range m.subs.DistributeValuesToClients(values, vehicle.FlagHalEvent) {
		var vec []vehicle.PropertyValue
		if len(cv.Values) <= m.config.MaxPooledVectorSize {
			vec = m.deliveryBuf[:0]
		} else {
			vec = make([]vehicle.PropertyValue, 0, len(cv.Values))
		}
		for _, v := range cv.Values {
			vec = append(vec, *v)
		}
		if err := cv.Client.Callback().OnPropertyEvent(vec); err != nil {
			m.logCallbackError(cv.Client.ID(), "OnPropertyEvent", err)
		}
		clear(vec)
	}
}

func (m *Manager) logBatch(values []*vehicle.PropertyValue) {
	if _, noop := m.plog.(log.NoopLogger); noop {
		return
	}
	flat := make([]vehicle.PropertyValue, len(values))
	for i, v := range values {
		flat[i] = *v
	}
	m.plog.Log(log.Event{
		Timestamp: time.Now(),
		Direction: log.DirectionIn,
		Layer:     log.LayerHardware,
		Category:  log.CategoryProperty,
		Property:  log.NewPropertyEvent(log.PropertyKindEvent, flat),
	})
}

func (m *Manager) sendHeartbeat() {
	if hc, ok := m.hw.(HealthChecker); ok {
		if err := hc.CheckHealth(); err != nil {
			m.logger.Warn("hardware unhealthy, skipping heartbeat", slog.Any("error", err))
			return
		}
	}
	r := m.valuePool.ObtainInt64(time.Since(m.started).Milliseconds())
	r.Value.Prop = vehicle.PropVhalHeartbeat
	r.Value.Timestamp = time.Now().UnixNano()
	m.OnHalEvent(r)
}

// PoolStats returns the value pool counters.
func (m *Manager) PoolStats() objpool.Stats {
	return m.valuePool.Stats()
}

func (m *Manager) logCallbackError(id ClientID, method string, err error) {
	m.logger.Warn("client callback failed",
		slog.String("client_id", id.String()),
		slog.String("method", method),
		slog.Any("error", err))
	m.plog.Log(log.Event{
		Timestamp: time.Now(),
		ClientID:  id.String(),
		Direction: log.DirectionOut,
		Layer:     log.LayerClient,
		Category:  log.CategoryError,
		Error:     &log.ErrorEventData{Layer: log.LayerClient, Message: err.Error(), Context: method},
	})
}

func (m *Manager) logState(entity log.StateEntity, oldState, newState, reason string) {
	m.plog.Log(log.Event{
		Timestamp:   time.Now(),
		Direction:   log.DirectionOut,
		Layer:       log.LayerManager,
		Category:    log.CategoryState,
		StateChange: &log.StateChangeEvent{Entity: entity, OldState: oldState, NewState: newState, Reason: reason},
	})
}

var _ EventSink = (*Manager)(nil)
