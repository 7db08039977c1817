package fakehw

import (
	"errors"
	"io"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/openvhal/vhal-go/pkg/hal"
	"github.com/openvhal/vhal-go/pkg/objpool"
	"github.com/openvhal/vhal-go/pkg/propconfig"
	"github.com/openvhal/vhal-go/pkg/timer"
	"github.com/openvhal/vhal-go/pkg/vehicle"
)

// Errors returned by the fake hardware.
var (
	ErrNotInitialized     = errors.New("hardware not initialized")
	ErrAlreadyInitialized = errors.New("hardware already initialized")
)

// Config configures the fake hardware.
type Config struct {
	// AsyncDelay delays answers to GetValues and SetValues.
	AsyncDelay time.Duration

	// Logger receives operational logs. Nil discards them.
	Logger *slog.Logger
}

type key struct {
	prop int32
	area int32
}

// Hardware is an in-memory hal.Hardware.
type Hardware struct {
	config  Config
	logger  *slog.Logger
	configs []vehicle.PropConfig
	index   *vehicle.ConfigIndex
	timers  *timer.RecurrentTimer

	mu         sync.Mutex
	values     map[key]vehicle.PropertyValue
	setErrors  map[int32]vehicle.StatusCode
	generators map[key]timer.ID
	health     error
	pool       *objpool.Pool
	sink       hal.EventSink
}

// New creates fake hardware serving decls.
func New(decls []propconfig.Declaration, cfg Config) *Hardware {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	configs := propconfig.Configs(decls)
	h := &Hardware{
		config:     cfg,
		logger:     cfg.Logger,
		configs:    configs,
		index:      vehicle.NewConfigIndex(configs),
		timers:     timer.New(),
		values:     make(map[key]vehicle.PropertyValue),
		setErrors:  make(map[int32]vehicle.StatusCode),
		generators: make(map[key]timer.ID),
	}
	for _, d := range decls {
		for _, area := range configuredAreas(d.Config) {
			raw, ok := d.AreaValues[area]
			if !ok {
				if d.InitialValue == nil {
					continue
				}
				raw = *d.InitialValue
			}
			h.values[key{d.Config.Prop, area}] = vehicle.PropertyValue{
				Prop:   d.Config.Prop,
				AreaID: area,
				Value:  raw.Clone(),
			}
		}
	}
	return h
}

// configuredAreas returns area 0 for global properties.
func configuredAreas(cfg vehicle.PropConfig) []int32 {
	if vehicle.IsGlobalProperty(cfg.Prop) || len(cfg.AreaConfigs) == 0 {
		return []int32{0}
	}
	areas := make([]int32, len(cfg.AreaConfigs))
	for i, ac := range cfg.AreaConfigs {
		areas[i] = ac.AreaID
	}
	return areas
}

// Init implements hal.Hardware.
func (h *Hardware) Init(pool *objpool.Pool, sink hal.EventSink) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sink != nil {
		return ErrAlreadyInitialized
	}
	h.pool = pool
	h.sink = sink
	return nil
}

// ListProperties implements hal.Hardware.
func (h *Hardware) ListProperties() []vehicle.PropConfig {
	return slices.Clone(h.configs)
}

// Get implements hal.Hardware.
func (h *Hardware) Get(requested vehicle.PropertyValue) (vehicle.PropertyValue, error) {
	cfg, ok := h.index.Get(requested.Prop)
	if !ok {
		return vehicle.PropertyValue{}, vehicle.Errorf(vehicle.StatusInvalidArg, "unknown property 0x%x", requested.Prop)
	}
	k := h.keyFor(cfg, requested.AreaID)

	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.values[k]
	if !ok {
		return vehicle.PropertyValue{}, vehicle.Errorf(vehicle.StatusNotAvailable, "%s area %d has no value", vehicle.PropertyName(k.prop), k.area)
	}
	return v.Clone(), nil
}

// Set implements hal.Hardware. An injected set error makes the call
// succeed and reports the failure through the sink afterwards.
func (h *Hardware) Set(value vehicle.PropertyValue) error {
	cfg, ok := h.index.Get(value.Prop)
	if !ok {
		return vehicle.Errorf(vehicle.StatusInvalidArg, "unknown property 0x%x", value.Prop)
	}
	k := h.keyFor(cfg, value.AreaID)

	h.mu.Lock()
	if h.sink == nil {
		h.mu.Unlock()
		return ErrNotInitialized
	}
	if code, ok := h.setErrors[value.Prop]; ok {
		sink := h.sink
		h.mu.Unlock()
		go sink.OnHalError(code, value.Prop, value.AreaID)
		return nil
	}

	stored := value.Clone()
	stored.AreaID = k.area
	if stored.Timestamp == 0 {
		stored.Timestamp = time.Now().UnixNano()
	}
	old, existed := h.values[k]
	h.values[k] = stored
	h.mu.Unlock()

	if !existed || !sameValue(old, stored) {
		h.emit(stored)
	}
	return nil
}

// Subscribe implements hal.Hardware. Continuous properties get one
// generator per subscribed area; other properties report on change only.
func (h *Hardware) Subscribe(options vehicle.SubscribeOptions) error {
	cfg, ok := h.index.Get(options.PropID)
	if !ok {
		return vehicle.Errorf(vehicle.StatusInvalidArg, "unknown property 0x%x", options.PropID)
	}
	if cfg.ChangeMode != vehicle.ChangeModeContinuous {
		return nil
	}

	for _, area := range configuredAreas(cfg) {
		if !vehicle.IsGlobalProperty(cfg.Prop) && !options.AreaMask.IsAll() && int32(options.AreaMask)&area == 0 {
			continue
		}
		if err := h.updateSampleRate(key{cfg.Prop, area}, options.SampleRateHz); err != nil {
			return err
		}
	}
	return nil
}

// Unsubscribe implements hal.Hardware.
func (h *Hardware) Unsubscribe(propID int32) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for k, id := range h.generators {
		if k.prop == propID {
			_ = h.timers.Unregister(id)
			delete(h.generators, k)
		}
	}
	return nil
}

func (h *Hardware) updateSampleRate(k key, rate float32) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if id, ok := h.generators[k]; ok {
		_ = h.timers.Unregister(id)
		delete(h.generators, k)
	}
	if rate <= 0 {
		return nil
	}
	interval := time.Duration(float64(time.Second) / float64(rate))
	id, err := h.timers.Register(interval, func() { h.refresh(k) })
	if err != nil {
		return err
	}
	h.generators[k] = id
	h.logger.Debug("generator started",
		slog.String("prop", vehicle.PropertyName(k.prop)),
		slog.Int("area", int(k.area)),
		slog.Duration("interval", interval))
	return nil
}

// refresh re-reports the current value with a new timestamp.
func (h *Hardware) refresh(k key) {
	h.mu.Lock()
	v, ok := h.values[k]
	if ok {
		v.Timestamp = time.Now().UnixNano()
		h.values[k] = v
		v = v.Clone()
	}
	h.mu.Unlock()
	if ok {
		h.emit(v)
	}
}

func (h *Hardware) emit(v vehicle.PropertyValue) {
	h.mu.Lock()
	pool, sink := h.pool, h.sink
	h.mu.Unlock()
	if sink == nil {
		return
	}
	sink.OnHalEvent(pool.ObtainCopy(v))
}

func (h *Hardware) keyFor(cfg vehicle.PropConfig, areaID int32) key {
	if vehicle.IsGlobalProperty(cfg.Prop) {
		return key{cfg.Prop, 0}
	}
	return key{cfg.Prop, areaID}
}

// InjectEvent stores v and reports it as a hardware event even if the
// value did not change.
func (h *Hardware) InjectEvent(v vehicle.PropertyValue) error {
	cfg, ok := h.index.Get(v.Prop)
	if !ok {
		return vehicle.Errorf(vehicle.StatusInvalidArg, "unknown property 0x%x", v.Prop)
	}
	stored := v.Clone()
	stored.AreaID = h.keyFor(cfg, v.AreaID).area
	if stored.Timestamp == 0 {
		stored.Timestamp = time.Now().UnixNano()
	}
	h.mu.Lock()
	h.values[key{stored.Prop, stored.AreaID}] = stored
	h.mu.Unlock()

	h.emit(stored)
	return nil
}

// InjectSetError makes later sets of propID fail with code. StatusOK
// clears the injection.
func (h *Hardware) InjectSetError(propID int32, code vehicle.StatusCode) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if code == vehicle.StatusOK {
		delete(h.setErrors, propID)
		return
	}
	h.setErrors[propID] = code
}

// SetHealth sets what CheckHealth reports.
func (h *Hardware) SetHealth(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.health = err
}

// CheckHealth implements hal.HealthChecker.
func (h *Hardware) CheckHealth() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.health
}

// Generators returns the number of running continuous generators.
func (h *Hardware) Generators() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.generators)
}

// Snapshot returns every stored value ordered by property and area.
func (h *Hardware) Snapshot() []vehicle.PropertyValue {
	h.mu.Lock()
	out := make([]vehicle.PropertyValue, 0, len(h.values))
	for _, v := range h.values {
		out = append(out, v.Clone())
	}
	h.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Prop != out[j].Prop {
			return out[i].Prop < out[j].Prop
		}
		return out[i].AreaID < out[j].AreaID
	})
	return out
}

// Restore stores values without reporting events. Values of unknown
// properties, unsupported areas or static properties are skipped. It
// returns how many values were restored.
func (h *Hardware) Restore(values []vehicle.PropertyValue) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, v := range values {
		cfg, ok := h.index.Get(v.Prop)
		if !ok || cfg.ChangeMode == vehicle.ChangeModeStatic {
			continue
		}
		if _, ok := cfg.AreaConfig(v.AreaID); !ok {
			continue
		}
		k := h.keyFor(cfg, v.AreaID)
		stored := v.Clone()
		stored.AreaID = k.area
		h.values[k] = stored
		n++
	}
	return n
}

// Close stops every generator.
func (h *Hardware) Close() error {
	h.timers.Stop()
	h.mu.Lock()
	clear(h.generators)
	h.mu.Unlock()
	return nil
}

func sameValue(a, b vehicle.PropertyValue) bool {
	return a.Status == b.Status &&
		slices.Equal(a.Value.Int32Values, b.Value.Int32Values) &&
		slices.Equal(a.Value.Int64Values, b.Value.Int64Values) &&
		slices.Equal(a.Value.FloatValues, b.Value.FloatValues) &&
		slices.Equal(a.Value.ByteValues, b.Value.ByteValues) &&
		a.Value.StringValue == b.Value.StringValue
}

var (
	_ hal.Hardware      = (*Hardware)(nil)
	_ hal.AsyncHardware = (*Hardware)(nil)
	_ hal.HealthChecker = (*Hardware)(nil)
	_ hal.Dumper        = (*Hardware)(nil)
)
