package hal

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/openvhal/vhal-go/pkg/objpool"
	"github.com/openvhal/vhal-go/pkg/vehicle"
)

var (
	speedConfig = vehicle.PropConfig{
		Prop:          vehicle.PropPerfVehicleSpeed,
		Access:        vehicle.AccessRead,
		ChangeMode:    vehicle.ChangeModeContinuous,
		MinSampleRate: 1,
		MaxSampleRate: 10,
	}
	gearConfig = vehicle.PropConfig{
		Prop:       vehicle.PropGearSelection,
		Access:     vehicle.AccessRead,
		ChangeMode: vehicle.ChangeModeOnChange,
	}
	hvacConfig = vehicle.PropConfig{
		Prop:       vehicle.PropHvacTemperatureSet,
		Access:     vehicle.AccessReadWrite,
		ChangeMode: vehicle.ChangeModeOnChange,
		AreaConfigs: []vehicle.AreaConfig{
			{AreaID: 1, MinFloatValue: 16, MaxFloatValue: 28},
			{AreaID: 4, MinFloatValue: 16, MaxFloatValue: 28},
		},
	}
	makeConfig = vehicle.PropConfig{
		Prop:       vehicle.PropInfoMake,
		Access:     vehicle.AccessRead,
		ChangeMode: vehicle.ChangeModeStatic,
	}
	powerReportConfig = vehicle.PropConfig{
		Prop:       vehicle.PropApPowerStateReport,
		Access:     vehicle.AccessWrite,
		ChangeMode: vehicle.ChangeModeOnChange,
	}
	heartbeatConfig = vehicle.PropConfig{
		Prop:       vehicle.PropVhalHeartbeat,
		Access:     vehicle.AccessRead,
		ChangeMode: vehicle.ChangeModeOnChange,
	}
)

func testConfigs() []vehicle.PropConfig {
	return []vehicle.PropConfig{speedConfig, gearConfig, hvacConfig, makeConfig, powerReportConfig, heartbeatConfig}
}

func floatValue(prop, area int32, f float32) vehicle.PropertyValue {
	return vehicle.PropertyValue{Prop: prop, AreaID: area, Value: vehicle.RawValue{FloatValues: []float32{f}}}
}

func int32Value(prop int32, n int32) vehicle.PropertyValue {
	return vehicle.PropertyValue{Prop: prop, Value: vehicle.RawValue{Int32Values: []int32{n}}}
}

// stubHardware keeps values in memory and records subscription calls
// through mock.Mock.
type stubHardware struct {
	mock.Mock

	mu      sync.Mutex
	configs []vehicle.PropConfig
	values  map[propArea]vehicle.PropertyValue
	setErr  error
	pool    *objpool.Pool
	sink    EventSink
}

func newStubHardware() *stubHardware {
	h := &stubHardware{
		configs: testConfigs(),
		values:  make(map[propArea]vehicle.PropertyValue),
	}
	h.put(floatValue(vehicle.PropPerfVehicleSpeed, 0, 0))
	h.put(int32Value(vehicle.PropGearSelection, 4))
	h.put(floatValue(vehicle.PropHvacTemperatureSet, 1, 21))
	h.put(floatValue(vehicle.PropHvacTemperatureSet, 4, 22))
	h.put(vehicle.PropertyValue{Prop: vehicle.PropInfoMake, Value: vehicle.RawValue{StringValue: "OpenVHAL"}})
	return h
}

func (h *stubHardware) put(v vehicle.PropertyValue) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.values[propArea{v.Prop, v.AreaID}] = v
}

func (h *stubHardware) Init(pool *objpool.Pool, sink EventSink) error {
	h.pool = pool
	h.sink = sink
	return nil
}

func (h *stubHardware) ListProperties() []vehicle.PropConfig {
	return h.configs
}

func (h *stubHardware) Get(requested vehicle.PropertyValue) (vehicle.PropertyValue, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.values[propArea{requested.Prop, requested.AreaID}]
	if !ok {
		return vehicle.PropertyValue{}, vehicle.Errorf(vehicle.StatusNotAvailable, "no value")
	}
	return v.Clone(), nil
}

func (h *stubHardware) Set(value vehicle.PropertyValue) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.setErr != nil {
		return h.setErr
	}
	h.values[propArea{value.Prop, value.AreaID}] = value.Clone()
	return nil
}

func (h *stubHardware) Subscribe(options vehicle.SubscribeOptions) error {
	return h.Called(options).Error(0)
}

func (h *stubHardware) Unsubscribe(propID int32) error {
	return h.Called(propID).Error(0)
}

// stalledHardware accepts asynchronous requests and never answers them
// until release is called.
type stalledHardware struct {
	*stubHardware

	mu      sync.Mutex
	getDone []func([]vehicle.GetValueResult)
	gets    [][]vehicle.GetValueRequest
}

func (h *stalledHardware) GetValues(requests []vehicle.GetValueRequest, done func([]vehicle.GetValueResult)) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.getDone = append(h.getDone, done)
	h.gets = append(h.gets, requests)
	return nil
}

func (h *stalledHardware) SetValues(requests []vehicle.SetValueRequest, done func([]vehicle.SetValueResult)) error {
	return vehicle.Errorf(vehicle.StatusTryAgain, "busy")
}

// release answers every stalled get with OK.
func (h *stalledHardware) release() {
	h.mu.Lock()
	dones, gets := h.getDone, h.gets
	h.getDone, h.gets = nil, nil
	h.mu.Unlock()

	for i, done := range dones {
		results := make([]vehicle.GetValueResult, len(gets[i]))
		for j, r := range gets[i] {
			v := r.Prop
			results[j] = vehicle.GetValueResult{RequestID: r.RequestID, Prop: &v}
		}
		done(results)
	}
}

// recordingCallback collects everything the manager delivers.
type recordingCallback struct {
	mu         sync.Mutex
	batches    [][]vehicle.PropertyValue
	sets       []vehicle.PropertyValue
	setErrors  []vehicle.PropError
	getResults []vehicle.GetValueResult
	setResults []vehicle.SetValueResult
}

func (c *recordingCallback) OnPropertyEvent(values []vehicle.PropertyValue) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches = append(c.batches, vehicle.CloneValues(values))
	return nil
}

func (c *recordingCallback) OnPropertySet(value vehicle.PropertyValue) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets = append(c.sets, value)
	return nil
}

func (c *recordingCallback) OnPropertySetError(code vehicle.StatusCode, propID, areaID int32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setErrors = append(c.setErrors, vehicle.PropError{PropID: propID, AreaID: areaID, ErrorCode: code})
	return nil
}

func (c *recordingCallback) OnGetValues(results []vehicle.GetValueResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.getResults = append(c.getResults, results...)
	return nil
}

func (c *recordingCallback) OnSetValues(results []vehicle.SetValueResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setResults = append(c.setResults, results...)
	return nil
}

func (c *recordingCallback) values() []vehicle.PropertyValue {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []vehicle.PropertyValue
	for _, b := range c.batches {
		out = append(out, b...)
	}
	return out
}

func (c *recordingCallback) batchCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.batches)
}

func (c *recordingCallback) gets() []vehicle.GetValueResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]vehicle.GetValueResult(nil), c.getResults...)
}

func (c *recordingCallback) setsResults() []vehicle.SetValueResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]vehicle.SetValueResult(nil), c.setResults...)
}

func (c *recordingCallback) propertySets() []vehicle.PropertyValue {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]vehicle.PropertyValue(nil), c.sets...)
}

func (c *recordingCallback) propErrors() []vehicle.PropError {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]vehicle.PropError(nil), c.setErrors...)
}

func testManagerConfig() Config {
	return Config{
		BatchWindow:    5 * time.Millisecond,
		RequestTimeout: time.Second,
	}
}

func newTestManager(t *testing.T, hw Hardware, cfg Config) *Manager {
	t.Helper()
	m, err := NewManager(hw, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func registerClient(t *testing.T, m *Manager) (ClientID, *recordingCallback) {
	t.Helper()
	cb := &recordingCallback{}
	id, err := m.RegisterClient(cb)
	require.NoError(t, err)
	return id, cb
}

func requireStatus(t *testing.T, want vehicle.StatusCode, err error) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, want, vehicle.StatusOf(err), "error: %v", err)
}
