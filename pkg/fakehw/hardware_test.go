package fakehw

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openvhal/vhal-go/pkg/hal"
	"github.com/openvhal/vhal-go/pkg/propconfig"
	"github.com/openvhal/vhal-go/pkg/vehicle"
)

type collector struct {
	mu         sync.Mutex
	values     []vehicle.PropertyValue
	setErrors  []vehicle.PropError
	getResults []vehicle.GetValueResult
}

func (c *collector) callback() *vehicle.CallbackFuncs {
	return &vehicle.CallbackFuncs{
		PropertyEvent: func(values []vehicle.PropertyValue) error {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.values = append(c.values, vehicle.CloneValues(values)...)
			return nil
		},
		PropertySetError: func(code vehicle.StatusCode, propID, areaID int32) error {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.setErrors = append(c.setErrors, vehicle.PropError{PropID: propID, AreaID: areaID, ErrorCode: code})
			return nil
		},
		GetValues: func(results []vehicle.GetValueResult) error {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.getResults = append(c.getResults, results...)
			return nil
		},
	}
}

func (c *collector) count(prop int32) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.values {
		if v.Prop == prop {
			n++
		}
	}
	return n
}

func (c *collector) last(prop int32) (vehicle.PropertyValue, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.values) - 1; i >= 0; i-- {
		if c.values[i].Prop == prop {
			return c.values[i], true
		}
	}
	return vehicle.PropertyValue{}, false
}

func newHAL(t *testing.T, cfg Config) (*Hardware, *hal.Manager) {
	t.Helper()
	hw := New(propconfig.Default(), cfg)
	mcfg := hal.DefaultConfig()
	mcfg.BatchWindow = 5 * time.Millisecond
	mcfg.HeartbeatInterval = 0
	m, err := hal.NewManager(hw, mcfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = m.Close()
		_ = hw.Close()
	})
	return hw, m
}

func subscribe(t *testing.T, m *hal.Manager, opts ...vehicle.SubscribeOptions) *collector {
	t.Helper()
	c := &collector{}
	id, err := m.RegisterClient(c.callback())
	require.NoError(t, err)
	require.NoError(t, m.Subscribe(id, opts))
	return c
}

func TestSeededValues(t *testing.T) {
	hw := New(propconfig.Default(), Config{})

	v, err := hw.Get(vehicle.PropertyValue{Prop: vehicle.PropHvacTemperatureSet, AreaID: 4})
	require.NoError(t, err)
	assert.Equal(t, []float32{22}, v.Value.FloatValues)
	assert.Equal(t, int32(4), v.AreaID)

	v, err = hw.Get(vehicle.PropertyValue{Prop: vehicle.PropInfoMake, AreaID: 7})
	require.NoError(t, err)
	assert.Equal(t, "OpenVHAL", v.Value.StringValue)
	assert.Equal(t, int32(0), v.AreaID)

	_, err = hw.Get(vehicle.PropertyValue{Prop: vehicle.PropApPowerStateReport})
	assert.Equal(t, vehicle.StatusNotAvailable, vehicle.StatusOf(err))

	_, err = hw.Get(vehicle.PropertyValue{Prop: 0x11400999})
	assert.Equal(t, vehicle.StatusInvalidArg, vehicle.StatusOf(err))
}

func TestSetEmitsOnChange(t *testing.T) {
	_, m := newHAL(t, Config{})
	c := subscribe(t, m, vehicle.SubscribeOptions{PropID: vehicle.PropHvacTemperatureSet, Flags: vehicle.FlagHalEvent})

	set := vehicle.PropertyValue{Prop: vehicle.PropHvacTemperatureSet, AreaID: 1, Value: vehicle.RawValue{FloatValues: []float32{24}}}
	require.NoError(t, m.Set(set))
	require.Eventually(t, func() bool { return c.count(vehicle.PropHvacTemperatureSet) == 1 }, time.Second, 5*time.Millisecond)

	// Same value again: no event.
	require.NoError(t, m.Set(set))
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, c.count(vehicle.PropHvacTemperatureSet))

	v, ok := c.last(vehicle.PropHvacTemperatureSet)
	require.True(t, ok)
	assert.Equal(t, []float32{24}, v.Value.FloatValues)
	assert.NotZero(t, v.Timestamp)
}

func TestContinuousGenerator(t *testing.T) {
	hw, m := newHAL(t, Config{})
	c := &collector{}
	id, err := m.RegisterClient(c.callback())
	require.NoError(t, err)
	require.NoError(t, m.Subscribe(id, []vehicle.SubscribeOptions{{PropID: vehicle.PropPerfVehicleSpeed, SampleRateHz: 10, Flags: vehicle.FlagHalEvent}}))
	assert.Equal(t, 1, hw.Generators())

	require.Eventually(t, func() bool { return c.count(vehicle.PropPerfVehicleSpeed) >= 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, m.Unsubscribe(id, vehicle.PropPerfVehicleSpeed))
	assert.Equal(t, 0, hw.Generators())
}

func TestInjectSetError(t *testing.T) {
	hw, m := newHAL(t, Config{})
	c := subscribe(t, m, vehicle.SubscribeOptions{PropID: vehicle.PropHvacPowerOn, Flags: vehicle.FlagHalEvent})

	hw.InjectSetError(vehicle.PropHvacPowerOn, vehicle.StatusNotAvailable)
	require.NoError(t, m.Set(vehicle.PropertyValue{Prop: vehicle.PropHvacPowerOn, AreaID: 4, Value: vehicle.RawValue{Int32Values: []int32{0}}}))

	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return len(c.setErrors) == 1
	}, time.Second, 5*time.Millisecond)
	c.mu.Lock()
	assert.Equal(t, vehicle.PropError{PropID: vehicle.PropHvacPowerOn, AreaID: 4, ErrorCode: vehicle.StatusNotAvailable}, c.setErrors[0])
	c.mu.Unlock()

	v, err := m.Get(vehicle.PropHvacPowerOn, 4)
	require.NoError(t, err)
	assert.Equal(t, []int32{1}, v.Value.Int32Values)

	hw.InjectSetError(vehicle.PropHvacPowerOn, vehicle.StatusOK)
	require.NoError(t, m.Set(vehicle.PropertyValue{Prop: vehicle.PropHvacPowerOn, AreaID: 4, Value: vehicle.RawValue{Int32Values: []int32{0}}}))
	v, err = m.Get(vehicle.PropHvacPowerOn, 4)
	require.NoError(t, err)
	assert.Equal(t, []int32{0}, v.Value.Int32Values)
}

func TestInjectEvent(t *testing.T) {
	hw, m := newHAL(t, Config{})
	c := subscribe(t, m, vehicle.SubscribeOptions{PropID: vehicle.PropGearSelection, Flags: vehicle.FlagHalEvent})

	gear := vehicle.PropertyValue{Prop: vehicle.PropGearSelection, Value: vehicle.RawValue{Int32Values: []int32{4}}}
	require.NoError(t, hw.InjectEvent(gear))
	require.NoError(t, hw.InjectEvent(gear))

	require.Eventually(t, func() bool { return c.count(vehicle.PropGearSelection) == 2 }, time.Second, 5*time.Millisecond)
	assert.Error(t, hw.InjectEvent(vehicle.PropertyValue{Prop: 0x11400999}))
}

func TestAsyncGetValues(t *testing.T) {
	_, m := newHAL(t, Config{AsyncDelay: 10 * time.Millisecond})
	c := &collector{}
	id, err := m.RegisterClient(c.callback())
	require.NoError(t, err)

	require.NoError(t, m.GetValues(id, []vehicle.GetValueRequest{
		{RequestID: 1, Prop: vehicle.PropertyValue{Prop: vehicle.PropEngineRPM}},
		{RequestID: 2, Prop: vehicle.PropertyValue{Prop: vehicle.PropApPowerStateReport}},
	}))

	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return len(c.getResults) == 2
	}, time.Second, 5*time.Millisecond)

	c.mu.Lock()
	defer c.mu.Unlock()
	// The access failure is answered before the delayed hardware result.
	assert.Equal(t, vehicle.GetValueResult{RequestID: 2, Status: vehicle.StatusAccessDenied}, c.getResults[0])
	assert.Equal(t, int64(1), c.getResults[1].RequestID)
	require.NotNil(t, c.getResults[1].Prop)
	assert.Equal(t, []float32{800}, c.getResults[1].Prop.Value.FloatValues)
}

func TestHealthSkipsHeartbeat(t *testing.T) {
	hw := New(propconfig.Default(), Config{})
	t.Cleanup(func() { _ = hw.Close() })
	hw.SetHealth(assert.AnError)

	mcfg := hal.DefaultConfig()
	mcfg.BatchWindow = 5 * time.Millisecond
	mcfg.HeartbeatInterval = 10 * time.Millisecond
	m, err := hal.NewManager(hw, mcfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	c := subscribe(t, m, vehicle.SubscribeOptions{PropID: vehicle.PropVhalHeartbeat, Flags: vehicle.FlagHalEvent})

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, c.count(vehicle.PropVhalHeartbeat))

	hw.SetHealth(nil)
	require.Eventually(t, func() bool { return c.count(vehicle.PropVhalHeartbeat) > 0 }, time.Second, 5*time.Millisecond)
}

func TestSnapshotRestore(t *testing.T) {
	hw := New(propconfig.Default(), Config{})
	snap := hw.Snapshot()
	require.NotEmpty(t, snap)
	for i := 1; i < len(snap); i++ {
		assert.LessOrEqual(t, snap[i-1].Prop, snap[i].Prop)
	}

	other := New(propconfig.Default(), Config{})
	n := other.Restore([]vehicle.PropertyValue{
		{Prop: vehicle.PropHvacTemperatureSet, AreaID: 1, Value: vehicle.RawValue{FloatValues: []float32{17}}},
		{Prop: vehicle.PropHvacTemperatureSet, AreaID: 2, Value: vehicle.RawValue{FloatValues: []float32{17}}},
		{Prop: vehicle.PropInfoMake, Value: vehicle.RawValue{StringValue: "Other"}},
		{Prop: 0x11400999},
	})
	assert.Equal(t, 1, n)

	v, err := other.Get(vehicle.PropertyValue{Prop: vehicle.PropHvacTemperatureSet, AreaID: 1})
	require.NoError(t, err)
	assert.Equal(t, []float32{17}, v.Value.FloatValues)
}

func TestDumpCommands(t *testing.T) {
	hw, m := newHAL(t, Config{})

	var buf bytes.Buffer
	m.Dump(&buf, []string{"--inject-error", "HVAC_POWER_ON", "3"})
	assert.Equal(t, "Sets of HVAC_POWER_ON now report NOT_AVAILABLE\n", buf.String())

	buf.Reset()
	m.Dump(&buf, []string{"--generators"})
	assert.Equal(t, "0 generators\n", buf.String())

	buf.Reset()
	m.Dump(&buf, []string{"--help"})
	assert.Contains(t, buf.String(), "Fake hardware:")
	assert.Contains(t, buf.String(), "--list")

	buf.Reset()
	m.Dump(&buf, nil)
	assert.Contains(t, buf.String(), "fake hardware: ")
	assert.Contains(t, buf.String(), "dumping 11 properties")

	hw.InjectSetError(vehicle.PropHvacPowerOn, vehicle.StatusOK)
}
