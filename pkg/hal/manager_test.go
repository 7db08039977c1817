package hal

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/openvhal/vhal-go/pkg/vehicle"
)

func TestSubscribeValidation(t *testing.T) {
	tests := []struct {
		name string
		opts vehicle.SubscribeOptions
	}{
		{"unknown property", vehicle.SubscribeOptions{PropID: 0x11400999, Flags: vehicle.FlagHalEvent}},
		{"undefined flags", vehicle.SubscribeOptions{PropID: vehicle.PropGearSelection}},
		{"unknown flags", vehicle.SubscribeOptions{PropID: vehicle.PropGearSelection, Flags: 0x8}},
		{"static property", vehicle.SubscribeOptions{PropID: vehicle.PropInfoMake, Flags: vehicle.FlagHalEvent}},
		{"write only with hal events", vehicle.SubscribeOptions{PropID: vehicle.PropApPowerStateReport, Flags: vehicle.FlagHalEvent}},
		{"read only with set calls", vehicle.SubscribeOptions{PropID: vehicle.PropGearSelection, Flags: vehicle.FlagSetCall}},
		{"unsupported area", vehicle.SubscribeOptions{PropID: vehicle.PropHvacTemperatureSet, AreaMask: 0x2, Flags: vehicle.FlagHalEvent}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hw := newStubHardware()
			m := newTestManager(t, hw, testManagerConfig())
			id, _ := registerClient(t, m)

			err := m.Subscribe(id, []vehicle.SubscribeOptions{tt.opts})
			requireStatus(t, vehicle.StatusInvalidArg, err)
			assert.Empty(t, m.Subscriptions(id))
			hw.AssertNotCalled(t, "Subscribe", mock.Anything)
		})
	}
}

func TestSubscribeIsAllOrNothing(t *testing.T) {
	hw := newStubHardware()
	m := newTestManager(t, hw, testManagerConfig())
	id, _ := registerClient(t, m)

	err := m.Subscribe(id, []vehicle.SubscribeOptions{
		{PropID: vehicle.PropGearSelection, Flags: vehicle.FlagHalEvent},
		{PropID: vehicle.PropInfoMake, Flags: vehicle.FlagHalEvent},
	})
	requireStatus(t, vehicle.StatusInvalidArg, err)
	assert.Empty(t, m.Subscriptions(id))
	assert.Empty(t, m.HardwareSubscriptions())
}

func TestSubscribeWriteOnlyWithSetCall(t *testing.T) {
	hw := newStubHardware()
	m := newTestManager(t, hw, testManagerConfig())
	id, _ := registerClient(t, m)

	err := m.Subscribe(id, []vehicle.SubscribeOptions{{PropID: vehicle.PropApPowerStateReport, Flags: vehicle.FlagSetCall}})
	require.NoError(t, err)

	assert.Len(t, m.Subscriptions(id), 1)
	assert.Empty(t, m.HardwareSubscriptions())
	hw.AssertNotCalled(t, "Subscribe", mock.Anything)
}

func TestSubscribeClampsSampleRate(t *testing.T) {
	hw := newStubHardware()
	clamped := vehicle.SubscribeOptions{PropID: vehicle.PropPerfVehicleSpeed, SampleRateHz: 10, Flags: vehicle.FlagHalEvent}
	hw.On("Subscribe", clamped).Return(nil).Once()

	m := newTestManager(t, hw, testManagerConfig())
	a, _ := registerClient(t, m)
	b, _ := registerClient(t, m)

	require.NoError(t, m.Subscribe(a, []vehicle.SubscribeOptions{{PropID: vehicle.PropPerfVehicleSpeed, SampleRateHz: 100, Flags: vehicle.FlagHalEvent}}))
	// Clamped up to 1Hz, which is below the merged 10Hz, so the hardware
	// is not reprogrammed.
	require.NoError(t, m.Subscribe(b, []vehicle.SubscribeOptions{{PropID: vehicle.PropPerfVehicleSpeed, SampleRateHz: 0.1, Flags: vehicle.FlagHalEvent}}))

	assert.Equal(t, []vehicle.SubscribeOptions{{PropID: vehicle.PropPerfVehicleSpeed, SampleRateHz: 1, Flags: vehicle.FlagHalEvent}}, m.Subscriptions(b))
	hw.AssertNumberOfCalls(t, "Subscribe", 1)
	hw.AssertExpectations(t)
}

func TestSubscribeOnChangeForcesZeroRate(t *testing.T) {
	hw := newStubHardware()
	want := vehicle.SubscribeOptions{PropID: vehicle.PropGearSelection, Flags: vehicle.FlagHalEvent}
	hw.On("Subscribe", want).Return(nil).Once()

	m := newTestManager(t, hw, testManagerConfig())
	id, _ := registerClient(t, m)

	require.NoError(t, m.Subscribe(id, []vehicle.SubscribeOptions{{PropID: vehicle.PropGearSelection, SampleRateHz: 5, Flags: vehicle.FlagHalEvent}}))
	hw.AssertExpectations(t)
}

func TestSubscribeHardwareFailure(t *testing.T) {
	hw := newStubHardware()
	hw.On("Subscribe", mock.Anything).Return(errors.New("bus down"))

	m := newTestManager(t, hw, testManagerConfig())
	id, _ := registerClient(t, m)

	err := m.Subscribe(id, []vehicle.SubscribeOptions{{PropID: vehicle.PropGearSelection, Flags: vehicle.FlagHalEvent}})
	requireStatus(t, vehicle.StatusInternalError, err)
}

func TestUnsubscribeReleasesHardwareAfterLastClient(t *testing.T) {
	hw := newStubHardware()
	hw.On("Subscribe", mock.Anything).Return(nil)
	hw.On("Unsubscribe", vehicle.PropGearSelection).Return(nil).Once()

	m := newTestManager(t, hw, testManagerConfig())
	a, _ := registerClient(t, m)
	b, _ := registerClient(t, m)
	opts := []vehicle.SubscribeOptions{{PropID: vehicle.PropGearSelection, Flags: vehicle.FlagHalEvent}}
	require.NoError(t, m.Subscribe(a, opts))
	require.NoError(t, m.Subscribe(b, opts))

	require.NoError(t, m.Unsubscribe(a, vehicle.PropGearSelection))
	hw.AssertNotCalled(t, "Unsubscribe", mock.Anything)
	assert.Len(t, m.HardwareSubscriptions(), 1)

	require.NoError(t, m.Unsubscribe(b, vehicle.PropGearSelection))
	hw.AssertExpectations(t)
	assert.Empty(t, m.HardwareSubscriptions())

	requireStatus(t, vehicle.StatusNotFound, m.Unsubscribe(b, vehicle.PropGearSelection))
}

func TestEventsAreBatchedPerClient(t *testing.T) {
	hw := newStubHardware()
	hw.On("Subscribe", mock.Anything).Return(nil)

	cfg := testManagerConfig()
	cfg.BatchWindow = 50 * time.Millisecond
	m := newTestManager(t, hw, cfg)
	gearClient, gearCB := registerClient(t, m)
	hvacClient, hvacCB := registerClient(t, m)

	require.NoError(t, m.Subscribe(gearClient, []vehicle.SubscribeOptions{{PropID: vehicle.PropGearSelection, Flags: vehicle.FlagHalEvent}}))
	require.NoError(t, m.Subscribe(hvacClient, []vehicle.SubscribeOptions{{PropID: vehicle.PropHvacTemperatureSet, AreaMask: 0x4, Flags: vehicle.FlagHalEvent}}))

	gear1 := int32Value(vehicle.PropGearSelection, 1)
	hvacLeft := floatValue(vehicle.PropHvacTemperatureSet, 1, 20)
	hvacRight := floatValue(vehicle.PropHvacTemperatureSet, 4, 23)
	gear2 := int32Value(vehicle.PropGearSelection, 2)
	for _, v := range []vehicle.PropertyValue{gear1, hvacLeft, hvacRight, gear2} {
		m.OnHalEventValue(v)
	}

	require.Eventually(t, func() bool { return len(gearCB.values()) == 2 && len(hvacCB.values()) == 1 },
		time.Second, 5*time.Millisecond)

	if diff := cmp.Diff([]vehicle.PropertyValue{gear1, gear2}, gearCB.values()); diff != "" {
		t.Errorf("gear client values mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]vehicle.PropertyValue{hvacRight}, hvacCB.values()); diff != "" {
		t.Errorf("hvac client values mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 1, gearCB.batchCount())
}

func TestEventsReleasedToPool(t *testing.T) {
	hw := newStubHardware()
	hw.On("Subscribe", mock.Anything).Return(nil)
	m := newTestManager(t, hw, testManagerConfig())
	id, cb := registerClient(t, m)
	require.NoError(t, m.Subscribe(id, []vehicle.SubscribeOptions{{PropID: vehicle.PropGearSelection, Flags: vehicle.FlagHalEvent}}))

	m.OnHalEventValue(int32Value(vehicle.PropGearSelection, 3))
	require.Eventually(t, func() bool { return len(cb.values()) == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return m.PoolStats().Recycled == 1 }, time.Second, 5*time.Millisecond)
}

func TestGetSetChecks(t *testing.T) {
	hw := newStubHardware()
	m := newTestManager(t, hw, testManagerConfig())

	_, err := m.Get(0x11400999, 0)
	requireStatus(t, vehicle.StatusInvalidArg, err)

	_, err = m.Get(vehicle.PropApPowerStateReport, 0)
	requireStatus(t, vehicle.StatusAccessDenied, err)

	_, err = m.Get(vehicle.PropHvacTemperatureSet, 2)
	requireStatus(t, vehicle.StatusInvalidArg, err)

	requireStatus(t, vehicle.StatusAccessDenied, m.Set(int32Value(vehicle.PropGearSelection, 1)))
	requireStatus(t, vehicle.StatusInvalidArg, m.Set(floatValue(vehicle.PropHvacTemperatureSet, 1, 40)))
	requireStatus(t, vehicle.StatusInvalidArg, m.Set(vehicle.PropertyValue{Prop: vehicle.PropHvacTemperatureSet, AreaID: 1}))

	require.NoError(t, m.Set(floatValue(vehicle.PropHvacTemperatureSet, 1, 19.5)))
	v, err := m.Get(vehicle.PropHvacTemperatureSet, 1)
	require.NoError(t, err)
	assert.Equal(t, []float32{19.5}, v.Value.FloatValues)

	v, err = m.Get(vehicle.PropGearSelection, 0)
	require.NoError(t, err)
	assert.Equal(t, []int32{4}, v.Value.Int32Values)
}

func TestSetKeepsHardwareStatus(t *testing.T) {
	hw := newStubHardware()
	m := newTestManager(t, hw, testManagerConfig())

	hw.setErr = vehicle.Errorf(vehicle.StatusTryAgain, "busy")
	requireStatus(t, vehicle.StatusTryAgain, m.Set(floatValue(vehicle.PropHvacTemperatureSet, 1, 20)))

	hw.setErr = errors.New("wire cut")
	requireStatus(t, vehicle.StatusInternalError, m.Set(floatValue(vehicle.PropHvacTemperatureSet, 1, 20)))
}

func TestSetNotifiesSetCallSubscribers(t *testing.T) {
	hw := newStubHardware()
	m := newTestManager(t, hw, testManagerConfig())
	watcher, watcherCB := registerClient(t, m)
	_, writerCB := registerClient(t, m)

	require.NoError(t, m.Subscribe(watcher, []vehicle.SubscribeOptions{{PropID: vehicle.PropHvacTemperatureSet, AreaMask: 0x1, Flags: vehicle.FlagSetCall}}))

	require.NoError(t, m.Set(floatValue(vehicle.PropHvacTemperatureSet, 1, 20)))
	require.NoError(t, m.Set(floatValue(vehicle.PropHvacTemperatureSet, 4, 20)))

	assert.Equal(t, []vehicle.PropertyValue{floatValue(vehicle.PropHvacTemperatureSet, 1, 20)}, watcherCB.propertySets())
	assert.Empty(t, writerCB.propertySets())
}

func TestOnHalErrorNotifiesSubscribers(t *testing.T) {
	hw := newStubHardware()
	hw.On("Subscribe", mock.Anything).Return(nil)
	m := newTestManager(t, hw, testManagerConfig())
	subscribed, subscribedCB := registerClient(t, m)
	_, otherCB := registerClient(t, m)

	require.NoError(t, m.Subscribe(subscribed, []vehicle.SubscribeOptions{{PropID: vehicle.PropHvacTemperatureSet, Flags: vehicle.FlagHalEvent}}))

	hw.sink.OnHalError(vehicle.StatusNotAvailable, vehicle.PropHvacTemperatureSet, 4)

	assert.Equal(t, []vehicle.PropError{{PropID: vehicle.PropHvacTemperatureSet, AreaID: 4, ErrorCode: vehicle.StatusNotAvailable}}, subscribedCB.propErrors())
	assert.Empty(t, otherCB.propErrors())
}

func TestGetPropConfigs(t *testing.T) {
	m := newTestManager(t, newStubHardware(), testManagerConfig())

	all := m.GetAllPropConfigs()
	require.Len(t, all, len(testConfigs()))
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].Prop, all[i].Prop)
	}

	configs, err := m.GetPropConfigs([]int32{vehicle.PropHvacTemperatureSet, vehicle.PropGearSelection})
	require.NoError(t, err)
	assert.Equal(t, []vehicle.PropConfig{hvacConfig, gearConfig}, configs)

	_, err = m.GetPropConfigs([]int32{vehicle.PropGearSelection, 0x11400999})
	requireStatus(t, vehicle.StatusInvalidArg, err)
}

func TestHeartbeat(t *testing.T) {
	hw := newStubHardware()
	hw.On("Subscribe", mock.Anything).Return(nil)
	cfg := testManagerConfig()
	cfg.HeartbeatInterval = 10 * time.Millisecond
	m := newTestManager(t, hw, cfg)
	id, cb := registerClient(t, m)
	require.NoError(t, m.Subscribe(id, []vehicle.SubscribeOptions{{PropID: vehicle.PropVhalHeartbeat, Flags: vehicle.FlagHalEvent}}))

	require.Eventually(t, func() bool { return len(cb.values()) >= 2 }, time.Second, 5*time.Millisecond)
	values := cb.values()
	assert.Equal(t, vehicle.PropVhalHeartbeat, values[0].Prop)
	require.Len(t, values[0].Value.Int64Values, 1)
	assert.LessOrEqual(t, values[0].Value.Int64Values[0], values[1].Value.Int64Values[0])
}

func TestCloseRejectsOperations(t *testing.T) {
	m, err := NewManager(newStubHardware(), testManagerConfig())
	require.NoError(t, err)
	id, _ := registerClient(t, m)

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	_, err = m.Get(vehicle.PropGearSelection, 0)
	requireStatus(t, vehicle.StatusIllegalState, err)
	requireStatus(t, vehicle.StatusIllegalState, m.Subscribe(id, nil))
	_, err = m.RegisterClient(&recordingCallback{})
	requireStatus(t, vehicle.StatusIllegalState, err)

	// Events after close are dropped and released.
	m.OnHalEventValue(int32Value(vehicle.PropGearSelection, 1))
	assert.Equal(t, uint64(1), m.PoolStats().Recycled)
}

func TestUnregisterClient(t *testing.T) {
	hw := newStubHardware()
	hw.On("Subscribe", mock.Anything).Return(nil)
	hw.On("Unsubscribe", vehicle.PropGearSelection).Return(nil).Once()
	m := newTestManager(t, hw, testManagerConfig())
	id, _ := registerClient(t, m)
	require.NoError(t, m.Subscribe(id, []vehicle.SubscribeOptions{{PropID: vehicle.PropGearSelection, Flags: vehicle.FlagHalEvent}}))
	require.Equal(t, 1, m.ClientCount())

	require.NoError(t, m.UnregisterClient(id))
	assert.Equal(t, 0, m.ClientCount())
	assert.Empty(t, m.HardwareSubscriptions())
	hw.AssertExpectations(t)

	requireStatus(t, vehicle.StatusNotFound, m.UnregisterClient(id))
	requireStatus(t, vehicle.StatusInvalidArg, m.Subscribe(id, nil))
}

func TestUnregisterWaitsForSubscribe(t *testing.T) {
	hw := newStubHardware()
	entered := make(chan struct{})
	proceed := make(chan struct{})
	var mu sync.Mutex
	var calls []string
	record := func(call string) {
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, call)
	}
	hw.On("Subscribe", mock.Anything).Run(func(mock.Arguments) {
		close(entered)
		<-proceed
		record("subscribe")
	}).Return(nil).Once()
	hw.On("Unsubscribe", vehicle.PropGearSelection).Run(func(mock.Arguments) {
		record("unsubscribe")
	}).Return(nil).Once()

	m := newTestManager(t, hw, testManagerConfig())
	id, _ := registerClient(t, m)

	subscribed := make(chan error, 1)
	go func() {
		subscribed <- m.Subscribe(id, []vehicle.SubscribeOptions{{PropID: vehicle.PropGearSelection, Flags: vehicle.FlagHalEvent}})
	}()
	<-entered

	unregistered := make(chan error, 1)
	go func() { unregistered <- m.UnregisterClient(id) }()

	select {
	case err := <-unregistered:
		t.Fatalf("UnregisterClient returned while the hardware subscribe was in flight: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	close(proceed)
	require.NoError(t, <-subscribed)
	require.NoError(t, <-unregistered)

	mu.Lock()
	assert.Equal(t, []string{"subscribe", "unsubscribe"}, calls)
	mu.Unlock()
	assert.Equal(t, 0, m.ClientCount())
	assert.Empty(t, m.Subscriptions(id))
	assert.Empty(t, m.HardwareSubscriptions())
	hw.AssertExpectations(t)
}

func TestDump(t *testing.T) {
	m := newTestManager(t, newStubHardware(), testManagerConfig())

	dump := func(args ...string) string {
		var buf bytes.Buffer
		m.Dump(&buf, args)
		return buf.String()
	}

	out := dump()
	assert.Contains(t, out, "dumping 6 properties\n")
	assert.Contains(t, out, "Could not get property")
	assert.Regexp(t, `\d/0: \{prop: HVAC_TEMPERATURE_SET`, out)

	assert.Contains(t, dump("--help"), "Usage:")
	assert.Contains(t, dump("--list"), "listing 6 properties\n")
	assert.Contains(t, dump("--bogus"), "Invalid option: --bogus\n")

	assert.Equal(t, "Invalid number of arguments: required at least 2, got 1\n", dump("--get"))
	assert.Equal(t, "non-integer argument at index 1: x\n", dump("--get", "x"))
	assert.Equal(t, "No property 1\n", dump("--get", "1"))
	assert.Contains(t, dump("--get", "gear_selection"), "{prop: GEAR_SELECTION")

	assert.Equal(t, "must pass even number of arguments (passed 5)\n", dump("--set", "HVAC_TEMPERATURE_SET", "f", "20", "a"))
	assert.Equal(t, "invalid (q) type at index 2\n", dump("--set", "HVAC_TEMPERATURE_SET", "q", "1"))
	assert.Contains(t, dump("--set", "HVAC_TEMPERATURE_SET", "a", "1", "a", "4"), "defining area value (4) again at index 4 (already defined at 2=1)")
	assert.Contains(t, dump("--set", "HVAC_TEMPERATURE_SET", "f", "20.5", "a", "4"), "Set property ")
	assert.Contains(t, dump("--set", "GEAR_SELECTION", "i", "1"), "Failed to set property ")

	v, err := m.Get(vehicle.PropHvacTemperatureSet, 4)
	require.NoError(t, err)
	assert.Equal(t, []float32{20.5}, v.Value.FloatValues)
}
