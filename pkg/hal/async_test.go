package hal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openvhal/vhal-go/pkg/vehicle"
)

func getRequest(id int64, prop, area int32) vehicle.GetValueRequest {
	return vehicle.GetValueRequest{RequestID: id, Prop: vehicle.PropertyValue{Prop: prop, AreaID: area}}
}

func TestGetValuesWithSyncHardware(t *testing.T) {
	m := newTestManager(t, newStubHardware(), testManagerConfig())
	id, cb := registerClient(t, m)

	err := m.GetValues(id, []vehicle.GetValueRequest{
		getRequest(1, vehicle.PropGearSelection, 0),
		getRequest(2, vehicle.PropApPowerStateReport, 0),
		getRequest(3, vehicle.PropHvacTemperatureSet, 4),
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(cb.gets()) == 3 }, time.Second, 5*time.Millisecond)
	byID := make(map[int64]vehicle.GetValueResult)
	for _, r := range cb.gets() {
		byID[r.RequestID] = r
	}

	assert.Equal(t, vehicle.StatusAccessDenied, byID[2].Status)
	assert.Nil(t, byID[2].Prop)
	require.Equal(t, vehicle.StatusOK, byID[1].Status)
	assert.Equal(t, []int32{4}, byID[1].Prop.Value.Int32Values)
	require.Equal(t, vehicle.StatusOK, byID[3].Status)
	assert.Equal(t, []float32{22}, byID[3].Prop.Value.FloatValues)
	assert.Equal(t, 0, m.PendingRequests())
}

func TestGetValuesRejectsDuplicates(t *testing.T) {
	m := newTestManager(t, newStubHardware(), testManagerConfig())
	id, cb := registerClient(t, m)

	err := m.GetValues(id, []vehicle.GetValueRequest{
		getRequest(1, vehicle.PropGearSelection, 0),
		getRequest(1, vehicle.PropPerfVehicleSpeed, 0),
	})
	requireStatus(t, vehicle.StatusInvalidArg, err)

	err = m.GetValues(id, []vehicle.GetValueRequest{
		getRequest(1, vehicle.PropHvacTemperatureSet, 1),
		getRequest(2, vehicle.PropHvacTemperatureSet, 1),
	})
	requireStatus(t, vehicle.StatusInvalidArg, err)

	assert.Equal(t, 0, m.PendingRequests())
	assert.Empty(t, cb.gets())
}

func TestGetValuesTimeout(t *testing.T) {
	hw := &stalledHardware{stubHardware: newStubHardware()}
	cfg := testManagerConfig()
	cfg.RequestTimeout = 30 * time.Millisecond
	m := newTestManager(t, hw, cfg)
	id, cb := registerClient(t, m)

	require.NoError(t, m.GetValues(id, []vehicle.GetValueRequest{
		getRequest(7, vehicle.PropGearSelection, 0),
		getRequest(8, vehicle.PropPerfVehicleSpeed, 0),
	}))
	assert.Equal(t, 2, m.PendingRequests())

	// Pending IDs cannot be reused until they resolve.
	err := m.GetValues(id, []vehicle.GetValueRequest{getRequest(7, vehicle.PropInfoMake, 0)})
	requireStatus(t, vehicle.StatusInvalidArg, err)

	require.Eventually(t, func() bool { return len(cb.gets()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []vehicle.GetValueResult{
		{RequestID: 7, Status: vehicle.StatusTryAgain},
		{RequestID: 8, Status: vehicle.StatusTryAgain},
	}, cb.gets())

	// Late answers are dropped.
	hw.release()
	assert.Len(t, cb.gets(), 2)
}

func TestGetValuesFinishedBeforeTimeout(t *testing.T) {
	hw := &stalledHardware{stubHardware: newStubHardware()}
	m := newTestManager(t, hw, testManagerConfig())
	id, cb := registerClient(t, m)

	require.NoError(t, m.GetValues(id, []vehicle.GetValueRequest{getRequest(1, vehicle.PropGearSelection, 0)}))
	hw.release()

	require.Len(t, cb.gets(), 1)
	assert.Equal(t, vehicle.StatusOK, cb.gets()[0].Status)
	assert.Equal(t, 0, m.PendingRequests())
}

func TestSetValuesHardwareRejects(t *testing.T) {
	hw := &stalledHardware{stubHardware: newStubHardware()}
	m := newTestManager(t, hw, testManagerConfig())
	id, _ := registerClient(t, m)

	err := m.SetValues(id, []vehicle.SetValueRequest{{RequestID: 1, Value: floatValue(vehicle.PropHvacTemperatureSet, 1, 20)}})
	requireStatus(t, vehicle.StatusTryAgain, err)
	assert.Equal(t, 0, m.PendingRequests())
}

func TestSetValuesWithSyncHardware(t *testing.T) {
	hw := newStubHardware()
	m := newTestManager(t, hw, testManagerConfig())
	id, cb := registerClient(t, m)
	watcher, watcherCB := registerClient(t, m)
	require.NoError(t, m.Subscribe(watcher, []vehicle.SubscribeOptions{{PropID: vehicle.PropHvacTemperatureSet, Flags: vehicle.FlagSetCall}}))

	err := m.SetValues(id, []vehicle.SetValueRequest{
		{RequestID: 1, Value: floatValue(vehicle.PropHvacTemperatureSet, 1, 18)},
		{RequestID: 2, Value: floatValue(vehicle.PropHvacTemperatureSet, 4, 99)},
		{RequestID: 3, Value: int32Value(vehicle.PropGearSelection, 1)},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(cb.setsResults()) == 3 }, time.Second, 5*time.Millisecond)
	byID := make(map[int64]vehicle.StatusCode)
	for _, r := range cb.setsResults() {
		byID[r.RequestID] = r.Status
	}
	assert.Equal(t, map[int64]vehicle.StatusCode{
		1: vehicle.StatusOK,
		2: vehicle.StatusInvalidArg,
		3: vehicle.StatusAccessDenied,
	}, byID)
	assert.Equal(t, []vehicle.PropertyValue{floatValue(vehicle.PropHvacTemperatureSet, 1, 18)}, watcherCB.propertySets())

	v, err := m.Get(vehicle.PropHvacTemperatureSet, 1)
	require.NoError(t, err)
	assert.Equal(t, []float32{18}, v.Value.FloatValues)
}

func TestUnregisterDropsPendingResults(t *testing.T) {
	hw := &stalledHardware{stubHardware: newStubHardware()}
	m := newTestManager(t, hw, testManagerConfig())
	id, cb := registerClient(t, m)

	require.NoError(t, m.GetValues(id, []vehicle.GetValueRequest{getRequest(1, vehicle.PropGearSelection, 0)}))
	require.NoError(t, m.UnregisterClient(id))

	assert.Equal(t, 0, m.PendingRequests())
	hw.release()
	assert.Empty(t, cb.gets())
}

func TestCloseAnswersPendingRequests(t *testing.T) {
	hw := &stalledHardware{stubHardware: newStubHardware()}
	m, err := NewManager(hw, testManagerConfig())
	require.NoError(t, err)
	id, cb := registerClient(t, m)

	require.NoError(t, m.GetValues(id, []vehicle.GetValueRequest{getRequest(5, vehicle.PropGearSelection, 0)}))
	require.NoError(t, m.Close())

	assert.Equal(t, []vehicle.GetValueResult{{RequestID: 5, Status: vehicle.StatusTryAgain}}, cb.gets())
}
