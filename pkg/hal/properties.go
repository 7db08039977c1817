package hal

import (
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/openvhal/vhal-go/pkg/log"
	"github.com/openvhal/vhal-go/pkg/vehicle"
)

// GetAllPropConfigs returns every property config ordered by property ID.
func (m *Manager) GetAllPropConfigs() []vehicle.PropConfig {
	configs := m.index.All()
	sort.Slice(configs, func(i, j int) bool { return configs[i].Prop < configs[j].Prop })
	return configs
}

// GetPropConfigs returns the configs for ids, in the order given. Any
// unknown id fails the whole call with INVALID_ARG.
func (m *Manager) GetPropConfigs(ids []int32) ([]vehicle.PropConfig, error) {
	configs := make([]vehicle.PropConfig, 0, len(ids))
	for _, id := range ids {
		cfg, ok := m.index.Get(id)
		if !ok {
			return nil, vehicle.Errorf(vehicle.StatusInvalidArg, "unknown property 0x%x", id)
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

// Get reads the current value of a property area.
func (m *Manager) Get(propID, areaID int32) (vehicle.PropertyValue, error) {
	if m.closed.Load() {
		return vehicle.PropertyValue{}, errClosed
	}
	if _, err := m.checkAccess(propID, areaID, vehicle.AccessRead); err != nil {
		return vehicle.PropertyValue{}, err
	}

	v, err := m.hw.Get(vehicle.PropertyValue{Prop: propID, AreaID: areaID})
	if err != nil {
		return vehicle.PropertyValue{}, hardwareError("get", err)
	}
	m.logProperty(log.PropertyKindGet, v)
	return v, nil
}

// Set writes a property value. Clients subscribed with SET_CALL are told
// about the value before the hardware sees it.
func (m *Manager) Set(value vehicle.PropertyValue) error {
	if m.closed.Load() {
		return errClosed
	}
	cfg, err := m.checkAccess(value.Prop, value.AreaID, vehicle.AccessWrite)
	if err != nil {
		return err
	}
	if err := checkValue(cfg, value); err != nil {
		return err
	}

	m.logProperty(log.PropertyKindSet, value)
	for _, c := range m.subs.GetSubscribedClients(value.Prop, value.AreaID, vehicle.FlagSetCall) {
		if err := c.Callback().OnPropertySet(value.Clone()); err != nil {
			m.logCallbackError(c.ID(), "OnPropertySet", err)
		}
	}

	if err := m.hw.Set(value); err != nil {
		return hardwareError("set", err)
	}
	return nil
}

// checkAccess resolves the config of propID and verifies areaID and the
// required access.
func (m *Manager) checkAccess(propID, areaID int32, need vehicle.Access) (vehicle.PropConfig, error) {
	cfg, ok := m.index.Get(propID)
	if !ok {
		return cfg, vehicle.Errorf(vehicle.StatusInvalidArg, "unknown property 0x%x", propID)
	}
	if _, ok := cfg.AreaConfig(areaID); !ok {
		return cfg, vehicle.Errorf(vehicle.StatusInvalidArg, "area 0x%x not supported by %s", areaID, vehicle.PropertyName(propID))
	}
	if cfg.Access&need != need {
		return cfg, vehicle.Errorf(vehicle.StatusAccessDenied, "%s is %s", vehicle.PropertyName(propID), cfg.Access)
	}
	return cfg, nil
}

// checkValue verifies that the payload has the shape of the property type
// and, for scalars with a configured range, that it is within range.
func checkValue(cfg vehicle.PropConfig, v vehicle.PropertyValue) error {
	t := vehicle.PropertyTypeOf(v.Prop)
	raw := v.Value
	var n int
	switch t {
	case vehicle.TypeBoolean, vehicle.TypeInt32, vehicle.TypeInt32Vec:
		n = len(raw.Int32Values)
	case vehicle.TypeInt64, vehicle.TypeInt64Vec:
		n = len(raw.Int64Values)
	case vehicle.TypeFloat, vehicle.TypeFloatVec:
		n = len(raw.FloatValues)
	case vehicle.TypeString, vehicle.TypeBytes, vehicle.TypeMixed:
		return nil
	default:
		return vehicle.Errorf(vehicle.StatusInvalidArg, "unsupported type %s", t)
	}
	if t.IsScalar() && n != 1 {
		return vehicle.Errorf(vehicle.StatusInvalidArg, "%s expects one %s value, got %d", vehicle.PropertyName(v.Prop), t, n)
	}
	if !t.IsScalar() {
		return nil
	}

	ac, _ := cfg.AreaConfig(v.AreaID)
	switch t {
	case vehicle.TypeInt32:
		if ac.MinInt32Value < ac.MaxInt32Value && (raw.Int32Values[0] < ac.MinInt32Value || raw.Int32Values[0] > ac.MaxInt32Value) {
			return vehicle.Errorf(vehicle.StatusInvalidArg, "%d out of range [%d, %d]", raw.Int32Values[0], ac.MinInt32Value, ac.MaxInt32Value)
		}
	case vehicle.TypeInt64:
		if ac.MinInt64Value < ac.MaxInt64Value && (raw.Int64Values[0] < ac.MinInt64Value || raw.Int64Values[0] > ac.MaxInt64Value) {
			return vehicle.Errorf(vehicle.StatusInvalidArg, "%d out of range [%d, %d]", raw.Int64Values[0], ac.MinInt64Value, ac.MaxInt64Value)
		}
	case vehicle.TypeFloat:
		if ac.MinFloatValue < ac.MaxFloatValue && (raw.FloatValues[0] < ac.MinFloatValue || raw.FloatValues[0] > ac.MaxFloatValue) {
			return vehicle.Errorf(vehicle.StatusInvalidArg, "%g out of range [%g, %g]", raw.FloatValues[0], ac.MinFloatValue, ac.MaxFloatValue)
		}
	}
	return nil
}

// hardwareError keeps the status of hardware errors that carry one and
// reports everything else as INTERNAL_ERROR.
func hardwareError(op string, err error) error {
	var se *vehicle.StatusError
	if errors.As(err, &se) {
		return err
	}
	return vehicle.Errorf(vehicle.StatusInternalError, "hardware %s: %v", op, err)
}

func (m *Manager) logProperty(kind log.PropertyKind, v vehicle.PropertyValue) {
	dir := log.DirectionIn
	if kind == log.PropertyKindGet {
		dir = log.DirectionOut
	}
	m.plog.Log(log.Event{
		Timestamp: time.Now(),
		Direction: dir,
		Layer:     log.LayerClient,
		Category:  log.CategoryProperty,
		Property:  log.NewPropertyEvent(kind, []vehicle.PropertyValue{v}),
	})
	m.logger.Debug("property "+kind.String(), slog.String("value", v.String()))
}
