package vehicle

import "fmt"

// PropertyType is the value type encoded in a property ID.
type PropertyType int32

// Property value types.
const (
	TypeString   PropertyType = 0x00100000
	TypeBoolean  PropertyType = 0x00200000
	TypeInt32    PropertyType = 0x00400000
	TypeInt32Vec PropertyType = 0x00410000
	TypeInt64    PropertyType = 0x00500000
	TypeInt64Vec PropertyType = 0x00510000
	TypeFloat    PropertyType = 0x00600000
	TypeFloatVec PropertyType = 0x00610000
	TypeBytes    PropertyType = 0x00700000
	TypeMixed    PropertyType = 0x00e00000

	TypeMask PropertyType = 0x00ff0000
)

// String returns the type name.
func (t PropertyType) String() string {
	switch t {
	case TypeString:
		return "STRING"
	case TypeBoolean:
		return "BOOLEAN"
	case TypeInt32:
		return "INT32"
	case TypeInt32Vec:
		return "INT32_VEC"
	case TypeInt64:
		return "INT64"
	case TypeInt64Vec:
		return "INT64_VEC"
	case TypeFloat:
		return "FLOAT"
	case TypeFloatVec:
		return "FLOAT_VEC"
	case TypeBytes:
		return "BYTES"
	case TypeMixed:
		return "MIXED"
	default:
		return "UNKNOWN"
	}
}

// IsScalar reports whether the type holds exactly one element.
func (t PropertyType) IsScalar() bool {
	switch t {
	case TypeBoolean, TypeInt32, TypeInt64, TypeFloat:
		return true
	}
	return false
}

// Area and group fields of a property ID.
const (
	AreaGlobal int32 = 0x01000000
	AreaWindow int32 = 0x03000000
	AreaMirror int32 = 0x04000000
	AreaSeat   int32 = 0x05000000
	AreaDoor   int32 = 0x06000000
	AreaWheel  int32 = 0x07000000
	AreaField  int32 = 0x0f000000

	GroupSystem int32 = 0x10000000
	GroupVendor int32 = 0x20000000
)

// PropertyTypeOf extracts the value type from a property ID.
func PropertyTypeOf(propID int32) PropertyType {
	return PropertyType(propID) & TypeMask
}

// IsGlobalProperty reports whether the property has a single global area.
func IsGlobalProperty(propID int32) bool {
	return propID&AreaField == AreaGlobal
}

// Well-known properties used by the default configuration and by the
// manager itself.
const (
	PropInfoFuelCapacity   int32 = 0x11600104
	PropPerfVehicleSpeed   int32 = 0x11600207
	PropEngineRPM          int32 = 0x11600305
	PropGearSelection      int32 = 0x11400400
	PropHvacTemperatureSet int32 = 0x15600503
	PropHvacPowerOn        int32 = 0x15200510
	PropApPowerStateReport int32 = 0x11410A01
	PropNightMode          int32 = 0x11200407
	PropInfoMake           int32 = 0x11100101
	PropVhalHeartbeat      int32 = 0x11500F3F
	PropVendorDebugCounter int32 = 0x21400F00
)

var propertyNames = map[int32]string{
	PropInfoFuelCapacity:   "INFO_FUEL_CAPACITY",
	PropPerfVehicleSpeed:   "PERF_VEHICLE_SPEED",
	PropEngineRPM:          "ENGINE_RPM",
	PropGearSelection:      "GEAR_SELECTION",
	PropHvacTemperatureSet: "HVAC_TEMPERATURE_SET",
	PropHvacPowerOn:        "HVAC_POWER_ON",
	PropApPowerStateReport: "AP_POWER_STATE_REPORT",
	PropNightMode:          "NIGHT_MODE",
	PropInfoMake:           "INFO_MAKE",
	PropVhalHeartbeat:      "VHAL_HEARTBEAT",
	PropVendorDebugCounter: "VENDOR_DEBUG_COUNTER",
}

// PropertyName returns a symbolic name for well-known properties and the
// hexadecimal ID otherwise.
func PropertyName(propID int32) string {
	if name, ok := propertyNames[propID]; ok {
		return name
	}
	return fmt.Sprintf("0x%08x", uint32(propID))
}

// PropertyByName resolves a well-known property name.
func PropertyByName(name string) (int32, bool) {
	for id, n := range propertyNames {
		if n == name {
			return id, true
		}
	}
	return 0, false
}
