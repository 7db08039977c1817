package vehicle

import (
	"fmt"
	"strings"
)

// PropertyStatus describes the availability of a property value.
type PropertyStatus uint8

const (
	StatusAvailable     PropertyStatus = 0
	StatusUnavailable   PropertyStatus = 1
	PropertyStatusError PropertyStatus = 2
)

// String returns the status name.
func (s PropertyStatus) String() string {
	switch s {
	case StatusAvailable:
		return "AVAILABLE"
	case StatusUnavailable:
		return "UNAVAILABLE"
	case PropertyStatusError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// RawValue holds the payload of a property value. Which fields are used
// depends on the property type; MIXED properties may use several.
type RawValue struct {
	Int32Values []int32   `cbor:"1,keyasint,omitempty" json:"int32,omitempty"`
	Int64Values []int64   `cbor:"2,keyasint,omitempty" json:"int64,omitempty"`
	FloatValues []float32 `cbor:"3,keyasint,omitempty" json:"float,omitempty"`
	ByteValues  []byte    `cbor:"4,keyasint,omitempty" json:"bytes,omitempty"`
	StringValue string    `cbor:"5,keyasint,omitempty" json:"string,omitempty"`
}

// Clone returns a deep copy.
func (r RawValue) Clone() RawValue {
	return RawValue{
		Int32Values: cloneSlice(r.Int32Values),
		Int64Values: cloneSlice(r.Int64Values),
		FloatValues: cloneSlice(r.FloatValues),
		ByteValues:  cloneSlice(r.ByteValues),
		StringValue: r.StringValue,
	}
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	out := make([]T, len(s))
	copy(out, s)
	return out
}

// PropertyValue is a timestamped value of one property in one area.
type PropertyValue struct {
	Prop      int32          `cbor:"1,keyasint" json:"prop"`
	AreaID    int32          `cbor:"2,keyasint,omitempty" json:"area_id,omitempty"`
	Timestamp int64          `cbor:"3,keyasint,omitempty" json:"timestamp,omitempty"`
	Status    PropertyStatus `cbor:"4,keyasint,omitempty" json:"status,omitempty"`
	Value     RawValue       `cbor:"5,keyasint" json:"value"`
}

// Clone returns a deep copy of the value.
func (v PropertyValue) Clone() PropertyValue {
	v.Value = v.Value.Clone()
	return v
}

// CloneValues deep-copies a batch of values. Callbacks that keep values
// beyond the call must clone them first.
func CloneValues(values []PropertyValue) []PropertyValue {
	out := make([]PropertyValue, len(values))
	for i := range values {
		out[i] = values[i].Clone()
	}
	return out
}

// String formats the value for debug output.
func (v PropertyValue) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "{prop: %s, areaId: %d, timestamp: %d, status: %s",
		PropertyName(v.Prop), v.AreaID, v.Timestamp, v.Status)
	if len(v.Value.Int32Values) > 0 {
		fmt.Fprintf(&b, ", int32Values: %v", v.Value.Int32Values)
	}
	if len(v.Value.Int64Values) > 0 {
		fmt.Fprintf(&b, ", int64Values: %v", v.Value.Int64Values)
	}
	if len(v.Value.FloatValues) > 0 {
		fmt.Fprintf(&b, ", floatValues: %v", v.Value.FloatValues)
	}
	if len(v.Value.ByteValues) > 0 {
		fmt.Fprintf(&b, ", bytes: %x", v.Value.ByteValues)
	}
	if v.Value.StringValue != "" {
		fmt.Fprintf(&b, ", stringValue: %q", v.Value.StringValue)
	}
	b.WriteString("}")
	return b.String()
}

// AreaMask is a bitset of area IDs. AllAreas matches every area.
type AreaMask int32

// AllAreas is the wildcard area mask.
const AllAreas AreaMask = 0

// IsAll reports whether the mask is the wildcard.
func (m AreaMask) IsAll() bool {
	return m == AllAreas
}

// Matches reports whether an event in areaID is covered by the mask.
// Global events (area 0) match every mask.
func (m AreaMask) Matches(areaID int32) bool {
	return m == AllAreas || areaID == 0 || int32(m)&areaID != 0
}

// Union merges two masks. The wildcard absorbs any other mask.
func (m AreaMask) Union(other AreaMask) AreaMask {
	if m == AllAreas || other == AllAreas {
		return AllAreas
	}
	return m | other
}

// SubscribeFlags selects which event sources a subscription receives.
type SubscribeFlags int32

const (
	// FlagUndefined is never valid in a subscription request.
	FlagUndefined SubscribeFlags = 0
	// FlagHalEvent delivers events originating from the vehicle hardware.
	FlagHalEvent SubscribeFlags = 0x1
	// FlagSetCall delivers notifications of set calls made by other clients.
	FlagSetCall SubscribeFlags = 0x2

	// FlagDefault is what most clients want.
	FlagDefault = FlagHalEvent
)

// String returns a "|" separated list of flag names.
func (f SubscribeFlags) String() string {
	if f == FlagUndefined {
		return "UNDEFINED"
	}
	var parts []string
	if f&FlagHalEvent != 0 {
		parts = append(parts, "HAL_EVENT")
	}
	if f&FlagSetCall != 0 {
		parts = append(parts, "SET_CALL")
	}
	if rest := f &^ (FlagHalEvent | FlagSetCall); rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", int32(rest)))
	}
	return strings.Join(parts, "|")
}

// SubscribeOptions is one subscription request for a single property.
type SubscribeOptions struct {
	PropID       int32          `cbor:"1,keyasint" json:"prop"`
	AreaMask     AreaMask       `cbor:"2,keyasint,omitempty" json:"area_mask,omitempty"`
	SampleRateHz float32        `cbor:"3,keyasint,omitempty" json:"sample_rate,omitempty"`
	Flags        SubscribeFlags `cbor:"4,keyasint" json:"flags"`
}

// String formats the options for debug output.
func (o SubscribeOptions) String() string {
	return fmt.Sprintf("{prop: %s, areaMask: 0x%x, sampleRate: %g, flags: %s}",
		PropertyName(o.PropID), int32(o.AreaMask), o.SampleRateHz, o.Flags)
}

// GetValueRequest asks for the current value of a property.
type GetValueRequest struct {
	RequestID int64         `cbor:"1,keyasint" json:"request_id"`
	Prop      PropertyValue `cbor:"2,keyasint" json:"prop"`
}

// GetValueResult answers a GetValueRequest. Prop is nil unless Status is OK.
type GetValueResult struct {
	RequestID int64          `cbor:"1,keyasint" json:"request_id"`
	Status    StatusCode     `cbor:"2,keyasint" json:"status"`
	Prop      *PropertyValue `cbor:"3,keyasint,omitempty" json:"prop,omitempty"`
}

// SetValueRequest asks to write a property value.
type SetValueRequest struct {
	RequestID int64         `cbor:"1,keyasint" json:"request_id"`
	Value     PropertyValue `cbor:"2,keyasint" json:"value"`
}

// SetValueResult answers a SetValueRequest.
type SetValueResult struct {
	RequestID int64      `cbor:"1,keyasint" json:"request_id"`
	Status    StatusCode `cbor:"2,keyasint" json:"status"`
}

// PropError reports an asynchronous failure of a previously accepted set.
type PropError struct {
	PropID    int32      `cbor:"1,keyasint" json:"prop"`
	AreaID    int32      `cbor:"2,keyasint,omitempty" json:"area_id,omitempty"`
	ErrorCode StatusCode `cbor:"3,keyasint" json:"error_code"`
}
