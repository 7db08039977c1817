package vehicle

import "fmt"

// Access describes which operations a property allows.
type Access uint8

const (
	AccessNone      Access = 0
	AccessRead      Access = 0x1
	AccessWrite     Access = 0x2
	AccessReadWrite Access = AccessRead | AccessWrite
)

// CanRead reports whether the property is readable.
func (a Access) CanRead() bool { return a&AccessRead != 0 }

// CanWrite reports whether the property is writable.
func (a Access) CanWrite() bool { return a&AccessWrite != 0 }

// String returns the access name.
func (a Access) String() string {
	switch a {
	case AccessNone:
		return "NONE"
	case AccessRead:
		return "READ"
	case AccessWrite:
		return "WRITE"
	case AccessReadWrite:
		return "READ_WRITE"
	default:
		return "UNKNOWN"
	}
}

// ChangeMode describes how a property produces events.
type ChangeMode uint8

const (
	// ChangeModeStatic properties never change and cannot be subscribed.
	ChangeModeStatic ChangeMode = 0
	// ChangeModeOnChange properties emit an event whenever the value changes.
	ChangeModeOnChange ChangeMode = 1
	// ChangeModeContinuous properties are sampled at the subscribed rate.
	ChangeModeContinuous ChangeMode = 2
)

// String returns the change mode name.
func (m ChangeMode) String() string {
	switch m {
	case ChangeModeStatic:
		return "STATIC"
	case ChangeModeOnChange:
		return "ON_CHANGE"
	case ChangeModeContinuous:
		return "CONTINUOUS"
	default:
		return "UNKNOWN"
	}
}

// AreaConfig holds per-area limits of a property.
type AreaConfig struct {
	AreaID        int32   `cbor:"1,keyasint" json:"area_id"`
	MinInt32Value int32   `cbor:"2,keyasint,omitempty" json:"min_int32,omitempty"`
	MaxInt32Value int32   `cbor:"3,keyasint,omitempty" json:"max_int32,omitempty"`
	MinInt64Value int64   `cbor:"4,keyasint,omitempty" json:"min_int64,omitempty"`
	MaxInt64Value int64   `cbor:"5,keyasint,omitempty" json:"max_int64,omitempty"`
	MinFloatValue float32 `cbor:"6,keyasint,omitempty" json:"min_float,omitempty"`
	MaxFloatValue float32 `cbor:"7,keyasint,omitempty" json:"max_float,omitempty"`
}

// PropConfig is the static description of one property.
type PropConfig struct {
	Prop          int32        `cbor:"1,keyasint" json:"prop"`
	Access        Access       `cbor:"2,keyasint" json:"access"`
	ChangeMode    ChangeMode   `cbor:"3,keyasint" json:"change_mode"`
	AreaConfigs   []AreaConfig `cbor:"4,keyasint,omitempty" json:"area_configs,omitempty"`
	ConfigArray   []int32      `cbor:"5,keyasint,omitempty" json:"config_array,omitempty"`
	ConfigString  string       `cbor:"6,keyasint,omitempty" json:"config_string,omitempty"`
	MinSampleRate float32      `cbor:"7,keyasint,omitempty" json:"min_sample_rate,omitempty"`
	MaxSampleRate float32      `cbor:"8,keyasint,omitempty" json:"max_sample_rate,omitempty"`
}

// SupportedAreas returns the union of the configured area IDs. Global
// properties and properties without area configs report AllAreas.
func (c PropConfig) SupportedAreas() AreaMask {
	if IsGlobalProperty(c.Prop) {
		return AllAreas
	}
	var mask AreaMask
	for _, ac := range c.AreaConfigs {
		mask |= AreaMask(ac.AreaID)
	}
	return mask
}

// AreaConfig returns the configuration for areaID. Global properties
// answer with their first area config regardless of areaID.
func (c PropConfig) AreaConfig(areaID int32) (AreaConfig, bool) {
	if IsGlobalProperty(c.Prop) {
		if len(c.AreaConfigs) == 0 {
			return AreaConfig{AreaID: 0}, true
		}
		return c.AreaConfigs[0], true
	}
	for _, ac := range c.AreaConfigs {
		if ac.AreaID == areaID {
			return ac, true
		}
	}
	return AreaConfig{}, false
}

// String formats the config for debug output.
func (c PropConfig) String() string {
	return fmt.Sprintf("{prop: %s, access: %s, changeMode: %s, areas: %d, sampleRate: [%g, %g]}",
		PropertyName(c.Prop), c.Access, c.ChangeMode, len(c.AreaConfigs), c.MinSampleRate, c.MaxSampleRate)
}

// ConfigIndex is an immutable lookup table of property configurations.
// It is built once at startup and safe for concurrent reads.
type ConfigIndex struct {
	configs []PropConfig
	byProp  map[int32]int
}

// NewConfigIndex builds an index. Later duplicates of a property ID
// replace earlier ones.
func NewConfigIndex(configs []PropConfig) *ConfigIndex {
	idx := &ConfigIndex{byProp: make(map[int32]int, len(configs))}
	for _, c := range configs {
		if i, ok := idx.byProp[c.Prop]; ok {
			idx.configs[i] = c
			continue
		}
		idx.byProp[c.Prop] = len(idx.configs)
		idx.configs = append(idx.configs, c)
	}
	return idx
}

// Get returns the configuration for propID.
func (idx *ConfigIndex) Get(propID int32) (PropConfig, bool) {
	i, ok := idx.byProp[propID]
	if !ok {
		return PropConfig{}, false
	}
	return idx.configs[i], true
}

// Has reports whether propID is configured.
func (idx *ConfigIndex) Has(propID int32) bool {
	_, ok := idx.byProp[propID]
	return ok
}

// All returns every configuration in registration order.
func (idx *ConfigIndex) All() []PropConfig {
	out := make([]PropConfig, len(idx.configs))
	copy(out, idx.configs)
	return out
}

// Len returns the number of configured properties.
func (idx *ConfigIndex) Len() int {
	return len(idx.configs)
}
