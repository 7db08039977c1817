package propconfig

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/openvhal/vhal-go/pkg/vehicle"
)

//go:embed default.yaml
var defaultYAML []byte

// LoadError reports a problem loading declarations.
type LoadError struct {
	File    string
	Prop    string
	Message string
	Cause   error
}

func (e *LoadError) Error() string {
	var b strings.Builder
	if e.File != "" {
		b.WriteString(e.File)
		b.WriteString(": ")
	}
	if e.Prop != "" {
		b.WriteString(e.Prop)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

// Declaration is one configured property with its initial values.
type Declaration struct {
	Name   string
	Config vehicle.PropConfig

	// InitialValue seeds global properties (or every area when
	// AreaValues has no entry for it).
	InitialValue *vehicle.RawValue

	// AreaValues seeds individual areas.
	AreaValues map[int32]vehicle.RawValue
}

// Configs extracts the property configurations.
func Configs(decls []Declaration) []vehicle.PropConfig {
	out := make([]vehicle.PropConfig, len(decls))
	for i, d := range decls {
		out[i] = d.Config
	}
	return out
}

type fileDoc struct {
	Properties []propertyDoc `yaml:"properties"`
}

type propertyDoc struct {
	Prop          string      `yaml:"prop"`
	Access        string      `yaml:"access"`
	ChangeMode    string      `yaml:"changeMode"`
	MinSampleRate float32     `yaml:"minSampleRate"`
	MaxSampleRate float32     `yaml:"maxSampleRate"`
	ConfigArray   []int32     `yaml:"configArray"`
	ConfigString  string      `yaml:"configString"`
	Areas         []areaDoc   `yaml:"areas"`
	Value         *valueDoc   `yaml:"value"`
	AreaValues    []areaValue `yaml:"areaValues"`
}

type areaDoc struct {
	AreaID   int32   `yaml:"areaId"`
	MinInt32 int32   `yaml:"minInt32"`
	MaxInt32 int32   `yaml:"maxInt32"`
	MinInt64 int64   `yaml:"minInt64"`
	MaxInt64 int64   `yaml:"maxInt64"`
	MinFloat float32 `yaml:"minFloat"`
	MaxFloat float32 `yaml:"maxFloat"`
}

type areaValue struct {
	AreaID int32    `yaml:"areaId"`
	Value  valueDoc `yaml:"value"`
}

type valueDoc struct {
	Int32  []int32   `yaml:"int32"`
	Int64  []int64   `yaml:"int64"`
	Float  []float32 `yaml:"float"`
	Bytes  []byte    `yaml:"bytes"`
	String string    `yaml:"string"`
}

func (v valueDoc) raw() vehicle.RawValue {
	return vehicle.RawValue{
		Int32Values: v.Int32,
		Int64Values: v.Int64,
		FloatValues: v.Float,
		ByteValues:  v.Bytes,
		StringValue: v.String,
	}
}

// Default returns the built-in declarations.
func Default() []Declaration {
	decls, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("propconfig: invalid built-in declarations: %v", err))
	}
	return decls
}

// LoadFile reads declarations from a YAML file.
func LoadFile(path string) ([]Declaration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{File: path, Message: "failed to read file", Cause: err}
	}
	decls, err := Parse(data)
	if err != nil {
		if le, ok := err.(*LoadError); ok {
			le.File = path
			return nil, le
		}
		return nil, &LoadError{File: path, Message: err.Error()}
	}
	return decls, nil
}

// Parse decodes and validates declarations from YAML bytes.
func Parse(data []byte) ([]Declaration, error) {
	var doc fileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &LoadError{Message: "failed to parse YAML", Cause: err}
	}
	if len(doc.Properties) == 0 {
		return nil, &LoadError{Message: "no properties declared"}
	}

	seen := make(map[int32]bool, len(doc.Properties))
	decls := make([]Declaration, 0, len(doc.Properties))
	for _, p := range doc.Properties {
		d, err := p.declaration()
		if err != nil {
			return nil, err
		}
		if seen[d.Config.Prop] {
			return nil, &LoadError{Prop: p.Prop, Message: "declared more than once"}
		}
		seen[d.Config.Prop] = true
		decls = append(decls, d)
	}
	return decls, nil
}

func (p propertyDoc) declaration() (Declaration, error) {
	fail := func(format string, args ...any) (Declaration, error) {
		return Declaration{}, &LoadError{Prop: p.Prop, Message: fmt.Sprintf(format, args...)}
	}

	id, err := ParsePropID(p.Prop)
	if err != nil {
		return fail("%v", err)
	}
	access, err := parseAccess(p.Access)
	if err != nil {
		return fail("%v", err)
	}
	mode, err := parseChangeMode(p.ChangeMode)
	if err != nil {
		return fail("%v", err)
	}

	cfg := vehicle.PropConfig{
		Prop:          id,
		Access:        access,
		ChangeMode:    mode,
		ConfigArray:   p.ConfigArray,
		ConfigString:  p.ConfigString,
		MinSampleRate: p.MinSampleRate,
		MaxSampleRate: p.MaxSampleRate,
	}
	for _, a := range p.Areas {
		cfg.AreaConfigs = append(cfg.AreaConfigs, vehicle.AreaConfig{
			AreaID:        a.AreaID,
			MinInt32Value: a.MinInt32,
			MaxInt32Value: a.MaxInt32,
			MinInt64Value: a.MinInt64,
			MaxInt64Value: a.MaxInt64,
			MinFloatValue: a.MinFloat,
			MaxFloatValue: a.MaxFloat,
		})
	}

	switch {
	case mode == vehicle.ChangeModeContinuous && (p.MaxSampleRate <= 0 || p.MinSampleRate > p.MaxSampleRate):
		return fail("continuous property needs 0 < minSampleRate <= maxSampleRate")
	case mode != vehicle.ChangeModeContinuous && (p.MinSampleRate != 0 || p.MaxSampleRate != 0):
		return fail("sample rates only apply to continuous properties")
	case !vehicle.IsGlobalProperty(id) && len(cfg.AreaConfigs) == 0:
		return fail("area property needs at least one area")
	}

	d := Declaration{Name: vehicle.PropertyName(id), Config: cfg}
	if p.Value != nil {
		raw := p.Value.raw()
		d.InitialValue = &raw
	}
	if len(p.AreaValues) > 0 {
		d.AreaValues = make(map[int32]vehicle.RawValue, len(p.AreaValues))
		for _, av := range p.AreaValues {
			if _, ok := cfg.AreaConfig(av.AreaID); !ok {
				return fail("value for undeclared area %d", av.AreaID)
			}
			d.AreaValues[av.AreaID] = av.Value.raw()
		}
	}
	return d, nil
}

// ParsePropID accepts a well-known property name or a numeric ID in any
// base strconv understands (e.g. 0x11600207).
func ParsePropID(s string) (int32, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("property is required")
	}
	if id, ok := vehicle.PropertyByName(strings.ToUpper(s)); ok {
		return id, nil
	}
	n, err := strconv.ParseInt(s, 0, 64)
	if err != nil || n > 0x7fffffff || n <= 0 {
		return 0, fmt.Errorf("unknown property %q", s)
	}
	return int32(n), nil
}

func parseAccess(s string) (vehicle.Access, error) {
	switch strings.ToLower(s) {
	case "read":
		return vehicle.AccessRead, nil
	case "write":
		return vehicle.AccessWrite, nil
	case "read_write", "readwrite":
		return vehicle.AccessReadWrite, nil
	case "none":
		return vehicle.AccessNone, nil
	}
	return 0, fmt.Errorf("invalid access %q", s)
}

func parseChangeMode(s string) (vehicle.ChangeMode, error) {
	switch strings.ToLower(s) {
	case "static":
		return vehicle.ChangeModeStatic, nil
	case "on_change", "onchange":
		return vehicle.ChangeModeOnChange, nil
	case "continuous":
		return vehicle.ChangeModeContinuous, nil
	}
	return 0, fmt.Errorf("invalid change mode %q", s)
}
