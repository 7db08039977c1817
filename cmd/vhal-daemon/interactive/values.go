package interactive

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/openvhal/vhal-go/pkg/propconfig"
	"github.com/openvhal/vhal-go/pkg/vehicle"
)

// parseTarget parses PROP or PROP@AREA.
func parseTarget(s string) (propID, areaID int32, err error) {
	name, area, hasArea := strings.Cut(s, "@")
	propID, err = propconfig.ParsePropID(name)
	if err != nil {
		return 0, 0, err
	}
	if hasArea {
		a, err := strconv.ParseInt(area, 0, 32)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid area %q", area)
		}
		areaID = int32(a)
	}
	return propID, areaID, nil
}

// parseValue converts command arguments into a value of the property's
// type.
func parseValue(propID int32, args []string) (vehicle.RawValue, error) {
	var raw vehicle.RawValue
	t := vehicle.PropertyTypeOf(propID)
	if len(args) == 0 {
		return raw, fmt.Errorf("missing value")
	}
	if t.IsScalar() && len(args) != 1 {
		return raw, fmt.Errorf("%s takes exactly one value, got %d", t, len(args))
	}

	switch t {
	case vehicle.TypeBoolean:
		b, err := strconv.ParseBool(args[0])
		if err != nil {
			return raw, fmt.Errorf("invalid boolean %q", args[0])
		}
		if b {
			raw.Int32Values = []int32{1}
		} else {
			raw.Int32Values = []int32{0}
		}
	case vehicle.TypeInt32, vehicle.TypeInt32Vec:
		for _, a := range args {
			v, err := strconv.ParseInt(a, 0, 32)
			if err != nil {
				return raw, fmt.Errorf("invalid int32 %q", a)
			}
			raw.Int32Values = append(raw.Int32Values, int32(v))
		}
	case vehicle.TypeInt64, vehicle.TypeInt64Vec:
		for _, a := range args {
			v, err := strconv.ParseInt(a, 0, 64)
			if err != nil {
				return raw, fmt.Errorf("invalid int64 %q", a)
			}
			raw.Int64Values = append(raw.Int64Values, v)
		}
	case vehicle.TypeFloat, vehicle.TypeFloatVec:
		for _, a := range args {
			v, err := strconv.ParseFloat(a, 32)
			if err != nil {
				return raw, fmt.Errorf("invalid float %q", a)
			}
			raw.FloatValues = append(raw.FloatValues, float32(v))
		}
	case vehicle.TypeString:
		raw.StringValue = strings.Join(args, " ")
	case vehicle.TypeBytes:
		b, err := hex.DecodeString(strings.Join(args, ""))
		if err != nil {
			return raw, fmt.Errorf("invalid hex bytes: %w", err)
		}
		raw.ByteValues = b
	default:
		return raw, fmt.Errorf("cannot parse values of type %s", t)
	}
	return raw, nil
}

func parseStatus(s string) (vehicle.StatusCode, error) {
	upper := strings.ToUpper(s)
	for c := vehicle.StatusOK; c <= vehicle.StatusIllegalState; c++ {
		if c.String() == upper {
			return c, nil
		}
	}
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil || vehicle.StatusCode(n).String() == "UNKNOWN" {
		return 0, fmt.Errorf("unknown status %q", s)
	}
	return vehicle.StatusCode(n), nil
}
