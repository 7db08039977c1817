package hal

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/openvhal/vhal-go/pkg/vehicle"
)

const dumpUsage = `Usage:
[no args]: dumps (id and value) all supported properties
--help: shows this help
--list: lists the ids of all supported properties
--get <PROP> [PROP...]: dumps the value of specific properties
--set <PROP> <TYPE> <VALUE> [<TYPE> <VALUE>...]: sets the value of a property
    TYPE is i (int32, repeatable), f (float, repeatable), s (string) or a (area id)
    example: --set 0x15600503 f 21.5 a 1
`

// Dump writes debug information to w. args select the command, as
// described by --help. Hardware implementing Dumper is asked first and
// may suppress the manager's own output.
func (m *Manager) Dump(w io.Writer, args []string) {
	if d, ok := m.hw.(Dumper); ok && !d.Dump(w, args) {
		return
	}
	if len(args) == 0 {
		m.dumpAll(w)
		return
	}

	switch args[0] {
	case "--help":
		fmt.Fprint(w, dumpUsage)
	case "--list":
		m.dumpList(w)
	case "--get":
		m.dumpGet(w, args)
	case "--set":
		m.dumpSet(w, args)
	default:
		fmt.Fprintf(w, "Invalid option: %s\n", args[0])
		fmt.Fprint(w, dumpUsage)
	}
}

func (m *Manager) dumpAll(w io.Writer) {
	configs := m.GetAllPropConfigs()
	if len(configs) == 0 {
		fmt.Fprintln(w, "no properties to dump")
		return
	}
	fmt.Fprintf(w, "dumping %d properties\n", len(configs))
	for i, cfg := range configs {
		m.dumpProperty(w, i+1, cfg)
	}
}

func (m *Manager) dumpList(w io.Writer) {
	configs := m.GetAllPropConfigs()
	if len(configs) == 0 {
		fmt.Fprintln(w, "no properties to list")
		return
	}
	fmt.Fprintf(w, "listing %d properties\n", len(configs))
	for i, cfg := range configs {
		fmt.Fprintf(w, "%d: %d\n", i+1, cfg.Prop)
	}
}

func (m *Manager) dumpGet(w io.Writer, args []string) {
	if !checkArgCount(w, args, 2) {
		return
	}
	many := len(args) > 2
	for i := 1; i < len(args); i++ {
		propID, ok := parseProp(w, args, i)
		if !ok {
			return
		}
		cfg, found := m.index.Get(propID)
		if !found {
			fmt.Fprintf(w, "No property %d\n", propID)
			continue
		}
		row := 0
		if many {
			row = i
		}
		m.dumpProperty(w, row, cfg)
	}
}

// dumpProperty prints one line per area. Row 0 omits the row prefix.
func (m *Manager) dumpProperty(w io.Writer, row int, cfg vehicle.PropConfig) {
	areas := []int32{0}
	if !vehicle.IsGlobalProperty(cfg.Prop) && len(cfg.AreaConfigs) > 0 {
		areas = areas[:0]
		for _, ac := range cfg.AreaConfigs {
			areas = append(areas, ac.AreaID)
		}
	}
	for j, area := range areas {
		prefix := ""
		switch {
		case row > 0 && len(areas) > 1:
			prefix = fmt.Sprintf("%d/%d: ", row, j)
		case row > 0:
			prefix = fmt.Sprintf("%d: ", row)
		}
		v, err := m.hw.Get(vehicle.PropertyValue{Prop: cfg.Prop, AreaID: area})
		if err != nil {
			fmt.Fprintf(w, "%sCould not get property %d. Error: %v\n", prefix, cfg.Prop, err)
			continue
		}
		fmt.Fprintf(w, "%s%s\n", prefix, v)
	}
}

func (m *Manager) dumpSet(w io.Writer, args []string) {
	if !checkArgCount(w, args, 3) {
		return
	}
	if len(args)%2 != 0 {
		fmt.Fprintf(w, "must pass even number of arguments (passed %d)\n", len(args))
		return
	}
	propID, ok := parseProp(w, args, 1)
	if !ok {
		return
	}

	value := vehicle.PropertyValue{Prop: propID}
	stringIndex, areaIndex := 0, 0
	for i := 2; i < len(args); i += 2 {
		typ, arg := args[i], args[i+1]
		switch typ {
		case "i":
			n, err := strconv.ParseInt(arg, 0, 32)
			if err != nil {
				fmt.Fprintf(w, "non-integer argument at index %d: %s\n", i+1, arg)
				return
			}
			value.Value.Int32Values = append(value.Value.Int32Values, int32(n))
		case "f":
			f, err := strconv.ParseFloat(arg, 32)
			if err != nil {
				fmt.Fprintf(w, "non-float argument at index %d: %s\n", i+1, arg)
				return
			}
			value.Value.FloatValues = append(value.Value.FloatValues, float32(f))
		case "s":
			if stringIndex != 0 {
				fmt.Fprintf(w, "defining string value (%s) again at index %d (already defined at %d=%s)\n",
					arg, i, stringIndex, value.Value.StringValue)
				return
			}
			stringIndex = i
			value.Value.StringValue = arg
		case "a":
			if areaIndex != 0 {
				fmt.Fprintf(w, "defining area value (%s) again at index %d (already defined at %d=%d)\n",
					arg, i, areaIndex, value.AreaID)
				return
			}
			n, err := strconv.ParseInt(arg, 0, 32)
			if err != nil {
				fmt.Fprintf(w, "non-integer argument at index %d: %s\n", i+1, arg)
				return
			}
			areaIndex = i
			value.AreaID = int32(n)
		default:
			fmt.Fprintf(w, "invalid (%s) type at index %d\n", typ, i)
			return
		}
	}

	if err := m.Set(value); err != nil {
		fmt.Fprintf(w, "Failed to set property %s: %v\n", value, err)
		return
	}
	fmt.Fprintf(w, "Set property %s\n", value)
}

func checkArgCount(w io.Writer, args []string, want int) bool {
	if len(args) < want {
		fmt.Fprintf(w, "Invalid number of arguments: required at least %d, got %d\n", want, len(args))
		return false
	}
	return true
}

// parseProp accepts a property name or a decimal or 0x-prefixed ID.
func parseProp(w io.Writer, args []string, i int) (int32, bool) {
	if id, ok := vehicle.PropertyByName(strings.ToUpper(args[i])); ok {
		return id, true
	}
	n, err := strconv.ParseInt(args[i], 0, 32)
	if err != nil {
		fmt.Fprintf(w, "non-integer argument at index %d: %s\n", i, args[i])
		return 0, false
	}
	return int32(n), true
}
