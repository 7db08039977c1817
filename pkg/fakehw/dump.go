package fakehw

import (
	"fmt"
	"io"
	"strconv"

	"github.com/openvhal/vhal-go/pkg/propconfig"
	"github.com/openvhal/vhal-go/pkg/vehicle"
)

const fakeUsage = `Fake hardware:
--inject-error <PROP> <CODE>: fail later sets of PROP with status CODE (0 clears)
--generators: lists running continuous generators
`

// Dump implements hal.Dumper. It handles the fake hardware commands and
// lets the manager handle everything else.
func (h *Hardware) Dump(w io.Writer, args []string) bool {
	if len(args) == 0 {
		fmt.Fprintf(w, "fake hardware: %d values, %d generators\n", len(h.Snapshot()), h.Generators())
		return true
	}
	switch args[0] {
	case "--help":
		fmt.Fprint(w, fakeUsage)
		return true
	case "--inject-error":
		h.dumpInjectError(w, args)
		return false
	case "--generators":
		h.dumpGenerators(w)
		return false
	}
	return true
}

func (h *Hardware) dumpInjectError(w io.Writer, args []string) {
	if len(args) != 3 {
		fmt.Fprintf(w, "Invalid number of arguments: required %d, got %d\n", 3, len(args))
		return
	}
	propID, err := propconfig.ParsePropID(args[1])
	if err != nil {
		fmt.Fprintf(w, "%v\n", err)
		return
	}
	if !h.index.Has(propID) {
		fmt.Fprintf(w, "No property %d\n", propID)
		return
	}
	code, err := strconv.ParseUint(args[2], 0, 8)
	if err != nil {
		fmt.Fprintf(w, "non-integer argument at index 2: %s\n", args[2])
		return
	}
	status := vehicle.StatusCode(code)
	h.InjectSetError(propID, status)
	fmt.Fprintf(w, "Sets of %s now report %s\n", vehicle.PropertyName(propID), status)
}

func (h *Hardware) dumpGenerators(w io.Writer) {
	h.mu.Lock()
	keys := make([]key, 0, len(h.generators))
	for k := range h.generators {
		keys = append(keys, k)
	}
	h.mu.Unlock()

	fmt.Fprintf(w, "%d generators\n", len(keys))
	for _, r := range h.timers.Registrations() {
		fmt.Fprintf(w, "timer %d: every %s, fired %d times\n", r.ID, r.Interval, r.Fired)
	}
	for _, k := range keys {
		fmt.Fprintf(w, "%s area %d\n", vehicle.PropertyName(k.prop), k.area)
	}
}
