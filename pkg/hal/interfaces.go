package hal

import (
	"io"

	"github.com/openvhal/vhal-go/pkg/objpool"
	"github.com/openvhal/vhal-go/pkg/vehicle"
)

// EventSink is how the hardware reports to the manager. Both methods may
// be called from any goroutine.
type EventSink interface {
	// OnHalEvent takes ownership of v and releases it after delivery.
	OnHalEvent(v *objpool.Recyclable)

	// OnHalError reports that a previously accepted set failed.
	OnHalError(code vehicle.StatusCode, propID, areaID int32)
}

// Hardware is the vehicle-side collaborator of the manager.
type Hardware interface {
	// Init is called once before any other method. The hardware keeps
	// pool and sink for reporting events.
	Init(pool *objpool.Pool, sink EventSink) error

	// ListProperties returns every supported property configuration.
	ListProperties() []vehicle.PropConfig

	// Get reads the current value of requested.Prop in requested.AreaID.
	Get(requested vehicle.PropertyValue) (vehicle.PropertyValue, error)

	// Set writes a value. Failures discovered later are reported through
	// EventSink.OnHalError.
	Set(value vehicle.PropertyValue) error

	// Subscribe starts or updates event generation for a property.
	Subscribe(options vehicle.SubscribeOptions) error

	// Unsubscribe stops event generation for a property.
	Unsubscribe(propID int32) error
}

// AsyncHardware is implemented by hardware that answers batched requests
// on its own goroutines. Without it the manager runs Get and Set on a
// goroutine per request batch.
type AsyncHardware interface {
	GetValues(requests []vehicle.GetValueRequest, done func([]vehicle.GetValueResult)) error
	SetValues(requests []vehicle.SetValueRequest, done func([]vehicle.SetValueResult)) error
}

// HealthChecker is implemented by hardware that can report its health.
// The heartbeat is skipped while CheckHealth fails.
type HealthChecker interface {
	CheckHealth() error
}

// Dumper is implemented by hardware with its own debug output. It returns
// false when the manager should not append its own dump.
type Dumper interface {
	Dump(w io.Writer, args []string) bool
}
