package log

import (
	"time"

	"github.com/openvhal/vhal-go/pkg/vehicle"
)

// Event represents a HAL log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ClientID identifies the client involved (UUID), empty for
	// hardware-only events.
	ClientID string `cbor:"2,keyasint,omitempty"`

	// Direction indicates data flow relative to the manager.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// Type-specific payload (one of these will be set).
	Property     *PropertyEvent     `cbor:"10,keyasint,omitempty"`
	Subscription *SubscriptionEvent `cbor:"11,keyasint,omitempty"`
	Request      *RequestEvent      `cbor:"12,keyasint,omitempty"`
	StateChange  *StateChangeEvent  `cbor:"13,keyasint,omitempty"`
	Error        *ErrorEventData    `cbor:"14,keyasint,omitempty"`
}

// Direction indicates the direction of data flow.
type Direction uint8

const (
	// DirectionIn is data entering the manager (from hardware or a client).
	DirectionIn Direction = 0
	// DirectionOut is data leaving the manager.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which side of the manager captured the event.
type Layer uint8

const (
	// LayerHardware is the vehicle hardware boundary.
	LayerHardware Layer = 0
	// LayerManager is the HAL manager itself.
	LayerManager Layer = 1
	// LayerClient is the client callback boundary.
	LayerClient Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerHardware:
		return "HARDWARE"
	case LayerManager:
		return "MANAGER"
	case LayerClient:
		return "CLIENT"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryProperty indicates property values moving through the HAL.
	CategoryProperty Category = 0
	// CategorySubscription indicates a subscription change.
	CategorySubscription Category = 1
	// CategoryRequest indicates an asynchronous get/set request.
	CategoryRequest Category = 2
	// CategoryState indicates a lifecycle state change.
	CategoryState Category = 3
	// CategoryError indicates an error event.
	CategoryError Category = 4
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryProperty:
		return "PROPERTY"
	case CategorySubscription:
		return "SUBSCRIPTION"
	case CategoryRequest:
		return "REQUEST"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// PropertyEvent captures property values.
type PropertyEvent struct {
	// Kind says how the values travelled.
	Kind PropertyKind `cbor:"1,keyasint"`

	// Values are the property values (may be truncated for large batches).
	Values []vehicle.PropertyValue `cbor:"2,keyasint,omitempty"`

	// Count is the number of values before truncation.
	Count int `cbor:"3,keyasint"`
}

// PropertyKind distinguishes property event flavours.
type PropertyKind uint8

const (
	// PropertyKindEvent is a hardware event batch.
	PropertyKindEvent PropertyKind = 0
	// PropertyKindGet is a synchronous get.
	PropertyKindGet PropertyKind = 1
	// PropertyKindSet is a synchronous set.
	PropertyKindSet PropertyKind = 2
	// PropertyKindSetError is an asynchronous set failure.
	PropertyKindSetError PropertyKind = 3
)

// String returns the property kind name.
func (k PropertyKind) String() string {
	switch k {
	case PropertyKindEvent:
		return "EVENT"
	case PropertyKindGet:
		return "GET"
	case PropertyKindSet:
		return "SET"
	case PropertyKindSetError:
		return "SET_ERROR"
	default:
		return "UNKNOWN"
	}
}

// SubscriptionEvent captures subscription changes.
type SubscriptionEvent struct {
	// Action is what happened.
	Action SubscriptionAction `cbor:"1,keyasint"`

	// Options are the subscriptions involved.
	Options []vehicle.SubscribeOptions `cbor:"2,keyasint,omitempty"`

	// PropID is set for unsubscribe actions.
	PropID int32 `cbor:"3,keyasint,omitempty"`
}

// SubscriptionAction indicates the kind of subscription change.
type SubscriptionAction uint8

const (
	// SubscriptionActionSubscribe is a client subscribe call.
	SubscriptionActionSubscribe SubscriptionAction = 0
	// SubscriptionActionUnsubscribe is a client unsubscribe call.
	SubscriptionActionUnsubscribe SubscriptionAction = 1
	// SubscriptionActionHardwareUpdate is a subscription pushed to hardware.
	SubscriptionActionHardwareUpdate SubscriptionAction = 2
	// SubscriptionActionHardwareRelease is a hardware unsubscribe.
	SubscriptionActionHardwareRelease SubscriptionAction = 3
)

// String returns the subscription action name.
func (a SubscriptionAction) String() string {
	switch a {
	case SubscriptionActionSubscribe:
		return "SUBSCRIBE"
	case SubscriptionActionUnsubscribe:
		return "UNSUBSCRIBE"
	case SubscriptionActionHardwareUpdate:
		return "HARDWARE_UPDATE"
	case SubscriptionActionHardwareRelease:
		return "HARDWARE_RELEASE"
	default:
		return "UNKNOWN"
	}
}

// RequestEvent captures asynchronous get/set requests and their outcome.
type RequestEvent struct {
	// Kind is GET_VALUES or SET_VALUES.
	Kind RequestKind `cbor:"1,keyasint"`

	// RequestIDs are the IDs involved.
	RequestIDs []int64 `cbor:"2,keyasint,omitempty"`

	// Status is the outcome (responses and timeouts only).
	Status *vehicle.StatusCode `cbor:"3,keyasint,omitempty"`

	// TimedOut marks results synthesized by the timeout reaper.
	TimedOut bool `cbor:"4,keyasint,omitempty"`
}

// RequestKind distinguishes asynchronous request types.
type RequestKind uint8

const (
	// RequestKindGetValues is an asynchronous get.
	RequestKindGetValues RequestKind = 0
	// RequestKindSetValues is an asynchronous set.
	RequestKindSetValues RequestKind = 1
)

// String returns the request kind name.
func (k RequestKind) String() string {
	switch k {
	case RequestKindGetValues:
		return "GET_VALUES"
	case RequestKindSetValues:
		return "SET_VALUES"
	default:
		return "UNKNOWN"
	}
}

// StateChangeEvent captures manager and client lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityManager indicates a manager lifecycle change.
	StateEntityManager StateEntity = 0
	// StateEntityClient indicates a client registration change.
	StateEntityClient StateEntity = 1
	// StateEntityHardware indicates a hardware health change.
	StateEntityHardware StateEntity = 2
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityManager:
		return "MANAGER"
	case StateEntityClient:
		return "CLIENT"
	case StateEntityHardware:
		return "HARDWARE"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Code is the status code (if applicable).
	Code *vehicle.StatusCode `cbor:"3,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"4,keyasint,omitempty"`
}

// MaxLoggedValues bounds the values recorded per PropertyEvent.
const MaxLoggedValues = 32

// NewPropertyEvent builds a PropertyEvent, truncating large batches.
func NewPropertyEvent(kind PropertyKind, values []vehicle.PropertyValue) *PropertyEvent {
	n := len(values)
	if n > MaxLoggedValues {
		values = values[:MaxLoggedValues]
	}
	return &PropertyEvent{Kind: kind, Values: vehicle.CloneValues(values), Count: n}
}
