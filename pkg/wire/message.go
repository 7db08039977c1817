package wire

import (
	"errors"
	"fmt"

	"github.com/openvhal/vhal-go/pkg/vehicle"
)

// MessageType identifies which callback a message represents.
type MessageType uint8

const (
	MessageTypePropertyEvent    MessageType = 1
	MessageTypePropertySet      MessageType = 2
	MessageTypePropertySetError MessageType = 3
	MessageTypeGetValues        MessageType = 4
	MessageTypeSetValues        MessageType = 5
)

// String returns the message type name.
func (t MessageType) String() string {
	switch t {
	case MessageTypePropertyEvent:
		return "PROPERTY_EVENT"
	case MessageTypePropertySet:
		return "PROPERTY_SET"
	case MessageTypePropertySetError:
		return "PROPERTY_SET_ERROR"
	case MessageTypeGetValues:
		return "GET_VALUES"
	case MessageTypeSetValues:
		return "SET_VALUES"
	default:
		return "UNKNOWN"
	}
}

// Message validation errors.
var (
	ErrUnknownType   = errors.New("unknown message type")
	ErrMissingField  = errors.New("missing required field")
	ErrUnexpectedLen = errors.New("unexpected number of values")
)

// Message is one callback invocation on the wire.
type Message struct {
	Type       MessageType              `cbor:"1,keyasint"`
	ClientID   string                   `cbor:"2,keyasint,omitempty"`
	Values     []vehicle.PropertyValue  `cbor:"3,keyasint,omitempty"`
	SetError   *vehicle.PropError       `cbor:"4,keyasint,omitempty"`
	GetResults []vehicle.GetValueResult `cbor:"5,keyasint,omitempty"`
	SetResults []vehicle.SetValueResult `cbor:"6,keyasint,omitempty"`
}

// Validate checks that the fields required by the message type are set.
func (m *Message) Validate() error {
	switch m.Type {
	case MessageTypePropertyEvent:
		if len(m.Values) == 0 {
			return fmt.Errorf("%w: values", ErrMissingField)
		}
	case MessageTypePropertySet:
		if len(m.Values) != 1 {
			return fmt.Errorf("%w: got %d, want 1", ErrUnexpectedLen, len(m.Values))
		}
	case MessageTypePropertySetError:
		if m.SetError == nil {
			return fmt.Errorf("%w: set error", ErrMissingField)
		}
	case MessageTypeGetValues:
		if len(m.GetResults) == 0 {
			return fmt.Errorf("%w: get results", ErrMissingField)
		}
	case MessageTypeSetValues:
		if len(m.SetResults) == 0 {
			return fmt.Errorf("%w: set results", ErrMissingField)
		}
	default:
		return fmt.Errorf("%w: %d", ErrUnknownType, m.Type)
	}
	return nil
}

// Dispatch replays a message into cb.
func Dispatch(m *Message, cb vehicle.Callback) error {
	if err := m.Validate(); err != nil {
		return err
	}
	switch m.Type {
	case MessageTypePropertyEvent:
		return cb.OnPropertyEvent(m.Values)
	case MessageTypePropertySet:
		return cb.OnPropertySet(m.Values[0])
	case MessageTypePropertySetError:
		return cb.OnPropertySetError(m.SetError.ErrorCode, m.SetError.PropID, m.SetError.AreaID)
	case MessageTypeGetValues:
		return cb.OnGetValues(m.GetResults)
	default:
		return cb.OnSetValues(m.SetResults)
	}
}
