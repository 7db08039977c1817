package wire

import (
	"errors"
	"io"

	"github.com/openvhal/vhal-go/pkg/vehicle"
)

// StreamCallback is a vehicle.Callback that serializes every invocation
// as a framed Message.
type StreamCallback struct {
	fw       *FrameWriter
	clientID string
}

// NewStreamCallback creates a callback writing to w. clientID is stamped
// on every message.
func NewStreamCallback(w io.Writer, clientID string) *StreamCallback {
	return &StreamCallback{fw: NewFrameWriter(w), clientID: clientID}
}

// Frames returns the number of messages written.
func (s *StreamCallback) Frames() uint64 {
	return s.fw.Frames()
}

func (s *StreamCallback) send(m *Message) error {
	m.ClientID = s.clientID
	data, err := EncodeMessage(m)
	if err != nil {
		return err
	}
	return s.fw.WriteFrame(data)
}

// OnPropertyEvent implements vehicle.Callback.
func (s *StreamCallback) OnPropertyEvent(values []vehicle.PropertyValue) error {
	return s.send(&Message{Type: MessageTypePropertyEvent, Values: values})
}

// OnPropertySet implements vehicle.Callback.
func (s *StreamCallback) OnPropertySet(value vehicle.PropertyValue) error {
	return s.send(&Message{Type: MessageTypePropertySet, Values: []vehicle.PropertyValue{value}})
}

// OnPropertySetError implements vehicle.Callback.
func (s *StreamCallback) OnPropertySetError(code vehicle.StatusCode, propID, areaID int32) error {
	return s.send(&Message{
		Type:     MessageTypePropertySetError,
		SetError: &vehicle.PropError{PropID: propID, AreaID: areaID, ErrorCode: code},
	})
}

// OnGetValues implements vehicle.Callback.
func (s *StreamCallback) OnGetValues(results []vehicle.GetValueResult) error {
	return s.send(&Message{Type: MessageTypeGetValues, GetResults: results})
}

// OnSetValues implements vehicle.Callback.
func (s *StreamCallback) OnSetValues(results []vehicle.SetValueResult) error {
	return s.send(&Message{Type: MessageTypeSetValues, SetResults: results})
}

var _ vehicle.Callback = (*StreamCallback)(nil)

// StreamReader decodes framed messages.
type StreamReader struct {
	fr *FrameReader
}

// NewStreamReader creates a reader over r.
func NewStreamReader(r io.Reader) *StreamReader {
	return &StreamReader{fr: NewFrameReader(r)}
}

// ReadMessage returns the next message or io.EOF.
func (s *StreamReader) ReadMessage() (*Message, error) {
	data, err := s.fr.ReadFrame()
	if err != nil {
		return nil, err
	}
	return DecodeMessage(data)
}

// Replay dispatches every message in the stream into cb and returns the
// number of messages delivered. A clean end of stream is not an error.
func (s *StreamReader) Replay(cb vehicle.Callback) (int, error) {
	n := 0
	for {
		m, err := s.ReadMessage()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		if err := Dispatch(m, cb); err != nil {
			return n, err
		}
		n++
	}
}
