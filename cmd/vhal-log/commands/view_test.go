package commands

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/openvhal/vhal-go/pkg/log"
	"github.com/openvhal/vhal-go/pkg/vehicle"
)

func TestFormatPropertyEvent(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 123456000, time.UTC)
	event := log.Event{
		Timestamp: ts,
		ClientID:  "abc12345-6789-0123-4567-890abcdef012",
		Direction: log.DirectionOut,
		Layer:     log.LayerClient,
		Category:  log.CategoryProperty,
		Property: log.NewPropertyEvent(log.PropertyKindEvent, []vehicle.PropertyValue{
			{Prop: vehicle.PropPerfVehicleSpeed, Value: vehicle.RawValue{FloatValues: []float32{12.5}}},
		}),
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)
	output := buf.String()

	if !strings.Contains(output, "2026-01-28T10:15:32.123456Z") {
		t.Errorf("expected microsecond timestamp, got: %s", output)
	}
	if !strings.Contains(output, "[client:abc12345]") {
		t.Errorf("expected shortened client ID, got: %s", output)
	}
	if !strings.Contains(output, "OUT CLIENT EVENT") {
		t.Errorf("expected direction, layer and kind, got: %s", output)
	}
	if !strings.Contains(output, "PERF_VEHICLE_SPEED") || !strings.Contains(output, "[12.5]") {
		t.Errorf("expected value details, got: %s", output)
	}
}

func TestFormatHardwareEventHasNoClient(t *testing.T) {
	var buf bytes.Buffer
	formatEvent(&buf, log.Event{
		Layer:       log.LayerHardware,
		Category:    log.CategoryState,
		StateChange: &log.StateChangeEvent{Entity: log.StateEntityHardware, OldState: "HEALTHY", NewState: "UNHEALTHY", Reason: "bus down"},
	})
	output := buf.String()

	if !strings.Contains(output, "[client:-]") {
		t.Errorf("expected placeholder client, got: %s", output)
	}
	if !strings.Contains(output, "HEALTHY -> UNHEALTHY") {
		t.Errorf("expected state transition, got: %s", output)
	}
	if !strings.Contains(output, "Reason: bus down") {
		t.Errorf("expected reason, got: %s", output)
	}
}

func TestFormatRequestTimeout(t *testing.T) {
	status := vehicle.StatusTryAgain
	var buf bytes.Buffer
	formatEvent(&buf, log.Event{
		Category: log.CategoryRequest,
		Request:  &log.RequestEvent{Kind: log.RequestKindGetValues, RequestIDs: []int64{7, 8}, Status: &status, TimedOut: true},
	})
	output := buf.String()

	if !strings.Contains(output, "GET_VALUES") {
		t.Errorf("expected request kind, got: %s", output)
	}
	if !strings.Contains(output, "RequestIDs: [7 8]") {
		t.Errorf("expected request IDs, got: %s", output)
	}
	if !strings.Contains(output, "Status: TRY_AGAIN (1)") {
		t.Errorf("expected status, got: %s", output)
	}
	if !strings.Contains(output, "Timed out") {
		t.Errorf("expected timeout marker, got: %s", output)
	}
}

func TestRunViewFilters(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		{Timestamp: ts, Layer: log.LayerHardware, Direction: log.DirectionIn, Category: log.CategoryProperty,
			Property: log.NewPropertyEvent(log.PropertyKindEvent, []vehicle.PropertyValue{{Prop: vehicle.PropGearSelection}})},
		{Timestamp: ts, Layer: log.LayerClient, Direction: log.DirectionIn, Category: log.CategorySubscription, ClientID: "client-1",
			Subscription: &log.SubscriptionEvent{Action: log.SubscriptionActionUnsubscribe, PropID: vehicle.PropEngineRPM}},
	}
	path := createTestLogFile(t, events)

	t.Run("Layer", func(t *testing.T) {
		var buf bytes.Buffer
		if err := RunView(path, Selection{Layer: "client"}, &buf); err != nil {
			t.Fatalf("RunView failed: %v", err)
		}
		if strings.Contains(buf.String(), "GEAR_SELECTION") {
			t.Errorf("hardware event should be filtered out: %s", buf.String())
		}
		if !strings.Contains(buf.String(), "UNSUBSCRIBE") {
			t.Errorf("expected subscription event: %s", buf.String())
		}
	})

	t.Run("Prop", func(t *testing.T) {
		var buf bytes.Buffer
		if err := RunView(path, Selection{Prop: "GEAR_SELECTION"}, &buf); err != nil {
			t.Fatalf("RunView failed: %v", err)
		}
		if !strings.Contains(buf.String(), "GEAR_SELECTION") {
			t.Errorf("expected gear event: %s", buf.String())
		}
		if strings.Contains(buf.String(), "ENGINE_RPM") {
			t.Errorf("rpm event should be filtered out: %s", buf.String())
		}
	})

	t.Run("InvalidLayer", func(t *testing.T) {
		var buf bytes.Buffer
		if err := RunView(path, Selection{Layer: "wire"}, &buf); err == nil {
			t.Fatal("expected error for invalid layer")
		}
	})
}

func TestSelectionFilter(t *testing.T) {
	f, err := Selection{
		ClientID:  "c1",
		Direction: "OUT",
		Category:  "request",
		TimeStart: "2026-01-28T10:00:00Z",
	}.Filter()
	if err != nil {
		t.Fatalf("Filter failed: %v", err)
	}
	if f.ClientID != "c1" {
		t.Errorf("ClientID = %q", f.ClientID)
	}
	if f.Direction == nil || *f.Direction != log.DirectionOut {
		t.Errorf("Direction = %v", f.Direction)
	}
	if f.Category == nil || *f.Category != log.CategoryRequest {
		t.Errorf("Category = %v", f.Category)
	}
	if f.TimeStart == nil || f.TimeStart.Hour() != 10 {
		t.Errorf("TimeStart = %v", f.TimeStart)
	}
	if f.TimeEnd != nil {
		t.Errorf("TimeEnd should be unset, got %v", f.TimeEnd)
	}

	if _, err := (Selection{TimeEnd: "yesterday"}).Filter(); err == nil {
		t.Error("expected error for invalid time")
	}
	if _, err := (Selection{Direction: "sideways"}).Filter(); err == nil {
		t.Error("expected error for invalid direction")
	}
}
