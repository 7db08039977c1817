// Package commands implements the vhal-log CLI commands.
package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/openvhal/vhal-go/pkg/log"
	"github.com/openvhal/vhal-go/pkg/propconfig"
	"github.com/openvhal/vhal-go/pkg/vehicle"
)

// Selection holds the command-line filter flags shared by view, export
// and filter. Empty fields match everything.
type Selection struct {
	ClientID  string
	Layer     string
	Direction string
	Category  string
	Prop      string
	TimeStart string
	TimeEnd   string
}

// Filter converts the selection into a log.Filter.
func (s Selection) Filter() (log.Filter, error) {
	f := log.Filter{ClientID: s.ClientID}
	if s.Layer != "" {
		l, err := parseLayer(s.Layer)
		if err != nil {
			return f, err
		}
		f.Layer = &l
	}
	if s.Direction != "" {
		d, err := parseDirection(s.Direction)
		if err != nil {
			return f, err
		}
		f.Direction = &d
	}
	if s.Category != "" {
		c, err := parseCategory(s.Category)
		if err != nil {
			return f, err
		}
		f.Category = &c
	}
	if s.Prop != "" {
		p, err := propconfig.ParsePropID(s.Prop)
		if err != nil {
			return f, err
		}
		f.PropID = &p
	}
	var err error
	if f.TimeStart, err = parseTime("time-start", s.TimeStart); err != nil {
		return f, err
	}
	if f.TimeEnd, err = parseTime("time-end", s.TimeEnd); err != nil {
		return f, err
	}
	return f, nil
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	fmt.Fprintf(w, "%s [client:%s] %-3s %s %s\n",
		ts, shortenClientID(event.ClientID), event.Direction, event.Layer, typeLabel(event))

	switch {
	case event.Property != nil:
		formatPropertyDetails(w, event.Property)
	case event.Subscription != nil:
		formatSubscriptionDetails(w, event.Subscription)
	case event.Request != nil:
		formatRequestDetails(w, event.Request)
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w)
}

func typeLabel(event log.Event) string {
	switch {
	case event.Property != nil:
		return event.Property.Kind.String()
	case event.Subscription != nil:
		return event.Subscription.Action.String()
	case event.Request != nil:
		return event.Request.Kind.String()
	case event.StateChange != nil:
		return "State"
	case event.Error != nil:
		return "Error"
	}
	return "Unknown"
}

// shortenClientID returns the first 8 characters of the client ID, or
// "-" for hardware-only events.
func shortenClientID(id string) string {
	if id == "" {
		return "-"
	}
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func formatPropertyDetails(w io.Writer, p *log.PropertyEvent) {
	if p.Count > len(p.Values) {
		fmt.Fprintf(w, "  Values: %d (showing %d)\n", p.Count, len(p.Values))
	} else {
		fmt.Fprintf(w, "  Values: %d\n", p.Count)
	}
	for _, v := range p.Values {
		fmt.Fprintf(w, "    %s\n", v)
	}
}

func formatSubscriptionDetails(w io.Writer, s *log.SubscriptionEvent) {
	if s.PropID != 0 {
		fmt.Fprintf(w, "  Property: %s\n", vehicle.PropertyName(s.PropID))
	}
	for _, o := range s.Options {
		fmt.Fprintf(w, "    %s\n", o)
	}
}

func formatRequestDetails(w io.Writer, r *log.RequestEvent) {
	fmt.Fprintf(w, "  RequestIDs: %v\n", r.RequestIDs)
	if r.Status != nil {
		fmt.Fprintf(w, "  Status: %s (%d)\n", r.Status, *r.Status)
	}
	if r.TimedOut {
		fmt.Fprintln(w, "  Timed out")
	}
}

func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	fmt.Fprintf(w, "  Entity: %s\n", sc.Entity)
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

func formatErrorDetails(w io.Writer, err *log.ErrorEventData) {
	fmt.Fprintf(w, "  Layer: %s\n", err.Layer)
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if err.Code != nil {
		fmt.Fprintf(w, "  Code: %s\n", *err.Code)
	}
	if err.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", err.Context)
	}
}

// parseLayer parses a layer string (case-insensitive).
func parseLayer(s string) (log.Layer, error) {
	switch strings.ToLower(s) {
	case "hardware":
		return log.LayerHardware, nil
	case "manager":
		return log.LayerManager, nil
	case "client":
		return log.LayerClient, nil
	default:
		return 0, fmt.Errorf("invalid layer: %s (must be hardware, manager, or client)", s)
	}
}

// parseDirection parses a direction string (case-insensitive).
func parseDirection(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	default:
		return 0, fmt.Errorf("invalid direction: %s (must be in or out)", s)
	}
}

// parseCategory parses a category string (case-insensitive).
func parseCategory(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "property":
		return log.CategoryProperty, nil
	case "subscription":
		return log.CategorySubscription, nil
	case "request":
		return log.CategoryRequest, nil
	case "state":
		return log.CategoryState, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be property, subscription, request, state, or error)", s)
	}
}

// RunView prints every event matching sel.
func RunView(path string, sel Selection, output io.Writer) error {
	filter, err := sel.Filter()
	if err != nil {
		return err
	}
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(output, event)
	}
}
