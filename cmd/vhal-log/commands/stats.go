package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/openvhal/vhal-go/pkg/log"
	"github.com/openvhal/vhal-go/pkg/vehicle"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents       int
	EventsByLayer     map[log.Layer]int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	ValuesByProp      map[int32]int
	Clients           map[string]*ClientStats
	Timeouts          int
	Errors            int
	TimeRange         struct {
		Start time.Time
		End   time.Time
	}
}

// ClientStats holds statistics for a single client.
type ClientStats struct {
	FirstSeen     time.Time
	LastSeen      time.Time
	Events        int
	Subscriptions int
	Requests      int
}

// RunStats analyzes the log file and prints statistics.
func RunStats(path string, w io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := &Stats{
		EventsByLayer:     make(map[log.Layer]int),
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		ValuesByProp:      make(map[int32]int),
		Clients:           make(map[string]*ClientStats),
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		stats.add(event)
	}

	printStats(w, stats)
	return nil
}

func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	s.EventsByLayer[event.Layer]++
	s.EventsByCategory[event.Category]++
	s.EventsByDirection[event.Direction]++

	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	if event.Property != nil {
		for _, v := range event.Property.Values {
			s.ValuesByProp[v.Prop]++
		}
	}
	if event.Request != nil && event.Request.TimedOut {
		s.Timeouts++
	}
	if event.Error != nil {
		s.Errors++
	}

	if event.ClientID == "" {
		return
	}
	c, ok := s.Clients[event.ClientID]
	if !ok {
		c = &ClientStats{FirstSeen: event.Timestamp, LastSeen: event.Timestamp}
		s.Clients[event.ClientID] = c
	}
	c.Events++
	if event.Timestamp.After(c.LastSeen) {
		c.LastSeen = event.Timestamp
	}
	if event.Subscription != nil {
		c.Subscriptions++
	}
	if event.Request != nil {
		c.Requests++
	}
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== VHAL Log Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Layer:")
	for _, layer := range []log.Layer{log.LayerHardware, log.LayerManager, log.LayerClient} {
		if count := stats.EventsByLayer[layer]; count > 0 {
			fmt.Fprintf(w, "  %-14s %d\n", layer.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryProperty, log.CategorySubscription, log.CategoryRequest, log.CategoryState, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-14s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Direction:")
	for _, dir := range []log.Direction{log.DirectionIn, log.DirectionOut} {
		if count := stats.EventsByDirection[dir]; count > 0 {
			fmt.Fprintf(w, "  %-14s %d\n", dir.String()+":", count)
		}
	}

	if len(stats.ValuesByProp) > 0 {
		props := make([]int32, 0, len(stats.ValuesByProp))
		for p := range stats.ValuesByProp {
			props = append(props, p)
		}
		sort.Slice(props, func(i, j int) bool {
			if stats.ValuesByProp[props[i]] != stats.ValuesByProp[props[j]] {
				return stats.ValuesByProp[props[i]] > stats.ValuesByProp[props[j]]
			}
			return props[i] < props[j]
		})
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Values by Property:")
		for _, p := range props {
			fmt.Fprintf(w, "  %-24s %d\n", vehicle.PropertyName(p)+":", stats.ValuesByProp[p])
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Clients: %d\n", len(stats.Clients))
	if len(stats.Clients) > 0 {
		type clientInfo struct {
			id    string
			stats *ClientStats
		}
		clients := make([]clientInfo, 0, len(stats.Clients))
		for id, cs := range stats.Clients {
			clients = append(clients, clientInfo{id, cs})
		}
		sort.Slice(clients, func(i, j int) bool {
			return clients[i].stats.FirstSeen.Before(clients[j].stats.FirstSeen)
		})

		fmt.Fprintln(w)
		for _, c := range clients {
			duration := c.stats.LastSeen.Sub(c.stats.FirstSeen).Round(time.Millisecond)
			fmt.Fprintf(w, "  [%s] %d events, duration %s\n", shortenClientID(c.id), c.stats.Events, duration)
			if c.stats.Subscriptions > 0 {
				fmt.Fprintf(w, "           Subscription changes: %d\n", c.stats.Subscriptions)
			}
			if c.stats.Requests > 0 {
				fmt.Fprintf(w, "           Requests: %d\n", c.stats.Requests)
			}
		}
	}

	if stats.Timeouts > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Timeouts: %d\n", stats.Timeouts)
	}
	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}
