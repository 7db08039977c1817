package subscription

import (
	"sort"

	"github.com/google/uuid"

	"github.com/openvhal/vhal-go/pkg/vehicle"
)

// ClientID identifies a registered callback endpoint.
type ClientID = uuid.UUID

// HalClient is one callback endpoint and its subscriptions. Its mutable
// state is guarded by the owning Manager.
type HalClient struct {
	id       ClientID
	callback vehicle.Callback

	subscriptions map[int32]vehicle.SubscribeOptions
}

func newHalClient(id ClientID, cb vehicle.Callback) *HalClient {
	return &HalClient{
		id:            id,
		callback:      cb,
		subscriptions: make(map[int32]vehicle.SubscribeOptions),
	}
}

// ID returns the client identifier.
func (c *HalClient) ID() ClientID { return c.id }

// Callback returns the endpoint events are delivered to.
func (c *HalClient) Callback() vehicle.Callback { return c.callback }

func (c *HalClient) addOrUpdate(opts vehicle.SubscribeOptions) {
	if old, ok := c.subscriptions[opts.PropID]; ok {
		merged, _ := MergeSubscribeOptions(old, opts)
		c.subscriptions[opts.PropID] = merged
		return
	}
	c.subscriptions[opts.PropID] = opts
}

// isSubscribed reports whether an event for (propID, areaID) with the
// given source flags should reach this client.
func (c *HalClient) isSubscribed(propID, areaID int32, flags vehicle.SubscribeFlags) bool {
	opts, ok := c.subscriptions[propID]
	if !ok {
		return false
	}
	return opts.Flags&flags != 0 && opts.AreaMask.Matches(areaID)
}

func (c *HalClient) snapshot() []vehicle.SubscribeOptions {
	out := make([]vehicle.SubscribeOptions, 0, len(c.subscriptions))
	for _, o := range c.subscriptions {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PropID < out[j].PropID })
	return out
}

// MergeSubscribeOptions combines an existing subscription with a new one
// for the same property and reports whether the result differs in a way
// the hardware must learn about.
func MergeSubscribeOptions(old, upd vehicle.SubscribeOptions) (vehicle.SubscribeOptions, bool) {
	merged := vehicle.SubscribeOptions{
		PropID:       old.PropID,
		AreaMask:     old.AreaMask.Union(upd.AreaMask),
		SampleRateHz: max(old.SampleRateHz, upd.SampleRateHz),
		Flags:        old.Flags | upd.Flags,
	}
	changed := merged.SampleRateHz > old.SampleRateHz ||
		merged.AreaMask != old.AreaMask ||
		merged.Flags != old.Flags
	return merged, changed
}
