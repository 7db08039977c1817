package fakehw

import (
	"time"

	"github.com/openvhal/vhal-go/pkg/vehicle"
)

// GetValues implements hal.AsyncHardware. Results are delivered on a
// separate goroutine after Config.AsyncDelay.
func (h *Hardware) GetValues(requests []vehicle.GetValueRequest, done func([]vehicle.GetValueResult)) error {
	reqs := append([]vehicle.GetValueRequest(nil), requests...)
	go func() {
		h.delay()
		results := make([]vehicle.GetValueResult, len(reqs))
		for i, r := range reqs {
			results[i].RequestID = r.RequestID
			v, err := h.Get(r.Prop)
			if err != nil {
				results[i].Status = vehicle.StatusOf(err)
				continue
			}
			results[i].Prop = &v
		}
		done(results)
	}()
	return nil
}

// SetValues implements hal.AsyncHardware.
func (h *Hardware) SetValues(requests []vehicle.SetValueRequest, done func([]vehicle.SetValueResult)) error {
	reqs := append([]vehicle.SetValueRequest(nil), requests...)
	go func() {
		h.delay()
		results := make([]vehicle.SetValueResult, len(reqs))
		for i, r := range reqs {
			results[i] = vehicle.SetValueResult{RequestID: r.RequestID, Status: vehicle.StatusOf(h.Set(r.Value))}
		}
		done(results)
	}()
	return nil
}

func (h *Hardware) delay() {
	if h.config.AsyncDelay > 0 {
		time.Sleep(h.config.AsyncDelay)
	}
}
