package main

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/openvhal/vhal-go/pkg/fakehw"
	"github.com/openvhal/vhal-go/pkg/vehicle"
)

const simulationTick = time.Second

// Gear values reported by GEAR_SELECTION.
const (
	gearPark  int32 = 4
	gearDrive int32 = 8
)

// simulator drives a simple trip: leave park, accelerate, cruise, brake,
// park again.
type simulator struct {
	hw     *fakehw.Hardware
	logger *slog.Logger
	step   int
	gear   int32
}

func newSimulator(hw *fakehw.Hardware, logger *slog.Logger) *simulator {
	return &simulator{hw: hw, logger: logger, gear: gearPark}
}

// Run ticks until ctx is done.
func (s *simulator) Run(ctx context.Context) {
	s.logger.Info("simulation started")
	ticker := time.NewTicker(simulationTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("simulation stopped")
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// tripLength is the number of ticks of one simulated trip.
const tripLength = 60

func (s *simulator) tick() {
	phase := s.step % tripLength
	s.step++

	speed := speedAt(phase)
	gear := gearDrive
	if speed == 0 {
		gear = gearPark
	}
	rpm := 800 + speed*90

	s.inject(vehicle.PropPerfVehicleSpeed, vehicle.RawValue{FloatValues: []float32{speed}})
	s.inject(vehicle.PropEngineRPM, vehicle.RawValue{FloatValues: []float32{rpm}})
	if gear != s.gear {
		s.gear = gear
		s.inject(vehicle.PropGearSelection, vehicle.RawValue{Int32Values: []int32{gear}})
		s.logger.Debug("simulated gear change", "gear", gear)
	}
}

// speedAt returns the speed in m/s for a trip phase.
func speedAt(phase int) float32 {
	switch {
	case phase < 5 || phase >= 55:
		return 0
	case phase < 20:
		return float32(phase-5) * 2
	case phase < 40:
		// Cruise with a small wobble.
		return 30 + float32(math.Sin(float64(phase)))
	default:
		return float32(55-phase) * 2
	}
}

func (s *simulator) inject(prop int32, value vehicle.RawValue) {
	err := s.hw.InjectEvent(vehicle.PropertyValue{Prop: prop, Value: value})
	if err != nil {
		// The property is not part of the loaded configuration.
		s.logger.Debug("simulation skipped property", "prop", vehicle.PropertyName(prop), "error", err)
	}
}
