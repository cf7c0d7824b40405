// Package state keeps the per-device memory of the stateful estimators and
// policies between two decisions.
package state

import (
	"hash/fnv"
	"math/rand/v2"
	"sync"
	"time"
)

// RecursiveFilter is the scalar Kalman state of a device.
type RecursiveFilter struct {
	Estimate    float64
	Uncertainty float64
}

// Particle is one hypothesis of the particle filter.
type Particle struct {
	SNR    float64
	Weight float64
}

// ParticlePopulation is the particle filter state of a device.
type ParticlePopulation struct {
	Particles []Particle
}

// FeedbackLoop is the PID controller memory of a device.
type FeedbackLoop struct {
	Integral  float64
	PrevError float64
	PrevTime  time.Duration
}

// Device groups every piece of state kept for one device. Each field is nil
// until the variant that owns it runs for the first time.
type Device struct {
	ID string

	Recursive *RecursiveFilter
	Particles *ParticlePopulation
	Feedback  *FeedbackLoop

	mu  sync.Mutex
	src rand.Source
}

// Rand returns the device's random source. Draws for one device do not
// depend on how decisions for other devices interleave.
func (d *Device) Rand() rand.Source {
	return d.src
}

// Registry hands out device state, creating it on first use.
type Registry struct {
	mu      sync.Mutex
	devices map[string]*Device
	seed    uint64
}

// NewRegistry returns an empty registry. seed drives every random source it
// creates.
func NewRegistry(seed uint64) *Registry {
	return &Registry{
		devices: make(map[string]*Device),
		seed:    seed,
	}
}

// Acquire returns the state of id and holds it exclusively until release is
// called.
func (r *Registry) Acquire(id string) (dev *Device, release func()) {
	r.mu.Lock()
	d, ok := r.devices[id]
	if !ok {
		h := fnv.New64a()
		h.Write([]byte(id))
		d = &Device{
			ID:  id,
			src: rand.NewPCG(r.seed, h.Sum64()),
		}
		r.devices[id] = d
	}
	r.mu.Unlock()

	d.mu.Lock()
	return d, d.mu.Unlock
}

// Forget drops the state of id. It is meant for device deregistration.
func (r *Registry) Forget(id string) {
	r.mu.Lock()
	delete(r.devices, id)
	r.mu.Unlock()
}

// Len returns the number of tracked devices.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.devices)
}
