// Package smoother turns a sparse stream of remote transforms into a
// continuous pose by rendering a fixed delay behind the newest sample and
// interpolating between the two samples that bracket that instant.
package smoother

import (
	"math"
	"sync"

	"github.com/dkeye/Venue/internal/protocol"
)

type Options struct {
	// BufferMs is how far behind now the rendered pose lags.
	BufferMs float64 `mapstructure:"buffer_ms"`
	// SnapDistance is the largest positional jump that is still interpolated.
	SnapDistance float64 `mapstructure:"snap_distance"`
	// SnapRotation is the largest yaw change, in radians, that is still interpolated.
	SnapRotation float64 `mapstructure:"snap_rotation"`
	MaxSamples   int     `mapstructure:"max_samples"`
	PruneMs      float64 `mapstructure:"prune_ms"`
}

func DefaultOptions() Options {
	return Options{
		BufferMs:     150,
		SnapDistance: 1.5,
		SnapRotation: math.Pi / 2,
		MaxSamples:   12,
		PruneMs:      3000,
	}
}

// OrDefault replaces non-positive fields with defaults.
func (o Options) OrDefault() Options {
	d := DefaultOptions()
	if o.BufferMs <= 0 {
		o.BufferMs = d.BufferMs
	}
	if o.SnapDistance <= 0 {
		o.SnapDistance = d.SnapDistance
	}
	if o.SnapRotation <= 0 {
		o.SnapRotation = d.SnapRotation
	}
	if o.MaxSamples <= 0 {
		o.MaxSamples = d.MaxSamples
	}
	if o.PruneMs <= 0 {
		o.PruneMs = d.PruneMs
	}
	return o
}

// Sample is a transform broadcast stamped with its time in milliseconds.
type Sample struct {
	protocol.TransformBroadcast
	TS float64
}

// Smoother buffers samples for one remote entity. It is safe for concurrent
// use; GetSmoothed does not mutate state.
type Smoother struct {
	opts Options

	mu      sync.Mutex
	samples []Sample
}

func New(opts Options) *Smoother {
	opts = opts.OrDefault()
	return &Smoother{opts: opts, samples: make([]Sample, 0, opts.MaxSamples+1)}
}

func (s *Smoother) Options() Options { return s.opts }

// Ingest accepts an avatar_transform_broadcast envelope, using the envelope
// timestamp as the sample time. Other envelopes are ignored.
func (s *Smoother) Ingest(env protocol.Envelope) bool {
	if env.T != protocol.EventAvatarTransformBroadcast {
		return false
	}
	var payload protocol.TransformBroadcast
	switch p := env.Payload.(type) {
	case protocol.TransformBroadcast:
		payload = p
	case *protocol.TransformBroadcast:
		if p == nil {
			return false
		}
		payload = *p
	default:
		return false
	}
	return s.IngestSample(Sample{TransformBroadcast: payload, TS: float64(env.TS)})
}

// IngestAt accepts a payload that carries no sender time.
func (s *Smoother) IngestAt(payload protocol.TransformBroadcast, receivedAtMs float64) bool {
	return s.IngestSample(Sample{TransformBroadcast: payload, TS: receivedAtMs})
}

// IngestSample appends sample unless its time is not finite or its seq does
// not advance past the last accepted sample. It reports whether the sample
// was kept.
func (s *Smoother) IngestSample(sample Sample) bool {
	if math.IsNaN(sample.TS) || math.IsInf(sample.TS, 0) {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := len(s.samples); n > 0 && sample.Seq <= s.samples[n-1].Seq {
		return false
	}
	s.samples = append(s.samples, sample)
	s.prune(sample.TS)
	return true
}

func (s *Smoother) prune(latest float64) {
	if over := len(s.samples) - s.opts.MaxSamples; over > 0 {
		s.samples = append(s.samples[:0], s.samples[over:]...)
	}
	cutoff := latest - s.opts.PruneMs
	if cutoff <= 0 {
		return
	}
	i := 0
	for i < len(s.samples) && s.samples[i].TS < cutoff {
		i++
	}
	if i > 0 {
		s.samples = append(s.samples[:0], s.samples[i:]...)
	}
}

// GetSmoothed returns the pose to render at nowMs. The second result is
// false when no sample has been ingested. No extrapolation happens: before
// the first sample the first one is returned, after the last the last one.
func (s *Smoother) GetSmoothed(nowMs float64) (Sample, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.samples) == 0 {
		return Sample{}, false
	}
	target := nowMs - s.opts.BufferMs
	if len(s.samples) == 1 || target <= s.samples[0].TS {
		return s.samples[0], true
	}

	for i := 1; i < len(s.samples); i++ {
		prev, next := s.samples[i-1], s.samples[i]
		if target > next.TS {
			continue
		}

		t := clamp01((target - prev.TS) / math.Max(next.TS-prev.TS, 1))
		if distance(prev, next) > s.opts.SnapDistance || math.Abs(angleDelta(prev.RotY, next.RotY)) > s.opts.SnapRotation {
			return next, true
		}

		out := next
		out.X = lerp(prev.X, next.X, t)
		out.Y = lerp(prev.Y, next.Y, t)
		out.Z = lerp(prev.Z, next.Z, t)
		out.RotY = prev.RotY + angleDelta(prev.RotY, next.RotY)*t
		if t < 0.5 {
			out.Anim = prev.Anim
			out.Speaking = prev.Speaking
		}
		out.TS = target
		return out, true
	}
	return s.samples[len(s.samples)-1], true
}

// Clear drops every buffered sample, including the seq high-water mark.
func (s *Smoother) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = s.samples[:0]
}

func (s *Smoother) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.samples)
}

func distance(a, b Sample) float64 {
	dx, dy, dz := b.X-a.X, b.Y-a.Y, b.Z-a.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// angleDelta is the signed shortest rotation from a to b, in [-π, π].
func angleDelta(a, b float64) float64 {
	return math.Atan2(math.Sin(b-a), math.Cos(b-a))
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }

func clamp01(v float64) float64 {
	return math.Min(math.Max(v, 0), 1)
}
