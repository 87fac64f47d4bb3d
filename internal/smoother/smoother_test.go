package smoother

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Venue/internal/domain"
	"github.com/dkeye/Venue/internal/protocol"
)

func sample(seq int64, ts, x, rotY float64) Sample {
	return Sample{
		TransformBroadcast: protocol.TransformBroadcast{
			UserID: "peer",
			Seq:    seq,
			Pose:   domain.Pose{X: x, Z: x, RotY: rotY, Anim: domain.AnimIdle},
		},
		TS: ts,
	}
}

func TestDefaults(t *testing.T) {
	o := New(Options{}).Options()
	assert.Equal(t, 150.0, o.BufferMs)
	assert.Equal(t, 1.5, o.SnapDistance)
	assert.Equal(t, math.Pi/2, o.SnapRotation)
	assert.Equal(t, 12, o.MaxSamples)
	assert.Equal(t, 3000.0, o.PruneMs)
}

func TestEmpty(t *testing.T) {
	_, ok := New(Options{}).GetSmoothed(1000)
	assert.False(t, ok)
}

func TestInterpolates(t *testing.T) {
	s := New(Options{BufferMs: 50, SnapDistance: 100, SnapRotation: math.Pi})
	require.True(t, s.IngestSample(sample(1, 0, 0, 0)))
	require.True(t, s.IngestSample(sample(2, 100, 10, 0.5*math.Pi)))

	got, ok := s.GetSmoothed(120)
	require.True(t, ok)
	assert.InDelta(t, 7, got.X, 1e-9)
	assert.InDelta(t, 7, got.Z, 1e-9)
	assert.InDelta(t, 0.35*math.Pi, got.RotY, 1e-9)
	assert.Equal(t, 70.0, got.TS)
	assert.Equal(t, int64(2), got.Seq)
}

func TestNoExtrapolation(t *testing.T) {
	s := New(Options{BufferMs: 50, SnapDistance: 100})
	first, last := sample(1, 1000, 0, 0), sample(2, 1100, 10, 0)
	s.IngestSample(first)
	s.IngestSample(last)

	got, _ := s.GetSmoothed(1000)
	assert.Equal(t, first, got)
	got, _ = s.GetSmoothed(5000)
	assert.Equal(t, last, got)
}

func TestSingleSampleReturnedVerbatim(t *testing.T) {
	s := New(Options{})
	only := sample(1, 500, 3, 0)
	s.IngestSample(only)
	got, ok := s.GetSmoothed(10_000)
	require.True(t, ok)
	assert.Equal(t, only, got)
}

func TestSnapOnDistance(t *testing.T) {
	s := New(Options{BufferMs: 50})
	next := sample(2, 100, 10, 0)
	s.IngestSample(sample(1, 0, 0, 0))
	s.IngestSample(next)

	for _, now := range []float64{60, 100, 140} {
		got, _ := s.GetSmoothed(now)
		assert.Equal(t, next, got)
	}
}

func TestSnapOnRotation(t *testing.T) {
	s := New(Options{BufferMs: 50})
	next := sample(2, 100, 0, math.Pi)
	s.IngestSample(sample(1, 0, 0, 0))
	s.IngestSample(next)

	got, _ := s.GetSmoothed(100)
	assert.Equal(t, next, got)
}

func TestRotationWrapsTheShortWay(t *testing.T) {
	s := New(Options{BufferMs: 50})
	s.IngestSample(sample(1, 0, 0, math.Pi-0.1))
	s.IngestSample(sample(2, 100, 0, -math.Pi+0.1))

	got, _ := s.GetSmoothed(100)
	assert.InDelta(t, math.Pi, got.RotY, 0.11)
	assert.Less(t, math.Cos(got.RotY), -0.99)
}

func TestAnimSwitchesAtMidpoint(t *testing.T) {
	s := New(Options{BufferMs: 0.001, SnapDistance: 100})
	a, b := sample(1, 0, 0, 0), sample(2, 100, 1, 0)
	b.Anim = domain.AnimWalk
	b.Speaking = true
	s.IngestSample(a)
	s.IngestSample(b)

	got, _ := s.GetSmoothed(40)
	assert.Equal(t, domain.AnimIdle, got.Anim)
	assert.False(t, got.Speaking)

	got, _ = s.GetSmoothed(60)
	assert.Equal(t, domain.AnimWalk, got.Anim)
	assert.True(t, got.Speaking)
}

func TestRejectsStaleSeq(t *testing.T) {
	s := New(Options{BufferMs: 50, SnapDistance: 100})
	s.IngestSample(sample(5, 0, 0, 0))
	s.IngestSample(sample(6, 100, 10, 0))
	before, _ := s.GetSmoothed(120)

	assert.False(t, s.IngestSample(sample(6, 110, 50, 0)))
	assert.False(t, s.IngestSample(sample(2, 120, 50, 0)))
	after, _ := s.GetSmoothed(120)
	assert.Equal(t, before, after)
	assert.Equal(t, 2, s.Len())
}

func TestRejectsNonFiniteTime(t *testing.T) {
	s := New(Options{})
	assert.False(t, s.IngestSample(sample(1, math.NaN(), 0, 0)))
	assert.False(t, s.IngestSample(sample(1, math.Inf(1), 0, 0)))
	assert.Equal(t, 0, s.Len())
}

func TestGetSmoothedIsIdempotent(t *testing.T) {
	s := New(Options{BufferMs: 50, SnapDistance: 100})
	s.IngestSample(sample(1, 0, 0, 0))
	s.IngestSample(sample(2, 100, 1, 0.3))
	s.IngestSample(sample(3, 200, 2, 0.6))

	first, _ := s.GetSmoothed(180)
	for i := 0; i < 5; i++ {
		got, _ := s.GetSmoothed(180)
		assert.Equal(t, first, got)
	}
}

func TestPruneCapsSamples(t *testing.T) {
	s := New(Options{MaxSamples: 3})
	for i := int64(1); i <= 10; i++ {
		s.IngestSample(sample(i, float64(i*10), 0, 0))
	}
	assert.Equal(t, 3, s.Len())
	got, _ := s.GetSmoothed(0)
	assert.Equal(t, int64(8), got.Seq)
}

func TestPruneDropsOldSamples(t *testing.T) {
	s := New(Options{PruneMs: 1000})
	s.IngestSample(sample(1, 100, 0, 0))
	s.IngestSample(sample(2, 1200, 0, 0))
	s.IngestSample(sample(3, 2000, 0, 0))
	assert.Equal(t, 2, s.Len())

	got, _ := s.GetSmoothed(0)
	assert.Equal(t, int64(2), got.Seq)
}

func TestClearResetsSeqGuard(t *testing.T) {
	s := New(Options{})
	s.IngestSample(sample(40, 100, 0, 0))
	assert.False(t, s.IngestSample(sample(1, 200, 0, 0)))

	s.Clear()
	assert.Equal(t, 0, s.Len())
	assert.True(t, s.IngestSample(sample(1, 200, 0, 0)))
}

func TestIngestEnvelope(t *testing.T) {
	s := New(Options{})
	payload := protocol.TransformBroadcast{UserID: "peer", Seq: 1, Pose: domain.Pose{X: 2}}

	assert.True(t, s.Ingest(protocol.Envelope{V: protocol.Version, T: protocol.EventAvatarTransformBroadcast, TS: 1234, Payload: payload}))
	assert.False(t, s.Ingest(protocol.Envelope{T: protocol.EventChatBroadcast, TS: 1300, Payload: protocol.ChatBroadcast{}}))
	assert.True(t, s.Ingest(protocol.Envelope{T: protocol.EventAvatarTransformBroadcast, TS: 1400, Payload: &protocol.TransformBroadcast{Seq: 2}}))

	got, _ := s.GetSmoothed(0)
	assert.Equal(t, 1234.0, got.TS)
	assert.Equal(t, 2.0, got.X)

	assert.True(t, s.IngestAt(protocol.TransformBroadcast{Seq: 3}, 1500))
	assert.Equal(t, 3, s.Len())
}
