package http

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWS struct {
	mu     sync.Mutex
	closed bool
}

func (f *fakeWS) ReadMessage() (int, []byte, error) { return 0, nil, ErrClosed }
func (f *fakeWS) WriteMessage(int, []byte) error    { return nil }
func (f *fakeWS) SetWriteDeadline(time.Time) error  { return nil }
func (f *fakeWS) SetReadDeadline(time.Time) error   { return nil }
func (f *fakeWS) SetPongHandler(func(string) error) {}
func (f *fakeWS) SetReadLimit(int64)                {}
func (f *fakeWS) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func TestWatchConnBackpressure(t *testing.T) {
	ws := &fakeWS{}
	c := newWatchConn(ws, 2)

	require.NoError(t, c.TrySend([]byte("1")))
	require.NoError(t, c.TrySend([]byte("2")))
	assert.ErrorIs(t, c.TrySend([]byte("3")), ErrBackpressure)

	c.Close()
	c.Close()
	assert.True(t, ws.closed)
	assert.ErrorIs(t, c.TrySend([]byte("4")), ErrClosed)
}

func TestPolicies(t *testing.T) {
	assert.Equal(t, DropFrame, DropPolicy{}.OnBackPressure("r", 1000))

	k := KickAfter{Limit: 3}
	assert.Equal(t, DropFrame, k.OnBackPressure("r", 2))
	assert.Equal(t, KickWatcher, k.OnBackPressure("r", 3))
	assert.Equal(t, DropFrame, KickAfter{}.OnBackPressure("r", 50))
}
