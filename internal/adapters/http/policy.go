package http

import "github.com/dkeye/Venue/internal/domain"

type BackpressureAction int

const (
	DropFrame BackpressureAction = iota
	KickWatcher
)

// Policy is consulted every time an envelope cannot be queued for a
// spectator. dropped counts consecutive drops, this one included.
type Policy interface {
	OnBackPressure(room domain.RoomID, dropped int) BackpressureAction
}

// DropPolicy drops envelopes and keeps the spectator connected.
type DropPolicy struct{}

func (DropPolicy) OnBackPressure(domain.RoomID, int) BackpressureAction {
	return DropFrame
}

// KickAfter disconnects a spectator after Limit consecutive drops.
type KickAfter struct {
	Limit int
}

func (k KickAfter) OnBackPressure(_ domain.RoomID, dropped int) BackpressureAction {
	if k.Limit > 0 && dropped >= k.Limit {
		return KickWatcher
	}
	return DropFrame
}
