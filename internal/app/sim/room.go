package sim

import (
	"fmt"
	"sync"

	"github.com/dkeye/Venue/internal/domain"
)

// room is the in-memory state of one room. mu serializes every mutation
// together with the fan-out it causes.
type room struct {
	id domain.RoomID

	mu             sync.Mutex
	members        map[domain.UserID]*domain.MemberState
	order          []domain.UserID
	messageCounter int
}

func newRoom(id domain.RoomID) *room {
	return &room{
		id:      id,
		members: make(map[domain.UserID]*domain.MemberState),
	}
}

// upsert inserts m or overwrites the existing member with the same user id,
// keeping its position in join order.
func (r *room) upsert(m domain.MemberState) {
	if existing, ok := r.members[m.UserID]; ok {
		*existing = m
		return
	}
	r.members[m.UserID] = &m
	r.order = append(r.order, m.UserID)
}

func (r *room) remove(uid domain.UserID) bool {
	if _, ok := r.members[uid]; !ok {
		return false
	}
	delete(r.members, uid)
	for i, id := range r.order {
		if id == uid {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

func (r *room) member(uid domain.UserID) (*domain.MemberState, bool) {
	m, ok := r.members[uid]
	return m, ok
}

func (r *room) snapshot() []domain.MemberState {
	out := make([]domain.MemberState, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.members[id])
	}
	return out
}

func (r *room) nextMessageID() string {
	r.messageCounter++
	return fmt.Sprintf("msg-%d", r.messageCounter)
}

func (r *room) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}
