package domain

// Animation is the avatar animation state carried by every transform.
type Animation string

const (
	AnimIdle  Animation = "idle"
	AnimWalk  Animation = "walk"
	AnimDance Animation = "dance"
	AnimWave  Animation = "wave"
)

func Animations() []Animation {
	return []Animation{AnimIdle, AnimWalk, AnimDance, AnimWave}
}

func (a Animation) Valid() bool {
	switch a {
	case AnimIdle, AnimWalk, AnimDance, AnimWave:
		return true
	}
	return false
}

// Pose is the live transform of an avatar.
type Pose struct {
	X        float64   `json:"x"`
	Y        float64   `json:"y"`
	Z        float64   `json:"z"`
	RotY     float64   `json:"rotY"`
	Anim     Animation `json:"anim"`
	Speaking bool      `json:"speaking"`
}

// IdlePose is the pose every member starts with.
func IdlePose() Pose {
	return Pose{Anim: AnimIdle}
}

// MemberState represents user's presence in a room: identity plus pose.
// No transport or lifecycle logic here.
type MemberState struct {
	Identity
	Pose
}

// NewMember avoids raw literals in adapters and keeps construction obvious.
func NewMember(user Identity) MemberState {
	return MemberState{Identity: user, Pose: IdlePose()}
}
