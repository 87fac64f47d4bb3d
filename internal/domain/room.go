package domain

type RoomID string

type RoomInfo struct {
	ID          RoomID `json:"id"`
	MemberCount int    `json:"memberCount"`
}
