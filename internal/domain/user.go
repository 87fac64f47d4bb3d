// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"strings"
)

const (
	MaxUserIDLen      = 64
	MaxDisplayNameLen = 48
)

var (
	ErrUserIDEmpty   = errors.New("user id empty")
	ErrUserIDTooLong = errors.New("user id too long")
	ErrRoomIDEmpty   = errors.New("room id empty")
)

type UserID string

// Identity is the realtime identity of one session. It does not change while
// the session lives and is passed into every join.
type Identity struct {
	UserID      UserID `json:"userId"`
	DisplayName string `json:"displayName"`
	AvatarID    string `json:"avatarId"`
}

func (i Identity) Validate() error {
	id := strings.TrimSpace(string(i.UserID))
	if id == "" {
		return ErrUserIDEmpty
	}
	if len(id) > MaxUserIDLen {
		return ErrUserIDTooLong
	}
	return nil
}
