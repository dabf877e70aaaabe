package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// RoomKind distinguishes service-scoped chats from standing general chats.
type RoomKind string

const (
	RoomService RoomKind = "service"
	RoomGeneral RoomKind = "general"
)

var ErrInvalidRoomKey = errors.New("invalid room key")

// RoomRef identifies a chat room of either kind.
type RoomRef struct {
	Kind RoomKind
	ID   int
}

// Key returns the canonical string form, e.g. "service:12" or "general:3".
func (r RoomRef) Key() string {
	return fmt.Sprintf("%s:%d", r.Kind, r.ID)
}

// ParseRoomRef parses the canonical room key form.
func ParseRoomRef(key string) (RoomRef, error) {
	kind, rawID, found := strings.Cut(key, ":")
	if !found {
		return RoomRef{}, ErrInvalidRoomKey
	}
	id, err := strconv.Atoi(rawID)
	if err != nil || id <= 0 {
		return RoomRef{}, ErrInvalidRoomKey
	}
	switch RoomKind(kind) {
	case RoomService, RoomGeneral:
		return RoomRef{Kind: RoomKind(kind), ID: id}, nil
	}
	return RoomRef{}, ErrInvalidRoomKey
}
