package dto

import (
	"bytes"
	"encoding/json"

	"github.com/google/uuid"
)

// OptionalRoomRef различает отсутствующее поле, null и значение
type OptionalRoomRef struct {
	Set    bool
	RoomID *uuid.UUID
}

func (o *OptionalRoomRef) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.RoomID = nil
		return nil
	}

	var id uuid.UUID
	if err := json.Unmarshal(data, &id); err != nil {
		return err
	}
	o.RoomID = &id
	return nil
}
