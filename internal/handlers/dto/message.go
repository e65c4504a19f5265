package dto

import "github.com/google/uuid"

// MessageRequest тело POST /room/:id/message
type MessageRequest struct {
	Text string `json:"text" form:"text"`
}

// CreateRoomRequest тело POST /room, имя необязательно
type CreateRoomRequest struct {
	Name string `json:"name" form:"name" binding:"max=100"`
}

// ActivityRequest тело PUT /user/current/activity.
// typingIn: null снимает отметку, отсутствие поля ничего не меняет
type ActivityRequest struct {
	Busy     *bool           `json:"busy"`
	TypingIn OptionalRoomRef `json:"typingIn"`
}

// WSRoomPayload данные room_join/room_leave/typing, если room_id не задан в конверте
type WSRoomPayload struct {
	RoomID uuid.UUID `json:"room_id"`
}

// WSMessagePayload данные сообщения message от клиента
type WSMessagePayload struct {
	Text string `json:"text"`
}
