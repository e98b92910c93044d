package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MaxMessages is how many chat messages a room retains.
const MaxMessages = 100

// Message is one chat line in a room.
type Message struct {
	ID       string    `json:"id"`
	RoomCode string    `json:"room_code"`
	UserID   string    `json:"user_id"`
	Text     string    `json:"text"`
	SentAt   time.Time `json:"sent_at"`
}

func NewMessage(roomCode, userID, text string) Message {
	return Message{
		ID:       uuid.NewString(),
		RoomCode: roomCode,
		UserID:   userID,
		Text:     text,
		SentAt:   time.Now().UTC(),
	}
}

func (m Message) MarshalBinary() ([]byte, error) { return json.Marshal(m) }

func (m *Message) UnmarshalBinary(data []byte) error { return json.Unmarshal(data, m) }
