package ws

import "github.com/masteryquest/backend/internal/models"

type MessageType string

const (
	MsgSnapshot MessageType = "snapshot"
	MsgError    MessageType = "error"
)

type WSMessage struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload"`
}

type SnapshotPayload struct {
	Progress *models.ProgressState `json:"progress"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
