package models

import "encoding/json"

type EventName string

// Client to server.
const (
	EventJoinProjectChannel  EventName = "joinProjectChannel"
	EventLeaveProjectChannel EventName = "leaveProjectChannel"
	EventSendMessage         EventName = "sendMessage"
	EventTyping              EventName = "typing"
	EventStopTyping          EventName = "stopTyping"
)

// Server to client.
const (
	EventMessageHistory EventName = "messageHistory"
	EventReceiveMessage EventName = "receiveMessage"
	EventChannelError   EventName = "channelError"
	EventMessageError   EventName = "messageError"
	EventUserTyping     EventName = "userTyping"
	EventUserStopTyping EventName = "userStopTyping"
	EventError          EventName = "error"
)

// Frame is the envelope of every text frame exchanged over the socket.
type Frame struct {
	Event EventName       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Event is an outbound frame before encoding.
type Event struct {
	Name EventName
	Data interface{}
}

func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Event EventName   `json:"event"`
		Data  interface{} `json:"data"`
	}{e.Name, e.Data})
}

type SendMessagePayload struct {
	ProjectID string `json:"projectId"`
	Content   string `json:"content"`
}

type UserTypingPayload struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	ProjectID   string `json:"projectId"`
}

type UserStopTypingPayload struct {
	UserID    string `json:"userId"`
	ProjectID string `json:"projectId"`
}
