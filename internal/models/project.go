package models

import "time"

type Team struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	ManagerID string   `json:"manager_id"`
	MemberIDs []string `json:"member_ids"`
}

// HasMember reports whether userID is listed among the team's members.
func (t *Team) HasMember(userID string) bool {
	if t == nil {
		return false
	}
	for _, id := range t.MemberIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Project is the read-only view the chat needs. Team is nil when the
// linked team cannot be resolved.
type Project struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ManagerID string `json:"manager_id"`
	Team      *Team  `json:"team,omitempty"`
}

type Sender struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
}

// Message is a persisted chat message with its sender resolved.
type Message struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"projectId"`
	Sender    Sender    `json:"sender"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

type HistoryResponse struct {
	ProjectID string     `json:"projectId"`
	Messages  []*Message `json:"messages"`
}
