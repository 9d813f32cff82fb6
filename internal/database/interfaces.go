package database

import (
	"context"
	"errors"

	"project-chat/internal/models"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrDuplicateEmail = errors.New("email already registered")
)

type UserRepository interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, req *models.RegisterRequest) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// ProjectRepository is the read-only lookup used for channel access checks.
type ProjectRepository interface {
	GetProjectWithTeam(ctx context.Context, projectID string) (*models.Project, error)
}

// MessageRepository is the Message Store. SaveMessage returns the stored
// message with its sender resolved; LoadRecentMessages returns at most
// limit messages, oldest first.
type MessageRepository interface {
	SaveMessage(ctx context.Context, projectID, senderID, content string) (*models.Message, error)
	LoadRecentMessages(ctx context.Context, projectID string, limit int) ([]*models.Message, error)
}

type Database interface {
	UserRepository
	ProjectRepository
	MessageRepository
	Ping(ctx context.Context) error
	Close() error
}
