package database

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"project-chat/internal/models"
	"project-chat/pkg/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

//go:embed schema.sql
var schema string

type PostgresDB struct {
	pool *pgxpool.Pool
}

func NewPostgresDB(ctx context.Context, databaseURL string) (*PostgresDB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Connected to database successfully")
	return &PostgresDB{pool: pool}, nil
}

// NewFromPool wraps an existing pool, mainly for tests.
func NewFromPool(pool *pgxpool.Pool) *PostgresDB {
	return &PostgresDB{pool: pool}
}

// Migrate creates the tables the chat reads and writes if they do not exist.
func (db *PostgresDB) Migrate(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func (db *PostgresDB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

func (db *PostgresDB) Close() error {
	db.pool.Close()
	return nil
}

// User Repository Implementation
func (db *PostgresDB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT id::text, email, full_name, role, password_hash, created_at FROM users WHERE email = $1`

	user := &models.User{}
	err := db.pool.QueryRow(ctx, query, strings.ToLower(strings.TrimSpace(email))).Scan(
		&user.ID, &user.Email, &user.FullName, &user.Role, &user.PasswordHash, &user.CreatedAt,
	)
	if err != nil {
		return nil, mapError(err)
	}

	return user, nil
}

func (db *PostgresDB) CreateUser(ctx context.Context, req *models.RegisterRequest) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	role := req.Role
	if role == "" {
		role = models.RoleTeamMember
	}

	query := `
		INSERT INTO users (id, email, full_name, role, password_hash, created_at)
		VALUES ($1::uuid, $2, $3, $4, $5, NOW())
		RETURNING id::text, email, full_name, role, created_at`

	user := &models.User{}
	err = db.pool.QueryRow(ctx, query,
		uuid.New().String(), strings.ToLower(strings.TrimSpace(req.Email)), strings.TrimSpace(req.FullName), role, string(hash),
	).Scan(&user.ID, &user.Email, &user.FullName, &user.Role, &user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", mapError(err))
	}

	return user, nil
}

func (db *PostgresDB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT id::text, email, full_name, role, created_at FROM users WHERE id = $1::uuid`

	user := &models.User{}
	err := db.pool.QueryRow(ctx, query, id).Scan(
		&user.ID, &user.Email, &user.FullName, &user.Role, &user.CreatedAt,
	)
	if err != nil {
		return nil, mapError(err)
	}

	return user, nil
}

// Project Repository Implementation

// GetProjectWithTeam loads the project and, when it resolves, its linked
// team with member ids. A dangling team reference leaves Team nil.
func (db *PostgresDB) GetProjectWithTeam(ctx context.Context, projectID string) (*models.Project, error) {
	query := `
		SELECT p.id::text, p.name, p.manager_id::text, t.id::text, t.name, t.manager_id::text
		FROM projects p
		LEFT JOIN teams t ON t.id = p.team_id
		WHERE p.id = $1::uuid`

	project := &models.Project{}
	var teamID, teamName, teamManagerID *string
	err := db.pool.QueryRow(ctx, query, projectID).Scan(
		&project.ID, &project.Name, &project.ManagerID, &teamID, &teamName, &teamManagerID,
	)
	if err != nil {
		return nil, mapError(err)
	}

	if teamID == nil {
		return project, nil
	}

	rows, err := db.pool.Query(ctx, `SELECT user_id::text FROM team_members WHERE team_id = $1::uuid`, *teamID)
	if err != nil {
		return nil, err
	}
	memberIDs, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}

	project.Team = &models.Team{
		ID:        *teamID,
		Name:      deref(teamName),
		ManagerID: deref(teamManagerID),
		MemberIDs: memberIDs,
	}
	return project, nil
}

// Message Repository Implementation
func (db *PostgresDB) SaveMessage(ctx context.Context, projectID, senderID, content string) (*models.Message, error) {
	query := `
		WITH inserted AS (
			INSERT INTO messages (id, project_id, sender_id, content, created_at)
			VALUES ($1::uuid, $2::uuid, $3::uuid, $4, clock_timestamp())
			RETURNING id, project_id, sender_id, content, created_at
		)
		SELECT i.id::text, i.project_id::text, i.sender_id::text, u.full_name, i.content, i.created_at
		FROM inserted i
		JOIN users u ON u.id = i.sender_id`

	msg := &models.Message{}
	err := db.pool.QueryRow(ctx, query, uuid.New().String(), projectID, senderID, content).Scan(
		&msg.ID, &msg.ProjectID, &msg.Sender.ID, &msg.Sender.FullName, &msg.Content, &msg.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to save message: %w", mapError(err))
	}

	return msg, nil
}

func (db *PostgresDB) LoadRecentMessages(ctx context.Context, projectID string, limit int) ([]*models.Message, error) {
	query := `
		SELECT m.id::text, m.project_id::text, m.sender_id::text, u.full_name, m.content, m.created_at
		FROM messages m
		JOIN users u ON m.sender_id = u.id
		WHERE m.project_id = $1::uuid
		ORDER BY m.created_at DESC, m.seq DESC
		LIMIT $2`

	rows, err := db.pool.Query(ctx, query, projectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]*models.Message, 0, limit)
	for rows.Next() {
		msg := &models.Message{}
		if err := rows.Scan(&msg.ID, &msg.ProjectID, &msg.Sender.ID, &msg.Sender.FullName, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to show oldest first
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

func mapError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return ErrDuplicateEmail
		case "22P02":
			// invalid_text_representation: a malformed uuid cannot match any row
			return ErrNotFound
		}
	}
	return err
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
