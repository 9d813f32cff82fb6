package services

import (
	"context"
	"errors"

	"project-chat/internal/database"
	"project-chat/pkg/logger"
)

// AccessService decides who may join and post to a project's channel.
type AccessService struct {
	projects database.ProjectRepository
}

func NewAccessService(projects database.ProjectRepository) *AccessService {
	return &AccessService{projects: projects}
}

// CanAccessProject reports whether userID manages the project or belongs to
// its linked team. It reads the project fresh on every call. A missing
// project or unresolvable team yields false with a nil error; only store
// failures are returned as errors, and they also deny access.
func (s *AccessService) CanAccessProject(ctx context.Context, projectID, userID string) (bool, error) {
	project, err := s.projects.GetProjectWithTeam(ctx, projectID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	if project.ManagerID == userID {
		return true, nil
	}

	if project.Team == nil {
		logger.Warn("Project %s has no resolvable team", projectID)
		return false, nil
	}

	return project.Team.HasMember(userID), nil
}
