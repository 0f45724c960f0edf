package repository

import (
	"context"

	"github.com/chm413/mochi-link/models"
)

// OperatorRepository persists operator accounts for the admin API and bot
// command surface, grounded on the teacher's UserRepository.
type OperatorRepository interface {
	Create(ctx context.Context, operator *models.Operator) error
	GetByID(ctx context.Context, id string) (*models.Operator, error)
	GetByUsername(ctx context.Context, username string) (*models.Operator, error)
	Count(ctx context.Context) (int, error)
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error
}

// OperatorSessionRepository persists refresh-token sessions, grounded on the
// teacher's SessionRepository.
type OperatorSessionRepository interface {
	Create(ctx context.Context, session *models.OperatorSession) error
	GetByRefreshToken(ctx context.Context, token string) (*models.OperatorSession, error)
	DeleteByID(ctx context.Context, id string) error
	DeleteByOperatorID(ctx context.Context, operatorID string) error
	DeleteExpired(ctx context.Context) error
}
