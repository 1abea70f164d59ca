package repository

import (
	"context"

	"edms/internal/model"
)

// UserRepository reads users provisioned outside this service.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*model.User, error)

	// List returns every user except excludeID, ordered by email.
	List(ctx context.Context, excludeID string) ([]model.User, error)
}
