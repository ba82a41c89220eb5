package users

import (
	"github.com/google/uuid"

	"github.com/Killerbeez7/print-dungeon-backend/pkg/db/models"
)

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Email       string
	DisplayName string
	IsSeller    bool
}

func (d CreateUserDTO) ToModel() *models.User {
	return &models.User{
		ID:          uuid.New(),
		Email:       d.Email,
		DisplayName: d.DisplayName,
		IsSeller:    d.IsSeller,
	}
}
