package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserRole grants a role to a user. A user may hold several rows.
type UserRole struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:user_roles_user_role_key"`
	Role      string    `gorm:"column:role;type:text;not null;uniqueIndex:user_roles_user_role_key"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (r *UserRole) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
