package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered chat user.
// Password holds the bcrypt hash and never crosses the API boundary.
type User struct {
	ID         uuid.UUID `json:"id"`
	FullName   string    `json:"fullName"`
	Email      string    `json:"email"`
	Password   string    `json:"-"`
	ProfilePic string    `json:"profilePic,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}
