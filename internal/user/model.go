package user

import (
	"time"

	"github.com/gofrs/uuid"
)

type Role string

const (
	RoleNormalUser Role = "normal_user"
	RoleSeller     Role = "seller"
	RoleAdmin      Role = "admin"
)

func (r Role) String() string {
	return string(r)
}

type User struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	Username  string    `json:"username" db:"username"`
	FullName  string    `json:"full_name" db:"full_name"`
	Role      Role      `json:"role" db:"role"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsAdmin reports whether the user may act on resources they do not own.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
