package models

import "time"

const (
	RoleOwner   = "owner"
	RoleTrainer = "trainer"
)

type Organization struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type User struct {
	ID                  int64     `json:"id"`
	OrgID               int64     `json:"org_id"`
	Email               string    `json:"email"`
	PasswordHash        string    `json:"-"`
	Role                string    `json:"role"`
	CommissionProfileID *int64    `json:"commission_profile_id,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

type Client struct {
	ID         int64      `json:"id"`
	OrgID      int64      `json:"org_id"`
	TrainerID  int64      `json:"trainer_id"`
	FullName   string     `json:"full_name"`
	Active     bool       `json:"active"`
	ArchivedAt *time.Time `json:"archived_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
