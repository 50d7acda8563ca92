package models

import "time"

type Store struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Settings struct {
	AutoAssignEnabled bool      `json:"auto_assign_enabled"`
	UpdatedAt         time.Time `json:"updated_at"`
}
