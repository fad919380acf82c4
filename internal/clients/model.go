package clients

import (
	"errors"
	"time"
)

// Client is a customer or prospect record.
type Client struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Company   *string    `json:"company,omitempty"`
	Email     *string    `json:"email,omitempty"`
	Phone     *string    `json:"phone,omitempty"`
	Address   *string    `json:"address,omitempty"`
	City      *string    `json:"city,omitempty"`
	Country   *string    `json:"country,omitempty"`
	Notes     *string    `json:"notes,omitempty"`
	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

var (
	ErrNotFound  = errors.New("clients: not found")
	ErrEmptyName = errors.New("clients: name required")
)
