package domain

import "time"

type Client struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Document  string    `json:"cnpj,omitempty"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
