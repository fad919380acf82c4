package clients

import (
	"context"
	"strings"
)

// CreateClientInput describes a new client record.
type CreateClientInput struct {
	Name    string
	Company *string
	Email   *string
	Phone   *string
	Address *string
	City    *string
	Country *string
	Notes   *string
}

// UpdateClientInput replaces a client's mutable fields.
type UpdateClientInput struct {
	Name     string
	Company  *string
	Email    *string
	Phone    *string
	Address  *string
	City     *string
	Country  *string
	Notes    *string
	IsActive bool
}

// CreateClientRecord is the repository-level shape of a validated client.
type CreateClientRecord struct {
	Name    string
	Company *string
	Email   *string
	Phone   *string
	Address *string
	City    *string
	Country *string
	Notes   *string
}

// UpdateClientRecord is the repository-level shape of a validated edit.
type UpdateClientRecord struct {
	Name     string
	Company  *string
	Email    *string
	Phone    *string
	Address  *string
	City     *string
	Country  *string
	Notes    *string
	IsActive bool
}

// ListClientsRequest filters client listings.
type ListClientsRequest struct {
	IsActive *bool
	Search   string
	Limit    int
	Offset   int
}

// RepositoryPort defines data access methods for clients.
type RepositoryPort interface {
	CreateClient(ctx context.Context, input CreateClientRecord) (*Client, error)
	GetClient(ctx context.Context, id int64) (*Client, error)
	ListClients(ctx context.Context, req ListClientsRequest) ([]Client, int, error)
	UpdateClient(ctx context.Context, id int64, input UpdateClientRecord) (*Client, error)
	DeleteClient(ctx context.Context, id int64) error
}

// Service handles client business logic.
type Service struct {
	repo RepositoryPort
}

func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, input CreateClientInput) (*Client, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrEmptyName
	}
	return s.repo.CreateClient(ctx, CreateClientRecord{
		Name:    name,
		Company: input.Company,
		Email:   input.Email,
		Phone:   input.Phone,
		Address: input.Address,
		City:    input.City,
		Country: input.Country,
		Notes:   input.Notes,
	})
}

func (s *Service) Get(ctx context.Context, id int64) (*Client, error) {
	return s.repo.GetClient(ctx, id)
}

func (s *Service) List(ctx context.Context, req ListClientsRequest) ([]Client, int, error) {
	if req.Limit <= 0 || req.Limit > 200 {
		req.Limit = 50
	}
	if req.Offset < 0 {
		req.Offset = 0
	}
	return s.repo.ListClients(ctx, req)
}

func (s *Service) Update(ctx context.Context, id int64, input UpdateClientInput) (*Client, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrEmptyName
	}
	return s.repo.UpdateClient(ctx, id, UpdateClientRecord{
		Name:     name,
		Company:  input.Company,
		Email:    input.Email,
		Phone:    input.Phone,
		Address:  input.Address,
		City:     input.City,
		Country:  input.Country,
		Notes:    input.Notes,
		IsActive: input.IsActive,
	})
}

// Deactivate soft-deletes a client; history stays queryable.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	return s.repo.DeleteClient(ctx, id)
}
