package clients

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryClientRepo struct {
	mu      sync.Mutex
	clients map[int64]*Client
	nextID  int64
}

func newMemoryClientRepo() *memoryClientRepo {
	return &memoryClientRepo{clients: make(map[int64]*Client)}
}

func (r *memoryClientRepo) CreateClient(ctx context.Context, input CreateClientRecord) (*Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	c := &Client{
		ID:        r.nextID,
		Name:      input.Name,
		Company:   input.Company,
		Email:     input.Email,
		Phone:     input.Phone,
		Address:   input.Address,
		City:      input.City,
		Country:   input.Country,
		Notes:     input.Notes,
		IsActive:  true,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	r.clients[c.ID] = c
	return c, nil
}

func (r *memoryClientRepo) GetClient(ctx context.Context, id int64) (*Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[id]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

func (r *memoryClientRepo) ListClients(ctx context.Context, req ListClientsRequest) ([]Client, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []Client
	for _, c := range r.clients {
		if req.IsActive != nil && c.IsActive != *req.IsActive {
			continue
		}
		if req.Search != "" && !strings.Contains(strings.ToLower(c.Name), strings.ToLower(req.Search)) {
			continue
		}
		matched = append(matched, *c)
	}
	total := len(matched)
	if req.Offset >= total {
		return nil, total, nil
	}
	end := req.Offset + req.Limit
	if end > total {
		end = total
	}
	return matched[req.Offset:end], total, nil
}

func (r *memoryClientRepo) UpdateClient(ctx context.Context, id int64, input UpdateClientRecord) (*Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[id]
	if !ok {
		return nil, ErrNotFound
	}
	c.Name = input.Name
	c.Company = input.Company
	c.Email = input.Email
	c.Phone = input.Phone
	c.Address = input.Address
	c.City = input.City
	c.Country = input.Country
	c.Notes = input.Notes
	c.IsActive = input.IsActive
	c.UpdatedAt = time.Now()
	return c, nil
}

func (r *memoryClientRepo) DeleteClient(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[id]
	if !ok {
		return ErrNotFound
	}
	c.IsActive = false
	return nil
}

func strPtr(s string) *string { return &s }

func TestCreateAndGet(t *testing.T) {
	svc := NewService(newMemoryClientRepo())
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateClientInput{
		Name:    "  Andry Rakoto  ",
		Company: strPtr("Rakoto SARL"),
		Email:   strPtr("andry@example.mg"),
	})
	require.NoError(t, err)
	require.Equal(t, "Andry Rakoto", created.Name, "name is trimmed")
	require.True(t, created.IsActive)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created.ID, got.ID)

	_, err = svc.Get(ctx, 999)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCreateRequiresName(t *testing.T) {
	svc := NewService(newMemoryClientRepo())

	_, err := svc.Create(context.Background(), CreateClientInput{Name: "   "})
	require.ErrorIs(t, err, ErrEmptyName)
}

func TestListFiltersAndPagination(t *testing.T) {
	repo := newMemoryClientRepo()
	svc := NewService(repo)
	ctx := context.Background()

	for _, name := range []string{"Alpha Trading", "Beta Logistics", "Alpha Services"} {
		_, err := svc.Create(ctx, CreateClientInput{Name: name})
		require.NoError(t, err)
	}

	out, total, err := svc.List(ctx, ListClientsRequest{Search: "alpha"})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Len(t, out, 2)

	out, total, err = svc.List(ctx, ListClientsRequest{Limit: 2})
	require.NoError(t, err)
	require.Equal(t, 3, total)
	require.Len(t, out, 2)

	// Out-of-range limit falls back to the default.
	_, _, err = svc.List(ctx, ListClientsRequest{Limit: 5000})
	require.NoError(t, err)
}

func TestDeactivateKeepsRecord(t *testing.T) {
	repo := newMemoryClientRepo()
	svc := NewService(repo)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateClientInput{Name: "Gamma Corp"})
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(ctx, created.ID))

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err, "deactivated client stays readable")
	require.False(t, got.IsActive)

	active := true
	out, total, err := svc.List(ctx, ListClientsRequest{IsActive: &active})
	require.NoError(t, err)
	require.Equal(t, 0, total)
	require.Empty(t, out)

	require.ErrorIs(t, svc.Deactivate(ctx, 999), ErrNotFound)
}

func TestUpdateValidatesName(t *testing.T) {
	repo := newMemoryClientRepo()
	svc := NewService(repo)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateClientInput{Name: "Delta"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, created.ID, UpdateClientInput{Name: ""})
	require.ErrorIs(t, err, ErrEmptyName)

	updated, err := svc.Update(ctx, created.ID, UpdateClientInput{Name: "Delta Holdings", IsActive: true})
	require.NoError(t, err)
	require.Equal(t, "Delta Holdings", updated.Name)
}
