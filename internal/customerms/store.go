package customerms

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/levelsliving/internal/middleware"
)

// ErrContactTaken is returned by CreateCustomer when the contact number is
// already registered.
var ErrContactTaken = errors.New("contact number already registered")

// SearchQuery carries the search filters and pagination window. Empty filter
// fields are ignored; Contact and Street match as substrings.
type SearchQuery struct {
	PostalCode  string
	HousingType string
	Contact     string
	Street      string
	Limit       int
	Offset      int
}

// Store is the customer-record contract. Lookups return (nil, nil) when no
// active record matches; an error always means the store itself failed.
// Search returns the page plus the total match count for pagination.
type Store interface {
	CreateCustomer(ctx context.Context, c *Customer) error
	CustomerByID(ctx context.Context, id string) (*Customer, error)
	CustomerByContact(ctx context.Context, contact string) (*Customer, error)
	Search(ctx context.Context, q SearchQuery) ([]*Customer, int, error)
}

// MemStore is the in-memory Store used by tests and DB_ADAPTER=memory. It
// doubles as a middleware.UserResolver over seeded identities, standing in
// for the shared users table.
type MemStore struct {
	mu         sync.Mutex
	customers  map[string]*Customer // keyed by id
	byContact  map[string]string
	identities map[string]*middleware.Identity
}

func NewMemStore() *MemStore {
	return &MemStore{
		customers:  map[string]*Customer{},
		byContact:  map[string]string{},
		identities: map[string]*middleware.Identity{},
	}
}

// SeedIdentity registers a user the resolver will vouch for.
func (m *MemStore) SeedIdentity(id, email, role string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.identities[id] = &middleware.Identity{ID: id, Email: email, Role: role}
}

func (m *MemStore) ResolveUser(_ context.Context, userID string) (*middleware.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ident, ok := m.identities[userID]
	if !ok {
		return nil, nil
	}
	out := *ident
	return &out, nil
}

func copyCustomer(c *Customer) *Customer {
	out := *c
	if c.DeliveryPreferences != nil {
		out.DeliveryPreferences = make(map[string]interface{}, len(c.DeliveryPreferences))
		for k, v := range c.DeliveryPreferences {
			out.DeliveryPreferences[k] = v
		}
	}
	if c.CommunicationPreferences != nil {
		out.CommunicationPreferences = make(map[string]interface{}, len(c.CommunicationPreferences))
		for k, v := range c.CommunicationPreferences {
			out.CommunicationPreferences[k] = v
		}
	}
	return &out
}

func (m *MemStore) CreateCustomer(_ context.Context, c *Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byContact[c.Contact]; ok {
		return ErrContactTaken
	}
	stored := copyCustomer(c)
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	m.customers[stored.ID] = stored
	m.byContact[stored.Contact] = stored.ID
	return nil
}

func (m *MemStore) CustomerByID(_ context.Context, id string) (*Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.customers[id]
	if !ok || !c.IsActive {
		return nil, nil
	}
	return copyCustomer(c), nil
}

func (m *MemStore) CustomerByContact(_ context.Context, contact string) (*Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byContact[contact]
	if !ok {
		return nil, nil
	}
	c := m.customers[id]
	if !c.IsActive {
		return nil, nil
	}
	return copyCustomer(c), nil
}

func (q SearchQuery) matches(c *Customer) bool {
	if !c.IsActive {
		return false
	}
	if q.PostalCode != "" && c.PostalCode != q.PostalCode {
		return false
	}
	if q.HousingType != "" && c.HousingType != q.HousingType {
		return false
	}
	if q.Contact != "" && !strings.Contains(c.Contact, q.Contact) {
		return false
	}
	if q.Street != "" && !strings.Contains(c.Street, q.Street) {
		return false
	}
	return true
}

func (m *MemStore) Search(_ context.Context, q SearchQuery) ([]*Customer, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []*Customer
	for _, c := range m.customers {
		if q.matches(c) {
			matched = append(matched, c)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if q.Offset >= total {
		return []*Customer{}, total, nil
	}
	end := q.Offset + q.Limit
	if end > total {
		end = total
	}
	page := make([]*Customer, 0, end-q.Offset)
	for _, c := range matched[q.Offset:end] {
		page = append(page, copyCustomer(c))
	}
	return page, total, nil
}
