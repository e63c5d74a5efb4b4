package stubs

import (
	"context"
	"sort"
	"sync"
	"time"

	"storefront/internal/models"
	"storefront/internal/storage"
)

var _ storage.Storage = (*MockDB)(nil)

type purchaseKey struct {
	userID    int64
	contentID int64
}

// MockDB is an in-memory implementation of the Storage interface for testing
// and for running the bot without a database
type MockDB struct {
	mu            sync.RWMutex
	users         map[int64]models.User
	content       map[int64]models.Content
	purchases     []models.Purchase
	purchased     map[purchaseKey]bool
	nextContentID int64
	now           func() time.Time
}

// NewMockDB creates a new mock database
func NewMockDB() *MockDB {
	return &MockDB{
		users:     make(map[int64]models.User),
		content:   make(map[int64]models.Content),
		purchases: make([]models.Purchase, 0),
		purchased: make(map[purchaseKey]bool),
		now:       time.Now,
	}
}

// Initialize does nothing for mock DB
func (m *MockDB) Initialize(ctx context.Context) error {
	return nil
}

// UpsertUser inserts a user or refreshes its display fields, keeping the ban flag
func (m *MockDB) UpsertUser(ctx context.Context, id int64, username, firstName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[id]
	if !ok {
		user = models.User{ID: id, CreatedAt: m.now()}
	}
	user.Username = username
	user.FirstName = firstName
	m.users[id] = user
	return nil
}

// IsBanned reports whether the user is banned
func (m *MockDB) IsBanned(ctx context.Context, userID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.users[userID].Banned, nil
}

// BanByUsername bans every user with the given username
func (m *MockDB) BanByUsername(ctx context.Context, username string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	found := false
	for id, user := range m.users {
		if user.Username == username {
			user.Banned = true
			m.users[id] = user
			found = true
		}
	}
	return found, nil
}

// CreateContent stores a content item under the next id
func (m *MockDB) CreateContent(ctx context.Context, kind models.MediaKind, fileID string, price, authorID int64, approved bool) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextContentID++
	m.content[m.nextContentID] = models.Content{
		ID:        m.nextContentID,
		Kind:      kind,
		FileID:    fileID,
		Price:     price,
		AuthorID:  authorID,
		Approved:  approved,
		CreatedAt: m.now(),
	}
	return m.nextContentID, nil
}

// ApproveContent marks content as approved, repricing it when price is set
func (m *MockDB) ApproveContent(ctx context.Context, id int64, price *int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.content[id]
	if !ok {
		return false, nil
	}
	c.Approved = true
	if price != nil {
		c.Price = *price
	}
	m.content[id] = c
	return true, nil
}

// DeleteContent removes a content item, keeping its purchases
func (m *MockDB) DeleteContent(ctx context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.content[id]; !ok {
		return false, nil
	}
	delete(m.content, id)
	return true, nil
}

// ListApprovedContent returns approved content, newest first
func (m *MockDB) ListApprovedContent(ctx context.Context, kind models.MediaKind) ([]models.Content, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	items := []models.Content{}
	for _, c := range m.content {
		if !c.Approved || (kind != "" && c.Kind != kind) {
			continue
		}
		items = append(items, c)
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].ID > items[j].ID
	})
	return items, nil
}

// GetContent returns a copy of the content item
func (m *MockDB) GetContent(ctx context.Context, id int64) (*models.Content, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.content[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &c, nil
}

// RecordPurchase appends the purchase unless the pair already exists
func (m *MockDB) RecordPurchase(ctx context.Context, userID, contentID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := purchaseKey{userID: userID, contentID: contentID}
	if m.purchased[key] {
		return false, nil
	}
	m.purchased[key] = true
	m.purchases = append(m.purchases, models.Purchase{
		ID:        int64(len(m.purchases) + 1),
		UserID:    userID,
		ContentID: contentID,
		Timestamp: m.now(),
	})
	return true, nil
}

// HasPurchased reports whether the user owns the content
func (m *MockDB) HasPurchased(ctx context.Context, userID, contentID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.purchased[purchaseKey{userID: userID, contentID: contentID}], nil
}

// ListPurchases returns purchased content, most recent purchase first
func (m *MockDB) ListPurchases(ctx context.Context, userID int64) ([]models.Content, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	items := []models.Content{}
	for i := len(m.purchases) - 1; i >= 0; i-- {
		p := m.purchases[i]
		if p.UserID != userID {
			continue
		}
		if c, ok := m.content[p.ContentID]; ok {
			items = append(items, c)
		}
	}
	return items, nil
}

// PurchaseCount returns how many purchase rows exist for the pair
func (m *MockDB) PurchaseCount(userID, contentID int64) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, p := range m.purchases {
		if p.UserID == userID && p.ContentID == contentID {
			n++
		}
	}
	return n
}

// ContentCount returns the number of stored content rows, approved or not
func (m *MockDB) ContentCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.content)
}

// Close does nothing for mock DB
func (m *MockDB) Close() error {
	return nil
}
