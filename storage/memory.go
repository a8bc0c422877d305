package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"artisanat/models"
)

// Memory is an in-process Store. A single RWMutex serializes writers, which
// gives PlaceOrder and SaveAddress the same all-or-nothing behaviour the
// postgres store gets from transactions.
type Memory struct {
	mu sync.RWMutex

	Users      map[int64]models.User
	Sessions   map[int64]models.Session
	Addresses  map[int64]models.Address
	Categories map[int64]models.Category
	Products   map[int64]models.Product
	Media      map[int64]models.ProductMedia
	Alerts     map[int64]models.StockAlert
	Orders     map[int64]models.Order
	OrderItems map[int64]models.OrderItem
	OrderNotes map[int64]models.OrderNote

	Notifications map[int64]models.Notification

	BlogCategories map[int64]models.BlogCategory
	Tags           map[int64]models.Tag
	Posts          map[int64]models.BlogPost
	Comments       map[int64]models.Comment

	Contacts    map[int64]models.ContactMessage
	Newsletter  map[int64]models.NewsletterSubscription
	Regions     map[int64]models.Region
	CraftTypes  map[int64]models.CraftType
	Artisans    map[int64]models.Artisan
	Application map[int64]models.ArtisanApplication

	About      *models.AboutContent
	AboutItems map[int64]models.AboutItem

	nextID map[string]int64
	now    func() time.Time
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		Users:      make(map[int64]models.User),
		Sessions:   make(map[int64]models.Session),
		Addresses:  make(map[int64]models.Address),
		Categories: make(map[int64]models.Category),
		Products:   make(map[int64]models.Product),
		Media:      make(map[int64]models.ProductMedia),
		Alerts:     make(map[int64]models.StockAlert),
		Orders:     make(map[int64]models.Order),
		OrderItems: make(map[int64]models.OrderItem),
		OrderNotes: make(map[int64]models.OrderNote),

		Notifications: make(map[int64]models.Notification),

		BlogCategories: make(map[int64]models.BlogCategory),
		Tags:           make(map[int64]models.Tag),
		Posts:          make(map[int64]models.BlogPost),
		Comments:       make(map[int64]models.Comment),

		Contacts:    make(map[int64]models.ContactMessage),
		Newsletter:  make(map[int64]models.NewsletterSubscription),
		Regions:     make(map[int64]models.Region),
		CraftTypes:  make(map[int64]models.CraftType),
		Artisans:    make(map[int64]models.Artisan),
		Application: make(map[int64]models.ArtisanApplication),
		AboutItems:  make(map[int64]models.AboutItem),

		nextID: make(map[string]int64),
		now:    time.Now,
	}
}

// id hands out the next identifier of a table. Callers hold the write lock.
func (s *Memory) id(table string) int64 {
	s.nextID[table]++
	return s.nextID[table]
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func page[T any](items []T, limit, offset int) []T {
	if offset < 0 || offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// --- users -------------------------------------------------------------------

func (s *Memory) CreateUser(_ context.Context, u models.User) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.Users {
		if strings.EqualFold(existing.Email, u.Email) {
			return models.User{}, ErrConflict
		}
	}
	u.ID = s.id("users")
	if u.DateJoined.IsZero() {
		u.DateJoined = s.now()
	}
	s.Users[u.ID] = u
	return u, nil
}

func (s *Memory) GetUser(_ context.Context, id int64) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.Users[id]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return u, nil
}

func (s *Memory) findUser(match func(models.User) bool) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range sortedKeys(s.Users) {
		if u := s.Users[id]; match(u) {
			return u, nil
		}
	}
	return models.User{}, ErrNotFound
}

func (s *Memory) GetUserByEmail(_ context.Context, email string) (models.User, error) {
	return s.findUser(func(u models.User) bool { return strings.EqualFold(u.Email, email) })
}

func (s *Memory) GetUserByConfirmationToken(_ context.Context, token string) (models.User, error) {
	return s.findUser(func(u models.User) bool {
		return u.EmailConfirmationToken != nil && *u.EmailConfirmationToken == token
	})
}

func (s *Memory) GetUserByResetToken(_ context.Context, token string) (models.User, error) {
	return s.findUser(func(u models.User) bool {
		return u.PasswordResetToken != nil && *u.PasswordResetToken == token
	})
}

func (s *Memory) UpdateUser(_ context.Context, u models.User) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.Users[u.ID]; !ok {
		return models.User{}, ErrNotFound
	}
	for id, existing := range s.Users {
		if id != u.ID && strings.EqualFold(existing.Email, u.Email) {
			return models.User{}, ErrConflict
		}
	}
	s.Users[u.ID] = u
	return u, nil
}

func (s *Memory) DeleteUser(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.Users[id]; !ok {
		return ErrNotFound
	}
	delete(s.Users, id)
	for aid, a := range s.Addresses {
		if a.UserID == id {
			delete(s.Addresses, aid)
		}
	}
	for sid, sess := range s.Sessions {
		if sess.UserID == id {
			delete(s.Sessions, sid)
		}
	}
	for nid, n := range s.Notifications {
		if n.UserID == id {
			delete(s.Notifications, nid)
		}
	}
	return nil
}

func userMatches(u models.User, f UserFilter) bool {
	if len(f.Types) > 0 {
		ok := false
		for _, t := range f.Types {
			if u.UserType == t {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if f.Active != nil && u.AccountStatus != *f.Active {
		return false
	}
	if f.ManagedBy != 0 && u.ID != f.ManagedBy {
		if u.UserType != models.UserClient || u.CreatedBy == nil || *u.CreatedBy != f.ManagedBy {
			return false
		}
	}
	if f.JoinedSince != nil && u.DateJoined.Before(*f.JoinedSince) {
		return false
	}
	if f.Search != "" {
		phone := ""
		if u.Phone != nil {
			phone = *u.Phone
		}
		if !containsFold(u.Email, f.Search) && !containsFold(u.FirstName, f.Search) &&
			!containsFold(u.LastName, f.Search) && !containsFold(phone, f.Search) {
			return false
		}
	}
	return true
}

func (s *Memory) ListUsers(_ context.Context, f UserFilter) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.User{}
	for _, id := range sortedKeys(s.Users) {
		if u := s.Users[id]; userMatches(u, f) {
			out = append(out, u)
		}
	}

	field, desc := ParseOrdering(f.Ordering)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		var less bool
		switch field {
		case "last_login":
			less = timeOrZero(a.LastLogin).Before(timeOrZero(b.LastLogin))
		case "total_orders":
			less = a.TotalOrders < b.TotalOrders
		case "total_spent":
			less = a.TotalSpent.LessThan(b.TotalSpent)
		default:
			less = a.DateJoined.Before(b.DateJoined)
		}
		if desc {
			return !less && !sameUserKey(field, a, b)
		}
		return less
	})
	return out, nil
}

// ParseOrdering splits a "-field" ordering parameter, falling back to
// -date_joined for unknown fields.
func ParseOrdering(ordering string) (field string, desc bool) {
	desc = strings.HasPrefix(ordering, "-")
	field = strings.TrimPrefix(ordering, "-")
	switch field {
	case "date_joined", "last_login", "total_orders", "total_spent":
		return field, desc
	}
	return "date_joined", true
}

func sameUserKey(field string, a, b models.User) bool {
	switch field {
	case "last_login":
		return timeOrZero(a.LastLogin).Equal(timeOrZero(b.LastLogin))
	case "total_orders":
		return a.TotalOrders == b.TotalOrders
	case "total_spent":
		return a.TotalSpent.Equal(b.TotalSpent)
	}
	return a.DateJoined.Equal(b.DateJoined)
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

// --- sessions ----------------------------------------------------------------

func (s *Memory) CreateSession(_ context.Context, sess models.Session) (models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess.ID = s.id("sessions")
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = s.now()
	}
	s.Sessions[sess.ID] = sess
	return sess, nil
}

func (s *Memory) GetSessionByHash(_ context.Context, hash string) (models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sess := range s.Sessions {
		if sess.TokenHash == hash {
			return sess, nil
		}
	}
	return models.Session{}, ErrNotFound
}

func (s *Memory) DeleteSessionByHash(_ context.Context, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, sess := range s.Sessions {
		if sess.TokenHash == hash {
			delete(s.Sessions, id)
			return nil
		}
	}
	return ErrNotFound
}

func (s *Memory) PurgeExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, sess := range s.Sessions {
		if !sess.ExpiresAt.After(now) {
			delete(s.Sessions, id)
			n++
		}
	}
	return n, nil
}

// --- addresses ---------------------------------------------------------------

func (s *Memory) ListAddresses(_ context.Context, userID int64) ([]models.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Address{}
	for _, id := range sortedKeys(s.Addresses) {
		if a := s.Addresses[id]; a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].IsDefault && !out[j].IsDefault })
	return out, nil
}

func (s *Memory) GetAddress(_ context.Context, userID, id int64) (models.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.Addresses[id]
	if !ok || a.UserID != userID {
		return models.Address{}, ErrNotFound
	}
	return a, nil
}

func (s *Memory) SaveAddress(_ context.Context, a models.Address) (models.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.Users[a.UserID]; !ok {
		return models.Address{}, ErrNotFound
	}
	if a.ID == 0 {
		a.ID = s.id("addresses")
	} else if existing, ok := s.Addresses[a.ID]; !ok || existing.UserID != a.UserID {
		return models.Address{}, ErrNotFound
	}

	if a.IsDefault {
		for id, other := range s.Addresses {
			if id != a.ID && other.UserID == a.UserID && other.AddressType == a.AddressType && other.IsDefault {
				other.IsDefault = false
				s.Addresses[id] = other
			}
		}
	}
	s.Addresses[a.ID] = a
	return a, nil
}

func (s *Memory) DeleteAddress(_ context.Context, userID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.Addresses[id]
	if !ok || a.UserID != userID {
		return ErrNotFound
	}
	delete(s.Addresses, id)
	return nil
}
