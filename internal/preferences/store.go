package preferences

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/recruai/interview-sync/internal/timefmt"
)

var (
	ErrNotFound      = errors.New("preferences: not found")
	ErrUserRequired  = errors.New("preferences: user id is required")
	ErrSchemaMissing = errors.New("preferences: schema missing")
)

// Store persists the display timezone chosen by each user.
type Store interface {
	Get(ctx context.Context, userID string) (string, error)
	Set(ctx context.Context, userID, timezone string) error
}

// MemoryStore keeps preferences in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	zones map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{zones: make(map[string]string)}
}

func (m *MemoryStore) Get(_ context.Context, userID string) (string, error) {
	key, err := userKey(userID)
	if err != nil {
		return "", err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	tz, ok := m.zones[key]
	if !ok {
		return "", ErrNotFound
	}
	return tz, nil
}

func (m *MemoryStore) Set(_ context.Context, userID, timezone string) error {
	key, err := userKey(userID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.zones[key] = strings.TrimSpace(timezone)
	return nil
}

func userKey(userID string) (string, error) {
	key := strings.TrimSpace(userID)
	if key == "" {
		return "", ErrUserRequired
	}
	return key, nil
}

// userPreferences binds a Store to one user so it can feed a timefmt.Formatter.
type userPreferences struct {
	store  Store
	userID string
	logger *zap.Logger
}

// ForUser adapts store to timefmt.Preferences for userID. Read failures other than
// ErrNotFound are logged and treated as "no preference".
func ForUser(store Store, userID string, logger *zap.Logger) timefmt.Preferences {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &userPreferences{store: store, userID: userID, logger: logger}
}

func (u *userPreferences) Timezone(ctx context.Context) (string, bool) {
	tz, err := u.store.Get(ctx, u.userID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			u.logger.Warn("read timezone preference", zap.String("user_id", u.userID), zap.Error(err))
		}
		return "", false
	}
	tz = strings.TrimSpace(tz)
	return tz, tz != ""
}

func (u *userPreferences) SetTimezone(ctx context.Context, tz string) error {
	return u.store.Set(ctx, u.userID, tz)
}
