package devserver

import (
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mentorlink/mentorlink-client/internal/domain/user"
)

var (
	ErrEmailAlreadyUsed   = errors.New("email already in use")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type userRecord struct {
	user.User
	passwordHash string
}

// userStore keeps the stub server's accounts in memory. Production
// owns a real database; the stub only needs enough to exercise the
// client's auth flows.
type userStore struct {
	mu      sync.Mutex
	nextID  int64
	byEmail map[string]*userRecord
	byID    map[int64]*userRecord
}

func newUserStore() *userStore {
	return &userStore{
		nextID:  1,
		byEmail: make(map[string]*userRecord),
		byID:    make(map[int64]*userRecord),
	}
}

func (s *userStore) create(email, name, password string, role user.Role) (user.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

	if err != nil {
		return user.User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[email]; exists {
		return user.User{}, ErrEmailAlreadyUsed
	}

	now := time.Now().UTC()

	rec := &userRecord{
		User: user.User{
			ID:        s.nextID,
			Email:     email,
			Name:      name,
			Role:      role,
			Status:    user.StatusActive,
			CreatedAt: now,
			UpdatedAt: now,
		},
		passwordHash: string(hash),
	}

	s.nextID++
	s.byEmail[email] = rec
	s.byID[rec.ID] = rec

	return rec.User, nil
}

func (s *userStore) authenticate(email, password string) (user.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	s.mu.Lock()
	rec, ok := s.byEmail[email]
	s.mu.Unlock()

	if !ok {
		return user.User{}, ErrInvalidCredentials
	}

	if rec.Status != user.StatusActive {
		return user.User{}, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(rec.passwordHash), []byte(password)); err != nil {
		return user.User{}, ErrInvalidCredentials
	}

	return rec.User, nil
}

func (s *userStore) getByID(id int64) (user.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[id]

	if !ok {
		return user.User{}, false
	}

	return rec.User, true
}

func (s *userStore) list() []user.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]user.User, 0, len(s.byID))

	for id := int64(1); id < s.nextID; id++ {
		if rec, ok := s.byID[id]; ok {
			out = append(out, rec.User)
		}
	}

	return out
}
