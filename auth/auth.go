// Package auth implements the credential service: account records live as a
// single JSON document in the durable store, passwords are bcrypt-hashed.
package auth

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/famworld/famagent/store"
)

const usersKey = "famagent_users_db"

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrDuplicateAccount   = errors.New("an account with this email already exists")
	ErrNotFound           = errors.New("account not found")
)

// User is the profile returned to callers. It never carries credentials.
type User struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar,omitempty"`
}

// ProfilePatch is a partial profile update. Nil fields are left untouched.
type ProfilePatch struct {
	Name   *string
	Avatar *string
}

// record is the stored form of an account.
type record struct {
	User
	PasswordHash string `json:"passwordHash,omitempty"`
	CreatedAt    int64  `json:"createdAt"`
}

// Service resolves user identities against the durable store.
type Service struct {
	docs store.Documents
	log  *slog.Logger
}

// NewService instantiates a credential service.
func NewService(docs store.Documents, logger *slog.Logger) *Service {
	return &Service{docs: docs, log: logger}
}

// Login resolves a user from email and password.
func (s *Service) Login(email, password string) (*User, error) {
	records, err := s.load()
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		if !strings.EqualFold(r.Email, email) {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(r.PasswordHash), []byte(password)) != nil {
			return nil, ErrInvalidCredentials
		}
		user := r.User
		return &user, nil
	}
	return nil, ErrInvalidCredentials
}

// Signup registers a new account.
func (s *Service) Signup(name, email, password string) (*User, error) {
	records, err := s.load()
	if err != nil {
		return nil, err
	}
	email = strings.ToLower(email)
	for _, r := range records {
		if r.Email == email {
			return nil, ErrDuplicateAccount
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.Wrap(err, "hashing password")
	}
	newRecord := &record{
		User: User{
			Name:   name,
			Email:  email,
			Avatar: defaultAvatar(name),
		},
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UnixMilli(),
	}
	records = append(records, newRecord)
	if err := s.save(records); err != nil {
		return nil, err
	}
	user := newRecord.User
	return &user, nil
}

// FederatedLogin resolves a user from a federated identity hint, creating the
// account on first sight. The hint's email is the identity; name and avatar
// are used only when creating.
func (s *Service) FederatedLogin(hint *User) (*User, error) {
	records, err := s.load()
	if err != nil {
		return nil, err
	}
	email := strings.ToLower(hint.Email)
	for _, r := range records {
		if r.Email == email {
			user := r.User
			return &user, nil
		}
	}

	avatar := hint.Avatar
	if avatar == "" {
		avatar = defaultAvatar(hint.Name)
	}
	newRecord := &record{
		User: User{
			Name:   hint.Name,
			Email:  email,
			Avatar: avatar,
		},
		CreatedAt: time.Now().UnixMilli(),
	}
	records = append(records, newRecord)
	if err := s.save(records); err != nil {
		return nil, err
	}
	user := newRecord.User
	return &user, nil
}

// UpdateProfile applies a partial update to the account addressed by email.
// Callers apply the update locally first; a failure here is reconciled by
// logging, not by rolling the UI back.
func (s *Service) UpdateProfile(email string, patch ProfilePatch) (*User, error) {
	records, err := s.load()
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		if !strings.EqualFold(r.Email, email) {
			continue
		}
		if patch.Name != nil {
			r.Name = *patch.Name
		}
		if patch.Avatar != nil {
			r.Avatar = *patch.Avatar
		}
		if err := s.save(records); err != nil {
			return nil, err
		}
		user := r.User
		return &user, nil
	}
	return nil, ErrNotFound
}

// load reads the account document. Absence or corrupt JSON is an empty set.
func (s *Service) load() ([]*record, error) {
	value, ok, err := s.docs.Get(usersKey)
	if err != nil {
		return nil, errors.Wrap(err, "reading users document")
	}
	if !ok {
		return nil, nil
	}
	var records []*record
	if err := json.Unmarshal([]byte(value), &records); err != nil {
		s.log.Warn("discarding corrupt users document", "error", err)
		return nil, nil
	}
	return records, nil
}

func (s *Service) save(records []*record) error {
	bytes, err := json.Marshal(records)
	if err != nil {
		return errors.Wrap(err, "marshaling users document")
	}
	if err := s.docs.Put(usersKey, string(bytes)); err != nil {
		return errors.Wrap(err, "writing users document")
	}
	return nil
}

func defaultAvatar(name string) string {
	return fmt.Sprintf("https://ui-avatars.com/api/?name=%s&background=0D8ABC&color=fff", url.QueryEscape(name))
}
