package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/smarteb/smarteb/internal/storage"
)

// Roles understood by the policy model. Consumers additionally get their
// account scoped to their own consumer number in the API layer.
const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
	RoleConsumer = "consumer"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type Service struct {
	storage  storage.Storage
	enforcer *casbin.Enforcer
}

func NewService(s storage.Storage) (*Service, error) {
	// Initialize Casbin
	m, err := model.NewModelFromString(`
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && (r.obj == p.obj || p.obj == "*") && (r.act == p.act || p.act == "*")
`)
	if err != nil {
		return nil, err
	}

	// Policies persist through the storage-backed adapter so role bindings
	// survive restarts.
	e, err := casbin.NewEnforcer(m, NewAdapter(s))
	if err != nil {
		return nil, err
	}

	// Default policies.
	// Admin can do everything.
	e.AddPolicy(RoleAdmin, "*", "*")
	// Operators run the billing desk: manage consumers, record readings,
	// settle payments, work the fine roster.
	e.AddPolicy(RoleOperator, "consumers", "read")
	e.AddPolicy(RoleOperator, "consumers", "write")
	e.AddPolicy(RoleOperator, "readings", "write")
	e.AddPolicy(RoleOperator, "billing", "read")
	e.AddPolicy(RoleOperator, "billing", "write")
	// Consumers can view bills and submit their own readings.
	e.AddPolicy(RoleConsumer, "billing", "read")
	e.AddPolicy(RoleConsumer, "readings", "write")

	return &Service{storage: s, enforcer: e}, nil
}

func (s *Service) Authenticate(ctx context.Context, username, password string) (*storage.User, error) {
	u, err := s.storage.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// Register creates a user with the given role. consumerNumber binds a
// consumer-role login to its service connection; empty for staff accounts.
func (s *Service) Register(ctx context.Context, username, password, role, consumerNumber string) (*storage.User, error) {
	existing, err := s.storage.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errors.New("user already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	u := storage.User{
		ID:             uuid.New().String(),
		Username:       username,
		PasswordHash:   string(hash),
		Role:           role,
		ConsumerNumber: consumerNumber,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}

	if err := s.storage.CreateUser(ctx, u); err != nil {
		return nil, err
	}

	s.enforcer.AddGroupingPolicy(u.ID, role)

	return &u, nil
}

// Bootstrap creates the initial admin account when no users exist yet.
func (s *Service) Bootstrap(ctx context.Context, adminPassword string) error {
	if adminPassword == "" {
		return nil
	}
	users, err := s.storage.ListUsers(ctx)
	if err != nil {
		return err
	}
	if len(users) > 0 {
		return nil
	}
	_, err = s.Register(ctx, "admin", adminPassword, RoleAdmin, "")
	return err
}

func (s *Service) CreateToken(ctx context.Context, userID, name, role string, expiresAt *time.Time) (*storage.Token, string, error) {
	rawToken := uuid.New().String() + uuid.New().String()

	// Only the hash is stored.
	hasher := sha256.New()
	hasher.Write([]byte(rawToken))
	tokenHash := hex.EncodeToString(hasher.Sum(nil))

	t := storage.Token{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      name,
		TokenHash: tokenHash,
		Role:      role,
		CreatedAt: time.Now(),
		ExpiresAt: expiresAt,
	}

	if err := s.storage.CreateToken(ctx, t); err != nil {
		return nil, "", err
	}

	return &t, rawToken, nil
}

func (s *Service) ValidateToken(ctx context.Context, rawToken string) (*storage.Token, error) {
	hasher := sha256.New()
	hasher.Write([]byte(rawToken))
	tokenHash := hex.EncodeToString(hasher.Sum(nil))

	t, err := s.storage.GetTokenByHash(ctx, tokenHash)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, errors.New("invalid token")
	}

	if t.ExpiresAt != nil && t.ExpiresAt.Before(time.Now()) {
		return nil, errors.New("token expired")
	}

	go s.storage.UpdateTokenLastUsed(context.Background(), t.ID)

	return t, nil
}

// ListTokens returns the tokens belonging to a user.
func (s *Service) ListTokens(ctx context.Context, userID string) ([]storage.Token, error) {
	return s.storage.ListTokens(ctx, userID)
}

// RevokeToken deletes one of the user's own tokens.
func (s *Service) RevokeToken(ctx context.Context, userID, tokenID string) error {
	list, err := s.storage.ListTokens(ctx, userID)
	if err != nil {
		return err
	}
	for _, t := range list {
		if t.ID == tokenID {
			return s.storage.DeleteToken(ctx, tokenID)
		}
	}
	return errors.New("token not found")
}

func (s *Service) Enforce(sub, obj, act string) (bool, error) {
	return s.enforcer.Enforce(sub, obj, act)
}

// GetUser looks up the user a token belongs to.
func (s *Service) GetUser(ctx context.Context, id string) (*storage.User, error) {
	return s.storage.GetUser(ctx, id)
}
