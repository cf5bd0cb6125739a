package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a consumer lookup misses.
var ErrNotFound = errors.New("not found")

// Storage abstracts persistence for consumers, readings and the supporting
// auth/notification tables.
type Storage interface {
	// Consumers
	ListConsumers(ctx context.Context) ([]Consumer, error)
	GetConsumer(ctx context.Context, number string) (*Consumer, error)
	CreateConsumer(ctx context.Context, c Consumer) error
	SaveConsumer(ctx context.Context, c Consumer) error
	DeleteConsumer(ctx context.Context, number string) error

	// ListConsumersWithFines returns consumers with an applied fine whose
	// bill is not settled yet.
	ListConsumersWithFines(ctx context.Context) ([]Consumer, error)

	// AppendReading records one entry in a consumer's reading history.
	AppendReading(ctx context.Context, r MeterReading) error

	// Users
	CreateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	UpdateUser(ctx context.Context, user User) error
	DeleteUser(ctx context.Context, id string) error
	ListUsers(ctx context.Context) ([]User, error)

	// Tokens
	CreateToken(ctx context.Context, token Token) error
	GetTokenByHash(ctx context.Context, hash string) (*Token, error)
	ListTokens(ctx context.Context, userID string) ([]Token, error)
	DeleteToken(ctx context.Context, id string) error
	UpdateTokenLastUsed(ctx context.Context, id string) error

	// Casbin rules
	LoadCasbinRules(ctx context.Context) ([]CasbinRule, error)
	AddCasbinRule(ctx context.Context, rule CasbinRule) error
	RemoveCasbinRule(ctx context.Context, rule CasbinRule) error

	// Settings
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error

	// Email config
	GetEmailConfig(ctx context.Context) (*EmailConfig, error)
	SaveEmailConfig(ctx context.Context, config EmailConfig) error

	// Scheduled jobs & locking for the reminder sweep.
	AcquireAdvisoryLock(ctx context.Context, key int64) (bool, error)
	ReleaseAdvisoryLock(ctx context.Context, key int64) (bool, error)
	UpdateScheduledJob(ctx context.Context, name string, started time.Time, dur time.Duration, success bool, errMsg string) error

	Ping(ctx context.Context) error

	// Close releases any resources (no-op for in-memory).
	Close() error
}
