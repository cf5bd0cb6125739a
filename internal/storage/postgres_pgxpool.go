package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresPoolStorage is a pgxpool-backed Storage. It is the backend the
// reminder worker runs on: PostgreSQL advisory locks guarantee that in a
// multi-replica deployment only one worker executes the sweep.
type PostgresPoolStorage struct {
	pool *pgxpool.Pool
}

func OpenPostgresPool(ctx context.Context, dsn string) (*PostgresPoolStorage, error) {
	if dsn == "" {
		dsn = "postgres://localhost:5432/smarteb?sslmode=disable"
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &PostgresPoolStorage{pool: pool}, nil
}

func (s *PostgresPoolStorage) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresPoolStorage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate creates the tables this backend touches when they do not exist.
// The canonical schema lives in the goose migrations; this keeps ad-hoc
// worker deployments usable without running the migrate command first.
func (s *PostgresPoolStorage) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS consumers (
			consumer_number TEXT PRIMARY KEY,
			name TEXT,
			address TEXT,
			phone_number TEXT,
			meter_serial_number TEXT,
			tariff_plan TEXT,
			current_reading DOUBLE PRECISION NOT NULL DEFAULT 0,
			amount DOUBLE PRECISION NOT NULL DEFAULT 0,
			last_bill_date TIMESTAMPTZ,
			next_payment_deadline TIMESTAMPTZ,
			payment_status TEXT,
			last_payment_date TIMESTAMPTZ,
			last_paid_amount DOUBLE PRECISION NOT NULL DEFAULT 0,
			is_fine_applied BOOLEAN NOT NULL DEFAULT FALSE,
			fine_amount DOUBLE PRECISION NOT NULL DEFAULT 0,
			cgst_on_fine DOUBLE PRECISION NOT NULL DEFAULT 0,
			sgst_on_fine DOUBLE PRECISION NOT NULL DEFAULT 0,
			total_fine_with_tax DOUBLE PRECISION NOT NULL DEFAULT 0,
			fine_applied_date TIMESTAMPTZ,
			reminder_sent_7_days BOOLEAN NOT NULL DEFAULT FALSE,
			reminder_sent_3_days BOOLEAN NOT NULL DEFAULT FALSE,
			overdue_reminder_sent BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE TABLE IF NOT EXISTS meter_readings (
			id SERIAL PRIMARY KEY,
			consumer_number TEXT NOT NULL,
			date TIMESTAMPTZ NOT NULL,
			units DOUBLE PRECISION NOT NULL,
			manual_reading DOUBLE PRECISION NOT NULL DEFAULT 0,
			ai_extracted_reading DOUBLE PRECISION NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_meter_readings_consumer ON meter_readings (consumer_number);`,
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE TABLE IF NOT EXISTS email_configs (
			id TEXT PRIMARY KEY,
			provider TEXT,
			host TEXT,
			port INTEGER,
			username TEXT,
			password TEXT,
			from_address TEXT,
			from_name TEXT,
			api_key TEXT,
			encryption TEXT,
			enabled BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE TABLE IF NOT EXISTS scheduled_jobs (
			name TEXT PRIMARY KEY,
			last_run_at TIMESTAMPTZ,
			last_duration_ms BIGINT,
			last_success INTEGER,
			last_error TEXT
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

const consumerColumns = `consumer_number, name, address, phone_number, meter_serial_number, tariff_plan,
	current_reading, amount, last_bill_date, next_payment_deadline, payment_status,
	last_payment_date, last_paid_amount, is_fine_applied, fine_amount, cgst_on_fine,
	sgst_on_fine, total_fine_with_tax, fine_applied_date, reminder_sent_7_days,
	reminder_sent_3_days, overdue_reminder_sent, created_at, updated_at`

func scanConsumer(row pgx.Row) (*Consumer, error) {
	var c Consumer
	err := row.Scan(
		&c.ConsumerNumber, &c.Name, &c.Address, &c.PhoneNumber, &c.MeterSerialNumber, &c.TariffPlan,
		&c.CurrentReading, &c.Amount, &c.LastBillDate, &c.NextPaymentDeadline, &c.PaymentStatus,
		&c.LastPaymentDate, &c.LastPaidAmount, &c.IsFineApplied, &c.FineAmount, &c.CGSTOnFine,
		&c.SGSTOnFine, &c.TotalFineWithTax, &c.FineAppliedDate, &c.ReminderSent7Days,
		&c.ReminderSent3Days, &c.OverdueReminderSent, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (s *PostgresPoolStorage) ListConsumers(ctx context.Context) ([]Consumer, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+consumerColumns+` FROM consumers`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Consumer
	for rows.Next() {
		c, err := scanConsumer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (s *PostgresPoolStorage) GetConsumer(ctx context.Context, number string) (*Consumer, error) {
	c, err := scanConsumer(s.pool.QueryRow(ctx,
		`SELECT `+consumerColumns+` FROM consumers WHERE consumer_number = $1`, number))
	if err != nil || c == nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, consumer_number, date, units, manual_reading, ai_extracted_reading
		 FROM meter_readings WHERE consumer_number = $1 ORDER BY date ASC, id ASC`, number)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var r MeterReading
		if err := rows.Scan(&r.ID, &r.ConsumerNumber, &r.Date, &r.Units, &r.ManualReading, &r.AIExtractedReading); err != nil {
			return nil, err
		}
		c.Readings = append(c.Readings, r)
	}
	return c, rows.Err()
}

func (s *PostgresPoolStorage) CreateConsumer(ctx context.Context, c Consumer) error {
	now := time.Now()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO consumers (consumer_number, name, address, phone_number, meter_serial_number,
			tariff_plan, current_reading, amount, payment_status, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$10)`,
		c.ConsumerNumber, c.Name, c.Address, c.PhoneNumber, c.MeterSerialNumber,
		c.TariffPlan, c.CurrentReading, c.Amount, c.PaymentStatus, now)
	return err
}

func (s *PostgresPoolStorage) SaveConsumer(ctx context.Context, c Consumer) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE consumers SET name=$2, address=$3, phone_number=$4, meter_serial_number=$5,
			tariff_plan=$6, current_reading=$7, amount=$8, last_bill_date=$9,
			next_payment_deadline=$10, payment_status=$11, last_payment_date=$12,
			last_paid_amount=$13, is_fine_applied=$14, fine_amount=$15, cgst_on_fine=$16,
			sgst_on_fine=$17, total_fine_with_tax=$18, fine_applied_date=$19,
			reminder_sent_7_days=$20, reminder_sent_3_days=$21, overdue_reminder_sent=$22,
			updated_at=now()
		 WHERE consumer_number=$1`,
		c.ConsumerNumber, c.Name, c.Address, c.PhoneNumber, c.MeterSerialNumber,
		c.TariffPlan, c.CurrentReading, c.Amount, c.LastBillDate,
		c.NextPaymentDeadline, c.PaymentStatus, c.LastPaymentDate,
		c.LastPaidAmount, c.IsFineApplied, c.FineAmount, c.CGSTOnFine,
		c.SGSTOnFine, c.TotalFineWithTax, c.FineAppliedDate,
		c.ReminderSent7Days, c.ReminderSent3Days, c.OverdueReminderSent)
	return err
}

func (s *PostgresPoolStorage) DeleteConsumer(ctx context.Context, number string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM meter_readings WHERE consumer_number = $1`, number); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM consumers WHERE consumer_number = $1`, number)
	return err
}

func (s *PostgresPoolStorage) ListConsumersWithFines(ctx context.Context) ([]Consumer, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+consumerColumns+` FROM consumers WHERE is_fine_applied AND payment_status <> $1`,
		PaymentPaid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Consumer
	for rows.Next() {
		c, err := scanConsumer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (s *PostgresPoolStorage) AppendReading(ctx context.Context, r MeterReading) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO meter_readings (consumer_number, date, units, manual_reading, ai_extracted_reading)
		 VALUES ($1,$2,$3,$4,$5)`,
		r.ConsumerNumber, r.Date, r.Units, r.ManualReading, r.AIExtractedReading)
	return err
}

func (s *PostgresPoolStorage) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.pool.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return value, nil
}

func (s *PostgresPoolStorage) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES ($1,$2,now())
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`, key, value)
	return err
}

func (s *PostgresPoolStorage) GetEmailConfig(ctx context.Context) (*EmailConfig, error) {
	var c EmailConfig
	err := s.pool.QueryRow(ctx,
		`SELECT id, provider, host, port, username, password, from_address, from_name,
			api_key, encryption, enabled, created_at, updated_at
		 FROM email_configs LIMIT 1`).Scan(
		&c.ID, &c.Provider, &c.Host, &c.Port, &c.Username, &c.Password, &c.FromAddress,
		&c.FromName, &c.APIKey, &c.Encryption, &c.Enabled, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (s *PostgresPoolStorage) SaveEmailConfig(ctx context.Context, config EmailConfig) error {
	if config.ID == "" {
		config.ID = "default"
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO email_configs (id, provider, host, port, username, password, from_address,
			from_name, api_key, encryption, enabled, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,now(),now())
		 ON CONFLICT (id) DO UPDATE SET provider=EXCLUDED.provider, host=EXCLUDED.host,
			port=EXCLUDED.port, username=EXCLUDED.username, password=EXCLUDED.password,
			from_address=EXCLUDED.from_address, from_name=EXCLUDED.from_name,
			api_key=EXCLUDED.api_key, encryption=EXCLUDED.encryption,
			enabled=EXCLUDED.enabled, updated_at=now()`,
		config.ID, config.Provider, config.Host, config.Port, config.Username, config.Password,
		config.FromAddress, config.FromName, config.APIKey, config.Encryption, config.Enabled)
	return err
}

// Users and tokens are managed by the API process on the GORM backend; the
// worker only needs consumers, settings and email config. The queries below
// keep this backend a full Storage so the factory can still hand it to the
// auth service if a deployment runs everything on pgxpool.

func (s *PostgresPoolStorage) CreateUser(ctx context.Context, user User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, username, email, password_hash, role, consumer_number, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		user.ID, user.Username, user.Email, user.PasswordHash, user.Role, user.ConsumerNumber,
		user.CreatedAt, user.UpdatedAt)
	return err
}

func (s *PostgresPoolStorage) GetUser(ctx context.Context, id string) (*User, error) {
	return s.scanUser(ctx, `SELECT id, username, email, password_hash, role, consumer_number, created_at, updated_at FROM users WHERE id = $1`, id)
}

func (s *PostgresPoolStorage) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	return s.scanUser(ctx, `SELECT id, username, email, password_hash, role, consumer_number, created_at, updated_at FROM users WHERE username = $1`, username)
}

func (s *PostgresPoolStorage) scanUser(ctx context.Context, query string, arg any) (*User, error) {
	var u User
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &u.ConsumerNumber, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (s *PostgresPoolStorage) UpdateUser(ctx context.Context, user User) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE users SET username=$2, email=$3, password_hash=$4, role=$5, consumer_number=$6, updated_at=now() WHERE id=$1`,
		user.ID, user.Username, user.Email, user.PasswordHash, user.Role, user.ConsumerNumber)
	return err
}

func (s *PostgresPoolStorage) DeleteUser(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	return err
}

func (s *PostgresPoolStorage) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, username, email, password_hash, role, consumer_number, created_at, updated_at FROM users`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &u.ConsumerNumber, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *PostgresPoolStorage) CreateToken(ctx context.Context, token Token) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tokens (id, user_id, name, token_hash, role, created_at, expires_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		token.ID, token.UserID, token.Name, token.TokenHash, token.Role, token.CreatedAt, token.ExpiresAt)
	return err
}

func (s *PostgresPoolStorage) GetTokenByHash(ctx context.Context, hash string) (*Token, error) {
	var t Token
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, name, token_hash, role, created_at, expires_at, last_used_at FROM tokens WHERE token_hash = $1`, hash).Scan(
		&t.ID, &t.UserID, &t.Name, &t.TokenHash, &t.Role, &t.CreatedAt, &t.ExpiresAt, &t.LastUsedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (s *PostgresPoolStorage) ListTokens(ctx context.Context, userID string) ([]Token, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, name, token_hash, role, created_at, expires_at, last_used_at FROM tokens WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Token
	for rows.Next() {
		var t Token
		if err := rows.Scan(&t.ID, &t.UserID, &t.Name, &t.TokenHash, &t.Role, &t.CreatedAt, &t.ExpiresAt, &t.LastUsedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *PostgresPoolStorage) DeleteToken(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM tokens WHERE id = $1`, id)
	return err
}

func (s *PostgresPoolStorage) UpdateTokenLastUsed(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `UPDATE tokens SET last_used_at = now() WHERE id = $1`, id)
	return err
}

func (s *PostgresPoolStorage) LoadCasbinRules(ctx context.Context) ([]CasbinRule, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, ptype, v0, v1, v2, v3, v4, v5 FROM casbin_rules`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CasbinRule
	for rows.Next() {
		var r CasbinRule
		if err := rows.Scan(&r.ID, &r.PType, &r.V0, &r.V1, &r.V2, &r.V3, &r.V4, &r.V5); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresPoolStorage) AddCasbinRule(ctx context.Context, rule CasbinRule) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO casbin_rules (ptype, v0, v1, v2, v3, v4, v5) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		rule.PType, rule.V0, rule.V1, rule.V2, rule.V3, rule.V4, rule.V5)
	return err
}

func (s *PostgresPoolStorage) RemoveCasbinRule(ctx context.Context, rule CasbinRule) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM casbin_rules WHERE ptype=$1 AND v0=$2 AND v1=$3 AND v2=$4`,
		rule.PType, rule.V0, rule.V1, rule.V2)
	return err
}

// Scheduled Jobs & Locking

func (s *PostgresPoolStorage) AcquireAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, key).Scan(&ok)
	return ok, err
}

func (s *PostgresPoolStorage) ReleaseAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx, `SELECT pg_advisory_unlock($1)`, key).Scan(&ok)
	return ok, err
}

func (s *PostgresPoolStorage) UpdateScheduledJob(ctx context.Context, name string, started time.Time, dur time.Duration, success bool, errMsg string) error {
	status := 0
	if success {
		status = 1
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO scheduled_jobs (name, last_run_at, last_duration_ms, last_success, last_error)
		 VALUES ($1,$2,$3,$4,$5)
		 ON CONFLICT (name) DO UPDATE SET last_run_at=EXCLUDED.last_run_at,
			last_duration_ms=EXCLUDED.last_duration_ms, last_success=EXCLUDED.last_success,
			last_error=EXCLUDED.last_error`,
		name, started, dur.Milliseconds(), status, errMsg)
	return err
}

// Stat exposes pool statistics for the DB pool metrics gauges.
func (s *PostgresPoolStorage) Stat() *pgxpool.Stat {
	return s.pool.Stat()
}
