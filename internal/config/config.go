package config

import "os"

type Config struct {
	ListenAddr string

	StorageDriver string
	DatabaseDSN   string

	// AIServiceURL is the base URL of the meter-image OCR service.
	AIServiceURL string

	// AdminPassword bootstraps the initial admin user when no users exist.
	AdminPassword string

	// ReminderSchedule is a cron expression (with seconds) for the payment
	// reminder sweep. A database setting overrides it at runtime.
	ReminderSchedule string

	AlertWebhookURL string
}

// FromEnv builds a Config from environment variables, with sane defaults.
func FromEnv() Config {
	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	driver := os.Getenv("STORAGE_DRIVER")
	if driver == "" {
		driver = "sqlite"
	}
	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		dsn = "smarteb.db"
	}
	ai := os.Getenv("AI_SERVICE_URL")
	if ai == "" {
		ai = "http://localhost:8000"
	}
	schedule := os.Getenv("REMINDER_SCHEDULE")
	if schedule == "" {
		schedule = "0 0 9 * * *"
	}
	return Config{
		ListenAddr:       addr,
		StorageDriver:    driver,
		DatabaseDSN:      dsn,
		AIServiceURL:     ai,
		AdminPassword:    os.Getenv("ADMIN_PASSWORD"),
		ReminderSchedule: schedule,
		AlertWebhookURL:  os.Getenv("ALERT_WEBHOOK_URL"),
	}
}
