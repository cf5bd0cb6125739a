package storage

import "time"

// Payment status values stored on a consumer.
const (
	PaymentPending = "Pending"
	PaymentOverdue = "Overdue"
	PaymentPaid    = "Paid"
)

// Consumer is one record per physical service connection. It carries the
// identity of the connection, the current cumulative meter value, the open
// bill and the fine state for the current billing cycle.
type Consumer struct {
	ConsumerNumber    string `json:"consumerNumber" gorm:"primaryKey;column:consumer_number"`
	Name              string `json:"name" gorm:"column:name"`
	Address           string `json:"address" gorm:"column:address"`
	PhoneNumber       string `json:"phoneNumber" gorm:"column:phone_number"`
	MeterSerialNumber string `json:"meterSerialNumber" gorm:"column:meter_serial_number"`
	TariffPlan        string `json:"tariffPlan" gorm:"column:tariff_plan"`

	CurrentReading float64        `json:"currentReading" gorm:"column:current_reading"`
	Readings       []MeterReading `json:"readings,omitempty" gorm:"foreignKey:ConsumerNumber;references:ConsumerNumber"`

	Amount              float64    `json:"amount" gorm:"column:amount"`
	LastBillDate        *time.Time `json:"lastBillDate,omitempty" gorm:"column:last_bill_date"`
	NextPaymentDeadline *time.Time `json:"nextPaymentDeadline,omitempty" gorm:"column:next_payment_deadline"`
	PaymentStatus       string     `json:"paymentStatus" gorm:"column:payment_status"`
	LastPaymentDate     *time.Time `json:"lastPaymentDate,omitempty" gorm:"column:last_payment_date"`
	LastPaidAmount      float64    `json:"lastPaidAmount" gorm:"column:last_paid_amount"`

	IsFineApplied    bool       `json:"isFineApplied" gorm:"column:is_fine_applied"`
	FineAmount       float64    `json:"fineAmount" gorm:"column:fine_amount"`
	CGSTOnFine       float64    `json:"cgstOnFine" gorm:"column:cgst_on_fine"`
	SGSTOnFine       float64    `json:"sgstOnFine" gorm:"column:sgst_on_fine"`
	TotalFineWithTax float64    `json:"totalFineWithTax" gorm:"column:total_fine_with_tax"`
	FineAppliedDate  *time.Time `json:"fineAppliedDate,omitempty" gorm:"column:fine_applied_date"`

	// Reminder bookkeeping for the reminder sweep; cleared on settlement.
	ReminderSent7Days   bool `json:"-" gorm:"column:reminder_sent_7_days"`
	ReminderSent3Days   bool `json:"-" gorm:"column:reminder_sent_3_days"`
	OverdueReminderSent bool `json:"-" gorm:"column:overdue_reminder_sent"`

	CreatedAt time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at"`
}

// LastReading returns the most recent entry in the reading history, or nil
// when no reading has been recorded yet.
func (c *Consumer) LastReading() *MeterReading {
	if len(c.Readings) == 0 {
		return nil
	}
	return &c.Readings[len(c.Readings)-1]
}

// MeterReading is a single entry in a consumer's reading history. The history
// is append-only; the last entry is the most recent reading.
type MeterReading struct {
	ID                 uint      `json:"-" gorm:"primaryKey;column:id"`
	ConsumerNumber     string    `json:"-" gorm:"index;column:consumer_number"`
	Date               time.Time `json:"date" gorm:"column:date"`
	Units              float64   `json:"units" gorm:"column:units"`
	ManualReading      float64   `json:"manualReading,omitempty" gorm:"column:manual_reading"`
	AIExtractedReading float64   `json:"aiExtractedReading,omitempty" gorm:"column:ai_extracted_reading"`
}

// User represents a registered user in the system: admin or operator staff,
// or a consumer login bound to a consumer number.
type User struct {
	ID             string    `json:"id" gorm:"primaryKey;column:id"`
	Username       string    `json:"username" gorm:"unique;column:username"`
	Email          string    `json:"email" gorm:"column:email"`
	PasswordHash   string    `json:"-" gorm:"column:password_hash"`
	Role           string    `json:"role" gorm:"column:role"`
	ConsumerNumber string    `json:"consumer_number,omitempty" gorm:"column:consumer_number"`
	CreatedAt      time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt      time.Time `json:"updated_at" gorm:"column:updated_at"`
}

// Token represents an API access token.
type Token struct {
	ID         string     `json:"id" gorm:"primaryKey;column:id"`
	UserID     string     `json:"user_id" gorm:"column:user_id"`
	Name       string     `json:"name" gorm:"column:name"`
	TokenHash  string     `json:"-" gorm:"column:token_hash"`
	Role       string     `json:"role" gorm:"column:role"`
	CreatedAt  time.Time  `json:"created_at" gorm:"column:created_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty" gorm:"column:expires_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty" gorm:"column:last_used_at"`
}

// CasbinRule represents a policy rule for RBAC.
type CasbinRule struct {
	ID    uint   `gorm:"primaryKey"`
	PType string `json:"ptype" gorm:"column:ptype"`
	V0    string `json:"v0" gorm:"column:v0"`
	V1    string `json:"v1" gorm:"column:v1"`
	V2    string `json:"v2" gorm:"column:v2"`
	V3    string `json:"v3" gorm:"column:v3"`
	V4    string `json:"v4" gorm:"column:v4"`
	V5    string `json:"v5" gorm:"column:v5"`
}

// EmailConfig holds configuration for reminder email delivery.
type EmailConfig struct {
	ID          string    `json:"id" gorm:"primaryKey;column:id"`
	Provider    string    `json:"provider" gorm:"column:provider"` // "smtp", "sendgrid", "gmail", "resend"
	Host        string    `json:"host,omitempty" gorm:"column:host"`
	Port        int       `json:"port,omitempty" gorm:"column:port"`
	Username    string    `json:"username,omitempty" gorm:"column:username"`
	Password    string    `json:"password,omitempty" gorm:"column:password"`
	FromAddress string    `json:"from_address" gorm:"column:from_address"`
	FromName    string    `json:"from_name" gorm:"column:from_name"`
	APIKey      string    `json:"api_key,omitempty" gorm:"column:api_key"` // For Sendgrid
	Encryption  string    `json:"encryption,omitempty" gorm:"column:encryption"` // "none", "ssl", "tls"
	Enabled     bool      `json:"enabled" gorm:"column:enabled"`
	CreatedAt   time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"column:updated_at"`
}
