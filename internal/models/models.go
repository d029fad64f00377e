package models

import (
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

// BaseModel provides common fields and auto-generated ULID for all models
type BaseModel struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(26)"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// BeforeCreate generates a ULID for the ID field if it's empty
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = ulid.Make().String()
	}
	return nil
}

// Role is the access level of an account
type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// User represents a platform account
type User struct {
	BaseModel
	Email              string     `json:"email" gorm:"uniqueIndex;not null"`
	PasswordHash       string     `json:"-" gorm:"not null"`
	Name               string     `json:"name" gorm:"not null"`
	Role               Role       `json:"role" gorm:"type:varchar(16);not null;default:USER"`
	IsEmailVerified    bool       `json:"is_email_verified" gorm:"not null;default:false"`
	Active             bool       `json:"active" gorm:"not null;default:true"`
	VerificationToken  string     `json:"-" gorm:"index"`
	VerificationSentAt *time.Time `json:"-"`
	Balance            int64      `json:"balance" gorm:"not null;default:0"` // cents
	UpdatedAt          time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

// IsAdmin reports whether the user has the admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Plan is an investment product users can put money into
type Plan struct {
	BaseModel
	Name         string    `json:"name" gorm:"uniqueIndex;not null"`
	Description  string    `json:"description" gorm:"type:text"`
	MinAmount    int64     `json:"min_amount" gorm:"not null"` // cents
	MaxAmount    int64     `json:"max_amount" gorm:"not null"` // cents
	ROIPercent   float64   `json:"roi_percent" gorm:"not null"`
	DurationDays int       `json:"duration_days" gorm:"not null"`
	ImageURL     string    `json:"image_url"`
	Active       bool      `json:"active" gorm:"not null;default:true"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// ExpectedReturn is the profit earned on amount at maturity
func (p *Plan) ExpectedReturn(amount int64) int64 {
	return int64(float64(amount) * p.ROIPercent / 100)
}

// UserPlanStatus is the lifecycle of an investment
type UserPlanStatus string

const (
	UserPlanActive    UserPlanStatus = "ACTIVE"
	UserPlanCompleted UserPlanStatus = "COMPLETED"
	UserPlanCancelled UserPlanStatus = "CANCELLED"
)

// UserPlan is a user's investment in a plan
type UserPlan struct {
	BaseModel
	UserID         string         `json:"user_id" gorm:"not null;index"`
	PlanID         string         `json:"plan_id" gorm:"not null;index"`
	Amount         int64          `json:"amount" gorm:"not null"`
	ExpectedReturn int64          `json:"expected_return" gorm:"not null"`
	Status         UserPlanStatus `json:"status" gorm:"type:varchar(16);not null;default:ACTIVE;index"`
	StartsAt       time.Time      `json:"starts_at" gorm:"not null"`
	EndsAt         time.Time      `json:"ends_at" gorm:"not null;index"`
	SettledAt      *time.Time     `json:"settled_at"`

	// Relationships
	User *User `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:RESTRICT"`
	Plan *Plan `json:"plan,omitempty" gorm:"foreignKey:PlanID;constraint:OnDelete:RESTRICT"`
}

// TransactionType classifies money movements
type TransactionType string

const (
	TransactionDeposit    TransactionType = "DEPOSIT"
	TransactionInvestment TransactionType = "INVESTMENT"
	TransactionPayout     TransactionType = "PAYOUT"
	TransactionWithdrawal TransactionType = "WITHDRAWAL"
)

// TransactionStatus is the settlement state of a transaction
type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "PENDING"
	TransactionCompleted TransactionStatus = "COMPLETED"
	TransactionFailed    TransactionStatus = "FAILED"
)

// Transaction records a movement of money on a user's balance
type Transaction struct {
	BaseModel
	UserID     string            `json:"user_id" gorm:"not null;index"`
	UserPlanID *string           `json:"user_plan_id" gorm:"index"`
	Type       TransactionType   `json:"type" gorm:"type:varchar(16);not null"`
	Amount     int64             `json:"amount" gorm:"not null"`
	Status     TransactionStatus `json:"status" gorm:"type:varchar(16);not null"`
	Reference  string            `json:"reference"`

	User     *User     `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:RESTRICT"`
	UserPlan *UserPlan `json:"-" gorm:"foreignKey:UserPlanID;constraint:OnDelete:RESTRICT"`
}

// InvoiceStatus is the payment state of an invoice
type InvoiceStatus string

const (
	InvoiceUnpaid InvoiceStatus = "UNPAID"
	InvoicePaid   InvoiceStatus = "PAID"
)

// Invoice is issued for every investment transaction
type Invoice struct {
	BaseModel
	UserID        string        `json:"user_id" gorm:"not null;index"`
	TransactionID string        `json:"transaction_id" gorm:"not null;index"`
	Number        string        `json:"number" gorm:"uniqueIndex;not null"`
	Amount        int64         `json:"amount" gorm:"not null"`
	Status        InvoiceStatus `json:"status" gorm:"type:varchar(16);not null"`

	User        *User        `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:RESTRICT"`
	Transaction *Transaction `json:"-" gorm:"foreignKey:TransactionID;constraint:OnDelete:RESTRICT"`
}

// GenerateInvoiceNumber returns INV-YYYYMMDD-<last 8 chars of the transaction ID>
func GenerateInvoiceNumber(transactionID string, at time.Time) string {
	suffix := transactionID
	if len(suffix) > 8 {
		suffix = suffix[len(suffix)-8:]
	}
	return fmt.Sprintf("INV-%s-%s", at.UTC().Format("20060102"), suffix)
}

// TicketStatus tracks support ticket progress
type TicketStatus string

const (
	TicketOpen     TicketStatus = "OPEN"
	TicketAnswered TicketStatus = "ANSWERED"
	TicketClosed   TicketStatus = "CLOSED"
)

// Ticket is a support request raised by a user
type Ticket struct {
	BaseModel
	UserID    string       `json:"user_id" gorm:"not null;index"`
	Subject   string       `json:"subject" gorm:"not null"`
	Message   string       `json:"message" gorm:"type:text;not null"`
	Status    TicketStatus `json:"status" gorm:"type:varchar(16);not null;default:OPEN"`
	Reply     string       `json:"reply" gorm:"type:text"`
	UpdatedAt time.Time    `json:"updated_at" gorm:"autoUpdateTime"`

	User *User `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:RESTRICT"`
}

// PaymentMethodKind is the rail used for deposits and payouts
type PaymentMethodKind string

const (
	PaymentBank   PaymentMethodKind = "BANK"
	PaymentCard   PaymentMethodKind = "CARD"
	PaymentCrypto PaymentMethodKind = "CRYPTO"
)

// PaymentMethod is a saved payout/deposit destination
type PaymentMethod struct {
	BaseModel
	UserID    string            `json:"user_id" gorm:"not null;index"`
	Kind      PaymentMethodKind `json:"kind" gorm:"type:varchar(16);not null"`
	Label     string            `json:"label" gorm:"not null"`
	Details   string            `json:"details" gorm:"type:text"`
	IsDefault bool              `json:"is_default" gorm:"not null;default:false"`

	User *User `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:RESTRICT"`
}

// AutoMigrate runs database migrations for all models
func AutoMigrate(db *gorm.DB) error {
	// Parents first so foreign keys resolve
	models := []interface{}{
		&User{}, &Plan{}, &UserPlan{}, &Transaction{}, &Invoice{}, &Ticket{}, &PaymentMethod{},
	}

	return db.AutoMigrate(models...)
}

// FindByID safely finds a record by string ID
func FindByID[T any](db *gorm.DB, id string, model *T) error {
	return db.Where("id = ?", id).First(model).Error
}

// FindByIDWithPreload finds a record by ID with preloading
func FindByIDWithPreload[T any](db *gorm.DB, id string, model *T, preloads ...string) error {
	query := db
	for _, preload := range preloads {
		query = query.Preload(preload)
	}
	return query.Where("id = ?", id).First(model).Error
}
