package gormstore

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account mirrors the accounts table. Timestamps are driven by the domain
// clock, not by GORM's auto-time tracking.
type Account struct {
	ID        int64           `gorm:"primaryKey;autoIncrement"`
	Amount    decimal.Decimal `gorm:"type:decimal(32,10);not null"`
	Active    bool            `gorm:"not null"`
	CreatedAt time.Time       `gorm:"not null;autoCreateTime:false"`
	UpdatedAt time.Time       `gorm:"not null;autoUpdateTime:false"`
}

func (Account) TableName() string { return "accounts" }

// Reserve mirrors the reserves table. The primary key is the caller-supplied
// reservation id; the unique constraint is what makes duplicate ids fail.
type Reserve struct {
	ID        string          `gorm:"primaryKey"`
	AccountID int64           `gorm:"not null;index:idx_reserves_account_type,priority:1"`
	Amount    decimal.Decimal `gorm:"type:decimal(32,10);not null"`
	Type      string          `gorm:"not null;index:idx_reserves_account_type,priority:2"`
	CreatedAt time.Time       `gorm:"not null;autoCreateTime:false"`
}

func (Reserve) TableName() string { return "reserves" }
