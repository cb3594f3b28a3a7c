package models

import (
	"time"
)

// Alert types supported for price watches.
const (
	AlertTypeSpike       = "spike"
	AlertTypeDip         = "dip"
	AlertTypeFluctuation = "fluctuation"
)

// User owns alerts and receives notifications. Authentication endpoints
// are handled elsewhere; the row exists so alerts have an owner and an
// email opt-in flag.
type User struct {
	ID                        uint      `json:"id" gorm:"primaryKey"`
	Username                  string    `json:"username" gorm:"uniqueIndex;size:80;not null"`
	Email                     string    `json:"email" gorm:"uniqueIndex;size:120;not null"`
	PasswordHash              string    `json:"-" gorm:"size:255;not null"`
	IsPremium                 bool      `json:"is_premium" gorm:"default:false"`
	EmailNotificationsEnabled bool      `json:"email_notifications_enabled" gorm:"default:true"`
	CreatedAt                 time.Time `json:"created_at"`

	Alerts []Alert `json:"alerts,omitempty" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// Alert is a standing watch on one item. BaselinePrice is nil until the
// first evaluation arms the alert; every trigger resets it to the price
// that fired.
type Alert struct {
	ID               uint       `json:"id" gorm:"primaryKey"`
	UserID           uint       `json:"user_id" gorm:"index;not null"`
	ItemID           int        `json:"item_id" gorm:"index;not null"`
	ItemName         string     `json:"item_name" gorm:"size:200;not null"`
	AlertType        string     `json:"alert_type" gorm:"size:20;not null"`
	ThresholdPercent float64    `json:"threshold" gorm:"not null"`
	BaselinePrice    *int       `json:"baseline_price"`
	IsActive         bool       `json:"is_active" gorm:"default:true"`
	CreatedAt        time.Time  `json:"created_at"`
	LastCheckedAt    *time.Time `json:"last_checked"`
	LastTriggeredAt  *time.Time `json:"last_triggered"`
}

// AlertNotification records one trigger event. Append-only; the only
// permitted mutation is flipping IsRead to true.
type AlertNotification struct {
	ID                 uint      `json:"id" gorm:"primaryKey"`
	AlertID            uint      `json:"alert_id" gorm:"index;not null"`
	UserID             uint      `json:"user_id" gorm:"index;not null"`
	ItemID             int       `json:"item_id" gorm:"not null"`
	ItemName           string    `json:"item_name" gorm:"size:200;not null"`
	AlertType          string    `json:"alert_type" gorm:"size:20;not null"`
	OldPrice           *int      `json:"old_price"`
	NewPrice           int       `json:"new_price" gorm:"not null"`
	PriceChangePercent float64   `json:"price_change" gorm:"not null"`
	IsRead             bool      `json:"is_read" gorm:"default:false"`
	CreatedAt          time.Time `json:"created_at"`
}

// ItemSnapshot stores a sampled latest-price observation for an item so
// local history survives upstream window limits. Prices are pointers:
// either side may not have traded in the window.
type ItemSnapshot struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	ItemID    int       `json:"item_id" gorm:"index;not null"`
	High      *int      `json:"high"`
	Low       *int      `json:"low"`
	HighTime  *int64    `json:"high_time"`
	LowTime   *int64    `json:"low_time"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}
