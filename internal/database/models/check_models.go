package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type StringArray []string

func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = []string{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("failed to scan StringArray: %v", value)
	}

	return json.Unmarshal(bytes, a)
}

func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

//-- GORM MODEL --

// CheckArchive is the settled record of a check written when its table is
// cleared or the check is voided.
type CheckArchive struct {
	ID         int64       `gorm:"primaryKey;autoIncrement"`
	OrderID    string      `gorm:"type:varchar(64);uniqueIndex;not null"`
	TableID    string      `gorm:"type:varchar(64);index"`
	TableNames StringArray `gorm:"type:text"`
	OrderType  string      `gorm:"type:varchar(16);not null"`
	Guests     int32       `gorm:"not null;default:0"`

	OrderStatus string `gorm:"type:varchar(16);not null"`
	CheckStatus string `gorm:"type:varchar(16);not null"`
	PaidStatus  string `gorm:"type:varchar(16);not null"`

	Subtotal   string `gorm:"type:varchar(32);not null"`
	PaidAmount string `gorm:"type:varchar(32);not null"`
	Balance    string `gorm:"type:varchar(32);not null"`

	Notes      *string     `gorm:"type:text"`
	MergedFrom StringArray `gorm:"type:text"`
	MergedInto *string     `gorm:"type:varchar(64)"`

	OpenedAt   time.Time `gorm:"not null"`
	ClosedAt   *time.Time
	ReopenedAt *time.Time
	ArchivedAt time.Time `gorm:"not null;index"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Items    []CheckArchiveItem    `gorm:"foreignKey:ArchiveId;constraint:OnDelete:CASCADE"`
	Payments []CheckArchivePayment `gorm:"foreignKey:ArchiveId;constraint:OnDelete:CASCADE"`
}

type CheckArchiveItem struct {
	ID             int64       `gorm:"primaryKey;autoIncrement"`
	ArchiveId      int64       `gorm:"index;not null"`
	ItemID         string      `gorm:"type:varchar(64);not null"`
	MenuItemID     string      `gorm:"type:varchar(64);not null"`
	Name           string      `gorm:"type:varchar(128);not null"`
	Quantity       int32       `gorm:"not null"`
	PaidQuantity   int32       `gorm:"not null"`
	ItemStatus     string      `gorm:"type:varchar(16);not null"`
	UnitPrice      string      `gorm:"type:varchar(32);not null"`
	LineTotal      string      `gorm:"type:varchar(32);not null"`
	Customizations StringArray `gorm:"type:text"`
	Notes          *string     `gorm:"type:text"`
	AddedAt        time.Time
}

type CheckArchivePayment struct {
	ID        int64   `gorm:"primaryKey;autoIncrement"`
	ArchiveId int64   `gorm:"index;not null"`
	PaymentID string  `gorm:"type:varchar(64);not null"`
	Amount    string  `gorm:"type:varchar(32);not null"`
	Method    string  `gorm:"type:varchar(32);not null"`
	Reference *string `gorm:"type:varchar(128)"`
	PaidAt    time.Time
}
