package indexer

import (
	"time"

	"gorm.io/gorm"
)

// Transaction is one committed ledger operation.
type Transaction struct {
	Hash      string `gorm:"size:66;primaryKey"`
	Height    uint64 `gorm:"uniqueIndex"`
	Type      string `gorm:"size:32;index"`
	Sender    string `gorm:"size:64;index"`
	StateRoot string `gorm:"size:66"`
	Timestamp int64
	CreatedAt time.Time
}

// Event is one event emitted by a committed operation.
type Event struct {
	ID         uint   `gorm:"primaryKey"`
	TxHash     string `gorm:"size:66;index"`
	Height     uint64 `gorm:"index"`
	Position   int
	Type       string `gorm:"size:48;index"`
	Store      string `gorm:"size:66;index"`
	Attributes string `gorm:"type:text"`
	CreatedAt  time.Time
}

// Receipt mirrors a completed purchase.
type Receipt struct {
	Address   string `gorm:"size:66;primaryKey"`
	Store     string `gorm:"size:66;index"`
	Buyer     string `gorm:"size:64;index"`
	TotalPaid uint64
	Items     int
	Height    uint64
	Timestamp uint64
	TxHash    string `gorm:"size:66"`
	CreatedAt time.Time
}

// Store tracks the latest known state of a store.
type Store struct {
	Address       string `gorm:"size:66;primaryKey"`
	Owner         string `gorm:"size:64;index"`
	Name          string `gorm:"size:128"`
	Active        bool
	Revenue       uint64
	EscrowBalance uint64
	UpdatedHeight uint64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Cursor records the last indexed height.
type Cursor struct {
	Name      string `gorm:"size:32;primaryKey"`
	Height    uint64
	UpdatedAt time.Time
}

// AutoMigrate creates or updates the indexer tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Transaction{}, &Event{}, &Receipt{}, &Store{}, &Cursor{})
}
