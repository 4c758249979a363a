package directory

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// User is an admin account allowed to manage the directory.
type User struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Username  string    `gorm:"uniqueIndex;not null" json:"username"`
	Password  string    `gorm:"not null" json:"-"` // bcrypt hash
	CreatedAt time.Time `json:"created_at"`
}

// Node is a directory entry mapping a peer's static public key to its
// last-known dial address.
type Node struct {
	PublicKey string    `gorm:"primarykey" json:"public_key"` // hex, compressed secp256k1
	Address   string    `gorm:"not null" json:"address"`
	Platform  string    `json:"platform,omitempty"`
	LastSeen  time.Time `json:"last_seen"`
	CreatedAt time.Time `json:"created_at"`
}

// InitDB opens the database and runs migrations. Only sqlite:// DSNs are
// supported, matching this service's single-node deployment model.
func InitDB(dsn string) (*gorm.DB, error) {
	if !strings.HasPrefix(dsn, "sqlite://") {
		return nil, fmt.Errorf("unsupported database DSN: %s (only sqlite:// supported)", dsn)
	}
	dbPath := strings.TrimPrefix(dsn, "sqlite://")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.AutoMigrate(&User{}, &Node{}); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}
