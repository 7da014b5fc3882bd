package database

import (
	"github.com/obsidian-labs/darkpool-api/internal/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDatabase initializes and returns a new GORM DB connection
func NewDatabase(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// Auto-migrate the orders relation
	if err := db.AutoMigrate(&types.ConfidentialOrder{}); err != nil {
		return nil, err
	}

	return db, nil
}
