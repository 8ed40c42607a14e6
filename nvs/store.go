// Package nvs persists the handful of RDM parameters that must survive
// a port's delete+install cycle (§6: "Persisted state (NVS)"): DMX start
// address, current personality, device label, and identify state. It
// backs onto a local SQLite file via gorm, the host-process equivalent
// of the original embedded NVS partition.
package nvs

import (
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/daedaluz/dmxrdm/driverr"
)

// row is the single-table schema: a short ASCII key (the PID's fixed
// NVS key per §6) mapped to the parameter's raw serialized bytes.
type row struct {
	Key   string `gorm:"primaryKey"`
	Value []byte
}

func (row) TableName() string { return "kv" }

// Store is one port's persisted-parameter table, keyed by a short ASCII
// string derived from the PID (e.g. "dmx.start", "dmx.personality",
// "device.label", "device.identify").
type Store struct {
	db *gorm.DB
}

// Open opens (creating if needed) a SQLite-backed store at path. Use
// ":memory:" for ephemeral/test stores.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, driverr.Wrap(driverr.InvalidState, err)
	}
	if err := db.AutoMigrate(&row{}); err != nil {
		return nil, driverr.Wrap(driverr.InvalidState, err)
	}
	return &Store{db: db}, nil
}

// Get reads the raw bytes stored under key, reporting false if absent.
func (s *Store) Get(key string) ([]byte, bool, error) {
	var r row
	err := s.db.First(&r, "key = ?", key).Error
	if err == gorm.ErrRecordNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, driverr.Wrap(driverr.InvalidState, err)
	}
	return r.Value, true, nil
}

// Set upserts key's raw bytes.
func (s *Store) Set(key string, value []byte) error {
	r := row{Key: key, Value: value}
	err := s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&r).Error
	if err != nil {
		return driverr.Wrap(driverr.InvalidState, err)
	}
	return nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return driverr.Wrap(driverr.InvalidState, err)
	}
	return sqlDB.Close()
}

// Keys used for the four PIDs §6 requires persisted.
const (
	KeyDMXStartAddress = "dmx.start"
	KeyPersonality      = "dmx.personality"
	KeyDeviceLabel      = "device.label"
	KeyIdentify         = "device.identify"
)
