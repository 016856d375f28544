// Package groundlog is the ground-station archive. Every beacon, telemetry
// frame, and command exchange heard from the satellite is recorded in a
// local SQLite database so operators can reconstruct mission history without
// asking the spacecraft to repeat itself.
package groundlog

import (
	"database/sql"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// Beacon is one received beacon line.
type Beacon struct {
	ID         uint      `gorm:"primarykey"`
	ReceivedAt time.Time `gorm:"index"`
	Mode       string    `gorm:"size:20"`
	Payload    string    `gorm:"size:512"`
}

func (Beacon) TableName() string { return "beacons" }

// Telemetry is one received telemetry frame.
type Telemetry struct {
	ID         uint      `gorm:"primarykey"`
	ReceivedAt time.Time `gorm:"index"`
	Frame      string    `gorm:"size:512"`
}

func (Telemetry) TableName() string { return "telemetry" }

// Exchange is one command sent and the response lines that came back.
type Exchange struct {
	ID       uint      `gorm:"primarykey"`
	SentAt   time.Time `gorm:"index"`
	Command  string    `gorm:"size:512"`
	Response string    `gorm:"size:2048"`
}

func (Exchange) TableName() string { return "exchanges" }

// DB wraps the GORM handle over the pure Go SQLite driver.
type DB struct {
	db *gorm.DB
}

// Open creates or opens the archive at path and migrates the schema.
func Open(path string) (*DB, error) {
	dialector := sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        path,
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := configureSQLite(sqlDB); err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&Beacon{}, &Telemetry{}, &Exchange{}); err != nil {
		return nil, err
	}
	return &DB{db: db}, nil
}

func configureSQLite(sqlDB *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := sqlDB.Exec(pragma); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// RecordBeacon archives a beacon line.
func (d *DB) RecordBeacon(receivedAt time.Time, mode, payload string) error {
	return d.db.Create(&Beacon{ReceivedAt: receivedAt, Mode: mode, Payload: payload}).Error
}

// RecordTelemetry archives a telemetry frame.
func (d *DB) RecordTelemetry(receivedAt time.Time, frame string) error {
	return d.db.Create(&Telemetry{ReceivedAt: receivedAt, Frame: frame}).Error
}

// RecordExchange archives a sent command with its responses.
func (d *DB) RecordExchange(sentAt time.Time, command, response string) error {
	return d.db.Create(&Exchange{SentAt: sentAt, Command: command, Response: response}).Error
}

// RecentBeacons returns the latest n beacons, newest first.
func (d *DB) RecentBeacons(n int) ([]Beacon, error) {
	var out []Beacon
	err := d.db.Order("received_at desc").Limit(n).Find(&out).Error
	return out, err
}

// RecentTelemetry returns the latest n frames, newest first.
func (d *DB) RecentTelemetry(n int) ([]Telemetry, error) {
	var out []Telemetry
	err := d.db.Order("received_at desc").Limit(n).Find(&out).Error
	return out, err
}
