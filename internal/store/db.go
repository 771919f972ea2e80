package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newestFirst orders by timestamp, then by insertion so rows sharing a
// second still come back most recent first.
const newestFirst = "result_time DESC, rowid DESC"

// Database wraps the GORM DB handle and exposes the append-only
// assessment log. It has no update or delete methods.
type Database struct {
	gorm *gorm.DB
	mu   sync.Mutex
}

// Open initializes the SQLite-backed database at the provided path.
func Open(path string, silent bool) (*Database, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	cfg := &gorm.Config{}
	if silent {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	}
	db, err := gorm.Open(sqlite.Open(path), cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&ModelOutput{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
		logrus.WithError(err).Warn("enable WAL mode")
	}
	if err := db.Exec("PRAGMA synchronous=NORMAL").Error; err != nil {
		logrus.WithError(err).Warn("set synchronous pragma")
	}
	if err := applyIndexes(db); err != nil {
		return nil, fmt.Errorf("apply indexes: %w", err)
	}
	return &Database{gorm: db}, nil
}

// Close closes the underlying database connection.
func (d *Database) Close() error {
	if d == nil {
		return nil
	}
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks the connection is usable.
func (d *Database) Ping() error {
	if d == nil {
		return errors.New("database is nil")
	}
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Append inserts one assessment record. Writers are serialized so each
// record lands as a single atomic insert.
func (d *Database) Append(record *ModelOutput) error {
	if d == nil {
		return errors.New("database is nil")
	}
	if record == nil {
		return errors.New("record is nil")
	}
	if strings.TrimSpace(record.ResultTime) == "" {
		return errors.New("record has no result time")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.gorm.Create(record).Error; err != nil {
		return fmt.Errorf("insert model output: %w", err)
	}
	return nil
}

// ListAll returns every record, newest first.
func (d *Database) ListAll() ([]ModelOutput, error) {
	rows, _, err := d.ListOutputs(OutputQuery{Limit: -1})
	return rows, err
}

// OutputQuery filters and pages the assessment log.
type OutputQuery struct {
	FarmerID string
	Offset   int
	Limit    int
}

// ListOutputs returns records matching opts, newest first, with the total
// number of matching rows.
func (d *Database) ListOutputs(opts OutputQuery) ([]ModelOutput, int64, error) {
	if d == nil {
		return nil, 0, errors.New("database is nil")
	}
	base := d.gorm.Model(&ModelOutput{})
	if farmer := strings.TrimSpace(opts.FarmerID); farmer != "" {
		base = base.Where("farmer_id = ?", farmer)
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query := base.Order(newestFirst)
	if opts.Limit > 0 {
		query = query.Offset(opts.Offset).Limit(opts.Limit)
	}
	var rows []ModelOutput
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// CountOutputs returns the number of stored records.
func (d *Database) CountOutputs() (int64, error) {
	var count int64
	if err := d.gorm.Model(&ModelOutput{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func applyIndexes(db *gorm.DB) error {
	stmts := []string{
		"CREATE INDEX IF NOT EXISTS idx_model_outputs_farmer_id ON model_outputs(farmer_id)",
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}
