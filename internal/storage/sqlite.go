//go:build !js && !wasm

// Package storage persists run history, the oracle score cache and artifact
// sequence counters in SQLite through GORM.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/himanishpuri/AutoPESQ/pkg/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

const DefaultDBFile = "autopesq.sqlite3"
const errDBClientNil = "db client is nil"

// ErrNotFound is returned when a run id does not exist.
var ErrNotFound = errors.New("record not found")

type DBClient struct {
	DB *gorm.DB
	db *sql.DB
}

type RunRecord struct {
	ID            string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Sequence      int       `gorm:"index:idx_run_sequence" json:"sequence"`
	ReferencePath string    `json:"reference_path"`
	DegradedPath  string    `json:"degraded_path"`
	AlignedPath   string    `json:"aligned_path"`
	SampleRate    int       `json:"sample_rate"`
	LagSamples    int       `json:"lag_samples"`
	OffsetSeconds float64   `json:"offset_seconds"`
	Score         float64   `json:"score"`
	Mode          string    `gorm:"type:varchar(2)" json:"mode"`
	Status        string    `gorm:"index:idx_run_status" json:"status"`
	ErrorKind     string    `json:"error_kind"`
	ErrorMessage  string    `json:"error_message"`
	CreatedAt     time.Time `gorm:"index:idx_run_created" json:"created_at"`
}

func (RunRecord) TableName() string { return "runs" }

type ScoreRecord struct {
	Digest    string `gorm:"primaryKey;type:varchar(64)"`
	Mode      string `gorm:"type:varchar(2)"`
	Score     float64
	CreatedAt time.Time
}

func (ScoreRecord) TableName() string { return "score_cache" }

type SequenceRecord struct {
	Name  string `gorm:"primaryKey"`
	Value int
}

func (SequenceRecord) TableName() string { return "sequences" }

func NewDBClient() (*DBClient, error) {
	dbPath := os.Getenv("AUTOPESQ_DB_PATH")
	if dbPath == "" {
		dbPath = DefaultDBFile
	}
	return NewDBClientWithPath(dbPath)
}

func NewDBClientWithPath(dbPath string) (*DBClient, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_pragma=busy_timeout(5000)"), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	// SQLite serialises writers; one connection keeps sequence bumps atomic.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&RunRecord{}, &ScoreRecord{}, &SequenceRecord{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &DBClient{DB: db, db: sqlDB}, nil
}

func (c *DBClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *DBClient) check() error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	return nil
}

// SaveRun stores run, assigning a new id when run.ID is empty, and returns
// the id.
func (c *DBClient) SaveRun(run models.Run) (string, error) {
	if err := c.check(); err != nil {
		return "", err
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	rec := toRecord(run)
	if err := c.DB.Save(&rec).Error; err != nil {
		return "", fmt.Errorf("saving run: %w", err)
	}
	return rec.ID, nil
}

func (c *DBClient) GetRun(id string) (models.Run, error) {
	if err := c.check(); err != nil {
		return models.Run{}, err
	}
	var rec RunRecord
	err := c.DB.Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Run{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.Run{}, fmt.Errorf("querying run: %w", err)
	}
	return fromRecord(rec), nil
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (c *DBClient) ListRuns(limit int) ([]models.Run, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	q := c.DB.Order("created_at DESC").Order("sequence DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []RunRecord
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	out := make([]models.Run, 0, len(rows))
	for _, r := range rows {
		out = append(out, fromRecord(r))
	}
	return out, nil
}

func (c *DBClient) DeleteRun(id string) error {
	if err := c.check(); err != nil {
		return err
	}
	res := c.DB.Where("id = ?", id).Delete(&RunRecord{})
	if res.Error != nil {
		return fmt.Errorf("deleting run: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return nil
}

func (c *DBClient) CountRuns() (int64, error) {
	if err := c.check(); err != nil {
		return 0, err
	}
	var n int64
	if err := c.DB.Model(&RunRecord{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("counting runs: %w", err)
	}
	return n, nil
}

func (c *DBClient) GetScore(key string) (float64, bool, error) {
	if err := c.check(); err != nil {
		return 0, false, err
	}
	var rec ScoreRecord
	err := c.DB.Where("digest = ?", key).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("querying score cache: %w", err)
	}
	return rec.Score, true, nil
}

func (c *DBClient) PutScore(key string, mode models.Mode, score float64) error {
	if err := c.check(); err != nil {
		return err
	}
	rec := ScoreRecord{Digest: key, Mode: mode.Flag(), Score: score}
	err := c.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "digest"}},
		DoUpdates: clause.AssignmentColumns([]string{"mode", "score"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("storing score: %w", err)
	}
	return nil
}

// NextSequence increments and returns the named counter, starting at 1.
func (c *DBClient) NextSequence(name string) (int, error) {
	if err := c.check(); err != nil {
		return 0, err
	}
	var next int
	err := c.DB.Transaction(func(tx *gorm.DB) error {
		var rec SequenceRecord
		err := tx.Where("name = ?", name).First(&rec).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			rec = SequenceRecord{Name: name, Value: 1}
			if err := tx.Create(&rec).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			rec.Value++
			if err := tx.Model(&rec).Update("value", rec.Value).Error; err != nil {
				return err
			}
		}
		next = rec.Value
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("advancing sequence %s: %w", name, err)
	}
	return next, nil
}

func toRecord(r models.Run) RunRecord {
	return RunRecord{
		ID:            r.ID,
		Sequence:      r.Sequence,
		ReferencePath: r.ReferencePath,
		DegradedPath:  r.DegradedPath,
		AlignedPath:   r.AlignedPath,
		SampleRate:    r.SampleRate,
		LagSamples:    r.LagSamples,
		OffsetSeconds: r.OffsetSeconds,
		Score:         r.Score,
		Mode:          r.Mode.Flag(),
		Status:        string(r.Status),
		ErrorKind:     r.ErrorKind,
		ErrorMessage:  r.ErrorMessage,
		CreatedAt:     r.CreatedAt,
	}
}

func fromRecord(r RunRecord) models.Run {
	mode, _ := models.ParseMode(r.Mode)
	return models.Run{
		ID:            r.ID,
		Sequence:      r.Sequence,
		ReferencePath: r.ReferencePath,
		DegradedPath:  r.DegradedPath,
		AlignedPath:   r.AlignedPath,
		SampleRate:    r.SampleRate,
		LagSamples:    r.LagSamples,
		OffsetSeconds: r.OffsetSeconds,
		Score:         r.Score,
		Mode:          mode,
		Status:        models.RunStatus(r.Status),
		ErrorKind:     r.ErrorKind,
		ErrorMessage:  r.ErrorMessage,
		CreatedAt:     r.CreatedAt,
	}
}
