package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	oerrors "github.com/appforge/cli/internal/errors"
	"github.com/appforge/cli/internal/output"
)

// TableName stores records in the generation_runs table.
func (Record) TableName() string {
	return "generation_runs"
}

// SQLStore keeps records in a relational database through gorm.
type SQLStore struct {
	db *gorm.DB
}

// IsPostgresDSN reports whether dsn addresses PostgreSQL rather than a
// SQLite file.
func IsPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") ||
		strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=")
}

// OpenSQL connects to PostgreSQL when dsn is a postgres URL or key/value
// DSN, and otherwise treats dsn as a SQLite database file.
func OpenSQL(dsn string) (*SQLStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("sql registry needs a dsn")
	}

	var dialector gorm.Dialector
	sqliteFile := !IsPostgresDSN(dsn)
	if sqliteFile {
		output.Debug("opening sqlite registry", "path", dsn)
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("creating registry directory: %w", err)
		}
		dialector = sqlite.Open(dsn + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	} else {
		output.Debug("opening postgres registry")
		dialector = postgres.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to registry database: %w", err)
	}

	if sqliteFile {
		// SQLite allows one writer; serialize through a single connection.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("configuring registry database: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return NewSQLStore(db)
}

// NewSQLStore wraps an open gorm connection and migrates the schema.
func NewSQLStore(db *gorm.DB) (*SQLStore, error) {
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("migrating registry schema: %w", err)
	}
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Create(ctx context.Context, rec *Record) error {
	if err := checkCreate(rec); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Record{}).Where("run_id = ?", rec.RunID).Count(&count).Error; err != nil {
			return fmt.Errorf("checking run %s: %w", rec.RunID, err)
		}
		if count > 0 {
			return oerrors.Wrap(oerrors.ErrConflict, fmt.Sprintf("run %s already exists", rec.RunID))
		}
		if err := tx.Create(rec).Error; err != nil {
			return fmt.Errorf("creating run %s: %w", rec.RunID, err)
		}
		return nil
	})
}

func (s *SQLStore) Update(ctx context.Context, rec *Record) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var prev Record
		err := tx.Where("run_id = ?", rec.RunID).First(&prev).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return runNotFound(rec.RunID)
		}
		if err != nil {
			return fmt.Errorf("loading run %s: %w", rec.RunID, err)
		}

		if err := checkUpdate(&prev, rec); err != nil {
			return err
		}

		rec.CreatedAt = prev.CreatedAt
		if err := tx.Save(rec).Error; err != nil {
			return fmt.Errorf("updating run %s: %w", rec.RunID, err)
		}
		return nil
	})
}

func (s *SQLStore) Get(ctx context.Context, runID string) (*Record, error) {
	var rec Record
	err := s.db.WithContext(ctx).Where("run_id = ?", runID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, runNotFound(runID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading run %s: %w", runID, err)
	}
	return &rec, nil
}

func (s *SQLStore) Latest(ctx context.Context, projectID string) (*Record, error) {
	return s.first(projectID, s.db.WithContext(ctx).Where("project_id = ?", projectID))
}

func (s *SQLStore) LastCompleted(ctx context.Context, projectID string) (*Record, error) {
	rec, err := s.first(projectID, s.db.WithContext(ctx).
		Where("project_id = ? AND status = ?", projectID, StatusCompleted))
	if errors.Is(err, oerrors.ErrNotFound) {
		return nil, oerrors.NewNotFoundError(fmt.Sprintf("project %q has no completed run", projectID), projectID, "")
	}
	return rec, err
}

func (s *SQLStore) first(projectID string, q *gorm.DB) (*Record, error) {
	var rec Record
	err := q.Order("run_id DESC").First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, projectNotFound(projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading project %s: %w", projectID, err)
	}
	return &rec, nil
}

func (s *SQLStore) Runs(ctx context.Context, projectID string) ([]*Record, error) {
	var recs []*Record
	if err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("run_id DESC").
		Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("listing runs of %s: %w", projectID, err)
	}
	if len(recs) == 0 {
		return nil, projectNotFound(projectID)
	}
	return recs, nil
}

func (s *SQLStore) List(ctx context.Context) ([]*Record, error) {
	db := s.db.WithContext(ctx)
	newest := db.Model(&Record{}).Select("MAX(run_id)").Group("project_id")

	var recs []*Record
	if err := db.Where("run_id IN (?)", newest).Order("project_id").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	return recs, nil
}

func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
