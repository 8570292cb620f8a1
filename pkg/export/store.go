package export

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Sternrassler/github-stars-collector/pkg/github"
	"github.com/Sternrassler/github-stars-collector/pkg/logging"
)

// MysqlConfig holds the MySQL connection settings.
type MysqlConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string

	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// RepositoryRow is the stored form of a collected record. Repeated runs
// upsert on the repository name, so the table always holds the latest
// observation.
type RepositoryRow struct {
	NameWithOwner      string    `gorm:"column:name_with_owner;type:varchar(255);primaryKey"`
	URL                string    `gorm:"column:url;type:varchar(512);not null"`
	Stars              int       `gorm:"column:stars;default:0"`
	PrimaryLanguage    string    `gorm:"column:primary_language;type:varchar(64)"`
	MergedPullRequests int       `gorm:"column:merged_pull_requests;default:0"`
	Releases           int       `gorm:"column:releases;default:0"`
	TotalIssues        int       `gorm:"column:total_issues;default:0"`
	ClosedIssues       int       `gorm:"column:closed_issues;default:0"`
	RepoCreatedAt      time.Time `gorm:"column:repo_created_at"`
	RepoPushedAt       time.Time `gorm:"column:repo_pushed_at"`
	CollectedAt        time.Time `gorm:"column:collected_at;not null"`
}

func (RepositoryRow) TableName() string {
	return "repositories"
}

// Store persists collected records in MySQL. The connection opens lazily on
// first use.
type Store struct {
	config MysqlConfig
	logger zerolog.Logger

	once    sync.Once
	db      *gorm.DB
	initErr error
}

// NewStore creates a store for the given connection settings.
func NewStore(config MysqlConfig) *Store {
	return &Store{
		config: config,
		logger: logging.NewLogger("export"),
	}
}

// DSN renders the MySQL connection string.
func (s *Store) DSN() string {
	config := mysqlDriver.Config{
		User:                 s.config.Username,
		Passwd:               s.config.Password,
		DBName:               s.config.Database,
		Addr:                 s.config.Host + ":" + s.config.Port,
		Net:                  "tcp",
		ParseTime:            true,
		AllowNativePasswords: true,
	}
	return config.FormatDSN()
}

// Db returns the shared connection, opening it on first call.
func (s *Store) Db() (*gorm.DB, error) {
	s.once.Do(func() {
		var db *gorm.DB
		db, s.initErr = gorm.Open(mysql.Open(s.DSN()), &gorm.Config{})
		if s.initErr != nil {
			return
		}

		var sqlDB *sql.DB
		sqlDB, s.initErr = db.DB()
		if s.initErr != nil {
			return
		}

		if s.config.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(s.config.MaxIdleConns)
		}
		if s.config.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(s.config.MaxOpenConns)
		}
		if s.config.ConnMaxLifetime > 0 {
			sqlDB.SetConnMaxLifetime(s.config.ConnMaxLifetime)
		}

		s.db = db
	})
	return s.db, s.initErr
}

// Ping verifies the connection.
func (s *Store) Ping() error {
	db, err := s.Db()
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Close releases the connection pool.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Migrate creates or updates the repositories table.
func (s *Store) Migrate() error {
	db, err := s.Db()
	if err != nil {
		return err
	}
	return db.AutoMigrate(&RepositoryRow{})
}

// SaveRecords upserts the collected records in batches inside one
// transaction. Existing rows are refreshed with the latest observation.
func (s *Store) SaveRecords(ctx context.Context, records []github.Repository, collectedAt time.Time) error {
	if len(records) == 0 {
		return nil
	}

	db, err := s.Db()
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	rows := make([]RepositoryRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, rowFromRecord(r, collectedAt))
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "name_with_owner"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"url",
				"stars",
				"primary_language",
				"merged_pull_requests",
				"releases",
				"total_issues",
				"closed_issues",
				"repo_created_at",
				"repo_pushed_at",
				"collected_at",
			}),
		}).CreateInBatches(rows, 100)
		if result.Error != nil {
			return fmt.Errorf("batch upsert: %w", result.Error)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info().
		Int("records", len(rows)).
		Str("table", RepositoryRow{}.TableName()).
		Msg("Collected records stored")
	return nil
}

func rowFromRecord(r github.Repository, collectedAt time.Time) RepositoryRow {
	return RepositoryRow{
		NameWithOwner:      r.NameWithOwner,
		URL:                r.URL,
		Stars:              r.Stars,
		PrimaryLanguage:    r.PrimaryLanguage,
		MergedPullRequests: r.MergedPullRequests,
		Releases:           r.Releases,
		TotalIssues:        r.TotalIssues,
		ClosedIssues:       r.ClosedIssues,
		RepoCreatedAt:      r.CreatedAt,
		RepoPushedAt:       r.PushedAt,
		CollectedAt:        collectedAt,
	}
}
