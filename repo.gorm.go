package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

var _ BookStorage = (*gormBookStorage)(nil) // ensure gormBookStorage implements BookStorage.

// gormBookStorage is the relational primary store of book records.
type gormBookStorage struct {
	logger *zap.Logger
	db     *gorm.DB
}

// NewGormBookStorage provides an instance of relational book storage.
func NewGormBookStorage(logger *zap.Logger, db *gorm.DB) BookStorage {
	return &gormBookStorage{logger: logger, db: db}
}

// gormDialector picks the gorm driver matching the configured database.
func gormDialector(config *DatabaseConfig) (gorm.Dialector, error) {
	switch config.Driver {
	case DriverPostgres:
		return postgres.Open(config.DSN), nil
	case DriverSQLite:
		return sqlite.Open(config.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", config.Driver)
	}
}

// GetGormClient opens the relational database and waits for it to answer.
// It retries up to the configured number of attempts before giving up.
func GetGormClient(ctx context.Context, logger *zap.Logger, config *DatabaseConfig) (*gorm.DB, error) {
	dialector, err := gormDialector(config)
	if err != nil {
		return nil, err
	}

	attempts := config.ConnectAttempts
	if attempts < 1 {
		attempts = 1
	}

	var db *gorm.DB
	for attempt := 1; attempt <= attempts; attempt++ {
		db, err = gorm.Open(dialector, &gorm.Config{
			Logger:  gormlogger.Default.LogMode(gormlogger.Silent),
			NowFunc: func() time.Time { return time.Now().UTC() },
		})
		if err == nil {
			err = pingGorm(ctx, db, config)
			if err == nil {
				return db, nil
			}
		}

		logger.Warn("database not ready",
			zap.String("database.driver", config.Driver),
			zap.Int("attempt", attempt),
			zap.Int("attempts", attempts),
			zap.Error(err),
		)
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(config.ConnectRetryDelay):
		}
	}
	return nil, fmt.Errorf("could not connect to database after %d attempts: %w", attempts, err)
}

func pingGorm(ctx context.Context, db *gorm.DB, config *DatabaseConfig) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	if config.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	}
	return sqlDB.PingContext(ctx)
}

// MigrateBookSchema creates or updates the books table.
func MigrateBookSchema(db *gorm.DB) error {
	return db.AutoMigrate(&BookEntity{})
}

// CloseGormClient releases the underlying database connections.
func CloseGormClient(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// normalize puts every time value read from the database back in UTC.
func normalize(b BookEntity) BookEntity {
	b.PublishedDate = b.PublishedDate.UTC()
	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()
	return b
}

// Add inserts a new book record.
func (gs *gormBookStorage) Add(ctx context.Context, book BookEntity) error {
	if err := gs.db.WithContext(ctx).Create(&book).Error; err != nil {
		return fmt.Errorf("gorm: insert book %s: %w", book.UID, err)
	}
	return nil
}

// GetOne retrieves a book record based on its uid.
func (gs *gormBookStorage) GetOne(ctx context.Context, uid uuid.UUID) (BookEntity, error) {
	var book BookEntity
	err := gs.db.WithContext(ctx).First(&book, "uid = ?", uid).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return BookEntity{}, ErrBookNotFound
	}
	if err != nil {
		return BookEntity{}, fmt.Errorf("gorm: get book %s: %w", uid, err)
	}
	return normalize(book), nil
}

// Update saves all fields of an existing book record.
func (gs *gormBookStorage) Update(ctx context.Context, book BookEntity) error {
	result := gs.db.WithContext(ctx).Model(&BookEntity{}).Where("uid = ?", book.UID).Updates(map[string]any{
		"title":      book.Title,
		"author":     book.Author,
		"publisher":  book.Publisher,
		"page_count": book.PageCount,
		"language":   book.Language,
		"updated_at": book.UpdatedAt,
	})
	if result.Error != nil {
		return fmt.Errorf("gorm: update book %s: %w", book.UID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrBookNotFound
	}
	return nil
}

// patchColumns maps the fields present in req to their columns.
func patchColumns(req UpdateRequest) map[string]any {
	columns := map[string]any{}
	if v, ok := req.Title.Get(); ok {
		columns["title"] = v
	}
	if v, ok := req.Author.Get(); ok {
		columns["author"] = v
	}
	if v, ok := req.Publisher.Get(); ok {
		columns["publisher"] = v
	}
	if v, ok := req.PageCount.Get(); ok {
		columns["page_count"] = v
	}
	if v, ok := req.Language.Get(); ok {
		columns["language"] = v
	}
	return columns
}

// Patch locks the book row then writes only the columns named by req
// along with updated_at. Columns left out by req are never rewritten.
func (gs *gormBookStorage) Patch(ctx context.Context, uid uuid.UUID, req UpdateRequest, now time.Time) (BookEntity, bool, error) {
	var book BookEntity
	changed := false
	err := gs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&book, "uid = ?", uid).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrBookNotFound
		}
		if err != nil {
			return err
		}
		if !book.Apply(req, now) {
			return nil
		}

		columns := patchColumns(req)
		columns["updated_at"] = book.UpdatedAt
		if err = tx.Model(&BookEntity{}).Where("uid = ?", uid).Updates(columns).Error; err != nil {
			return err
		}
		changed = true
		return nil
	})
	if errors.Is(err, ErrBookNotFound) {
		return BookEntity{}, false, err
	}
	if err != nil {
		return BookEntity{}, false, fmt.Errorf("gorm: patch book %s: %w", uid, err)
	}
	return normalize(book), changed, nil
}

// Delete removes a book record based on its uid.
func (gs *gormBookStorage) Delete(ctx context.Context, uid uuid.UUID) error {
	result := gs.db.WithContext(ctx).Delete(&BookEntity{}, "uid = ?", uid)
	if result.Error != nil {
		return fmt.Errorf("gorm: delete book %s: %w", uid, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrBookNotFound
	}
	return nil
}

// GetAll retrieves all book records ordered by creation time.
func (gs *gormBookStorage) GetAll(ctx context.Context) ([]BookEntity, error) {
	books := []BookEntity{}
	if err := gs.db.WithContext(ctx).Order("created_at ASC").Order("uid ASC").Find(&books).Error; err != nil {
		return nil, fmt.Errorf("gorm: list books: %w", err)
	}
	for i := range books {
		books[i] = normalize(books[i])
	}
	return books, nil
}
