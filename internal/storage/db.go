package storage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

const (
	modsPageSize    = 10
	entriesPageSize = 15
	upsertBatchSize = 1000
)

// Storage handles all database operations using SQLite
type Storage struct {
	DB *gorm.DB
}

// NewStorage opens the database described by databaseURL and migrates it.
// Accepted forms are a file path, "sqlite://<path>", "sqlite:<path>" and
// the in-memory variants ":memory:" / "sqlite::memory:".
func NewStorage(databaseURL string) (*Storage, error) {
	dsn, inMemory := parseDatabaseURL(databaseURL)
	if !inMemory {
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return nil, fmt.Errorf("failed to create db dir: %w", err)
		}
	}

	// Open SQLite with Glebarez (Pure Go, no CGO)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if inMemory {
		// every pooled connection would otherwise see its own empty database
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to access pool: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	} else {
		db.Exec("PRAGMA journal_mode=WAL;")
		db.Exec("PRAGMA synchronous=NORMAL;")
		db.Exec("PRAGMA cache_size=10000;")
	}
	db.Exec("PRAGMA busy_timeout=5000;")

	err = db.AutoMigrate(
		&Mod{},
		&ModProvider{},
		&TextEntry{},
		&TextTranslation{},
		&DailyStat{},
		&AppSetting{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Storage{DB: db}, nil
}

func parseDatabaseURL(raw string) (dsn string, inMemory bool) {
	dsn = strings.TrimSpace(raw)
	dsn = strings.TrimPrefix(dsn, "sqlite://")
	dsn = strings.TrimPrefix(dsn, "sqlite:")
	if dsn == "" || dsn == ":memory:" {
		return ":memory:", true
	}
	return dsn, false
}

// Close closes the database connection
func (s *Storage) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Checkpoint forces a WAL checkpoint to ensure durability
func (s *Storage) Checkpoint() error {
	return s.DB.Exec("PRAGMA wal_checkpoint(TRUNCATE);").Error
}

func totalPages(count int64, size int) int64 {
	return int64(math.Ceil(float64(count) / float64(size)))
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// ============= Mods =============

// SaveResource records a provider listing and its owning mod, creating the mod
// on first sight. Returns the mod id.
func (s *Storage) SaveResource(ctx context.Context, listing ModProvider, status ModStatus) (uint, error) {
	var modID uint
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing ModProvider
		err := tx.First(&existing, "provider_type = ? AND identifier = ?", listing.ProviderType, listing.Identifier).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			mod := Mod{Name: listing.DisplayName, Status: status}
			if err := tx.Create(&mod).Error; err != nil {
				return fmt.Errorf("create mod: %w", err)
			}
			modID = mod.ID
		case err != nil:
			return err
		default:
			modID = existing.ModID
			err := tx.Model(&Mod{}).Where("id = ?", modID).Updates(map[string]interface{}{
				"name":       listing.DisplayName,
				"status":     status,
				"updated_at": time.Now(),
			}).Error
			if err != nil {
				return fmt.Errorf("update mod: %w", err)
			}
		}

		listing.ModID = modID
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider_type"}, {Name: "identifier"}},
			DoUpdates: clause.AssignmentColumns([]string{"display_name", "description", "image_url", "page_url", "mod_id", "updated_at"}),
		}).Create(&listing).Error
	})
	return modID, err
}

// IncludedIdentifiers reports which of the given provider identifiers are
// already catalogued.
func (s *Storage) IncludedIdentifiers(ctx context.Context, provider string, identifiers []string) (map[string]bool, error) {
	included := make(map[string]bool, len(identifiers))
	if len(identifiers) == 0 {
		return included, nil
	}

	var found []string
	err := s.DB.WithContext(ctx).Model(&ModProvider{}).
		Where("provider_type = ? AND identifier IN ?", provider, identifiers).
		Pluck("identifier", &found).Error
	if err != nil {
		return nil, err
	}
	for _, id := range found {
		included[id] = true
	}
	return included, nil
}

// SearchMods returns a page of mods whose name contains query, and the page count.
func (s *Storage) SearchMods(ctx context.Context, query string, page int) ([]Mod, int64, error) {
	q := s.DB.WithContext(ctx).Model(&Mod{})
	if query != "" {
		q = q.Where("name LIKE ?", "%"+query+"%")
	}
	q = q.Session(&gorm.Session{})

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return nil, 0, err
	}

	var mods []Mod
	err := q.Order("name asc, id asc").Limit(modsPageSize).Offset(page * modsPageSize).Find(&mods).Error
	return mods, totalPages(count, modsPageSize), err
}

// ModMetadata returns a mod with its provider listings, most recently updated first.
func (s *Storage) ModMetadata(ctx context.Context, id uint) (Mod, error) {
	var mod Mod
	err := s.DB.WithContext(ctx).
		Preload("Providers", func(db *gorm.DB) *gorm.DB {
			return db.Order("updated_at desc")
		}).
		First(&mod, "id = ?", id).Error
	return mod, notFound(err)
}

// ============= Text Entries =============

// SaveTextEntries upserts entries keyed by key. On conflict the value and
// observation sets are overwritten.
func (s *Storage) SaveTextEntries(ctx context.Context, entries []TextEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "namespaces", "game_versions", "loaders", "mod_id"}),
	}).CreateInBatches(&entries, upsertBatchSize).Error
}

// ModEntries returns a page of a mod's entries ordered by key, optionally
// filtered by a substring of key or value.
func (s *Storage) ModEntries(ctx context.Context, modID uint, query string, page int) ([]TextEntry, int64, error) {
	if err := s.DB.WithContext(ctx).First(&Mod{}, "id = ?", modID).Error; err != nil {
		return nil, 0, notFound(err)
	}

	q := s.DB.WithContext(ctx).Model(&TextEntry{}).Where("mod_id = ?", modID)
	if query != "" {
		like := "%" + query + "%"
		q = q.Where("key LIKE ? OR value LIKE ?", like, like)
	}
	q = q.Session(&gorm.Session{})

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return nil, 0, err
	}

	var entries []TextEntry
	err := q.Order("key asc").Limit(entriesPageSize).Offset(page * entriesPageSize).Find(&entries).Error
	return entries, totalPages(count, entriesPageSize), err
}

// ============= Translations =============

// AddTranslation stores a translation for an existing entry.
func (s *Storage) AddTranslation(ctx context.Context, key, content string) (uint, error) {
	db := s.DB.WithContext(ctx)
	if err := db.First(&TextEntry{}, "key = ?", key).Error; err != nil {
		return 0, notFound(err)
	}

	tr := TextTranslation{Content: content, EntryKey: key, Flags: []TranslationFlag{}}
	if err := db.Create(&tr).Error; err != nil {
		return 0, err
	}
	return tr.ID, nil
}

// Translations lists the translations of an entry, newest first.
func (s *Storage) Translations(ctx context.Context, key string) ([]TextTranslation, error) {
	db := s.DB.WithContext(ctx)
	if err := db.First(&TextEntry{}, "key = ?", key).Error; err != nil {
		return nil, notFound(err)
	}

	var out []TextTranslation
	err := db.Where("entry_key = ?", key).Order("created_at desc, id desc").Find(&out).Error
	return out, err
}

// ============= Statistics (SQL Analytics) =============

// IncrementDailyBytes adds bytes to today's stats
func (s *Storage) IncrementDailyBytes(bytes int64) error {
	today := time.Now().Format("2006-01-02")
	return s.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"bytes": gorm.Expr("bytes + ?", bytes),
		}),
	}).Create(&DailyStat{Date: today, Bytes: bytes}).Error
}

// IncrementDailyArchives adds n processed archives to today's stats
func (s *Storage) IncrementDailyArchives(n int64) error {
	today := time.Now().Format("2006-01-02")
	return s.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"archives": gorm.Expr("archives + ?", n),
		}),
	}).Create(&DailyStat{Date: today, Archives: n}).Error
}

// GetTotalLifetime returns total bytes downloaded all-time using SQL SUM
func (s *Storage) GetTotalLifetime() (int64, error) {
	var total int64
	err := s.DB.Model(&DailyStat{}).Select("IFNULL(SUM(bytes), 0)").Row().Scan(&total)
	return total, err
}

// GetTotalArchives returns total archives processed all-time
func (s *Storage) GetTotalArchives() (int64, error) {
	var total int64
	err := s.DB.Model(&DailyStat{}).Select("IFNULL(SUM(archives), 0)").Row().Scan(&total)
	return total, err
}

// GetDailyHistory returns the last N days of stats
func (s *Storage) GetDailyHistory(days int) ([]DailyStat, error) {
	var stats []DailyStat
	err := s.DB.Order("date desc").Limit(days).Find(&stats).Error
	return stats, err
}

// ============= App Settings =============

// GetString retrieves a string setting by key
func (s *Storage) GetString(key string) (string, error) {
	var setting AppSetting
	err := s.DB.First(&setting, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	return setting.Value, err
}

// SetString stores a string setting
func (s *Storage) SetString(key, value string) error {
	return s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&AppSetting{Key: key, Value: value}).Error
}
