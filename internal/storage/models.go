package storage

import "time"

// ModStatus describes how complete a mod's catalog data is.
type ModStatus string

const (
	ModStatusNormal         ModStatus = "normal"
	ModStatusMissingEntries ModStatus = "missing_entries"
)

// Mod is a catalogued mod. One mod may be published on several providers.
type Mod struct {
	ID        uint          `gorm:"primaryKey" json:"id"`
	Status    ModStatus     `gorm:"type:text;not null;default:normal" json:"status"`
	Name      string        `gorm:"index" json:"name"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	Providers []ModProvider `gorm:"foreignKey:ModID" json:"providers,omitempty"`
}

// ModProvider links a mod to its listing on one provider.
type ModProvider struct {
	ProviderType string    `gorm:"primaryKey" json:"provider"`
	Identifier   string    `gorm:"primaryKey" json:"identifier"`
	DisplayName  string    `json:"display_name"`
	Description  string    `json:"description"`
	ImageURL     string    `json:"image_url"`
	PageURL      string    `json:"page_url"`
	ModID        uint      `gorm:"index" json:"mod_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TextEntry is a canonical localization key with the contexts it was observed in.
type TextEntry struct {
	Key          string   `gorm:"primaryKey" json:"key"`
	Value        string   `json:"value"`
	Namespaces   []string `gorm:"serializer:json" json:"namespaces"`
	GameVersions []string `gorm:"serializer:json" json:"game_versions"`
	Loaders      []string `gorm:"serializer:json" json:"loaders"`
	ModID        uint     `gorm:"index" json:"mod_id"`
}

// TranslationFlag marks the review state of a translation.
type TranslationFlag string

const (
	FlagApproved TranslationFlag = "approved"
	FlagMigrated TranslationFlag = "migrated"
)

// TextTranslation is a user-submitted translation of a TextEntry.
type TextTranslation struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	Content   string            `json:"content"`
	Flags     []TranslationFlag `gorm:"serializer:json" json:"flags"`
	EntryKey  string            `gorm:"index" json:"entry_key"`
	CreatedAt time.Time         `json:"created_at"`
}

// DailyStat tracks ingestion volume per day
type DailyStat struct {
	Date     string `gorm:"primaryKey" json:"date"` // YYYY-MM-DD
	Bytes    int64  `json:"bytes"`
	Archives int64  `json:"archives"`
}

// AppSetting stores runtime settings
type AppSetting struct {
	Key   string `gorm:"primaryKey" json:"key"`
	Value string `json:"value"`
}

func (Mod) TableName() string             { return "minecraft_mods" }
func (ModProvider) TableName() string     { return "mod_providers" }
func (TextEntry) TableName() string       { return "text_entries" }
func (TextTranslation) TableName() string { return "text_translations" }
func (DailyStat) TableName() string       { return "daily_stats" }
func (AppSetting) TableName() string      { return "app_settings" }
