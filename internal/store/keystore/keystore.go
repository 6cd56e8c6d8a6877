package keystore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// DefaultProvider is the single model-routing provider this service talks to.
const DefaultProvider = "openrouter"

// Credential is a stored API key, one row per provider.
type Credential struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	Provider  string    `gorm:"type:varchar(32);uniqueIndex;not null"`
	APIKey    string    `gorm:"type:text;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Credential) TableName() string { return "credentials" }

// Store persists provider credentials in a local sqlite database.
type Store struct {
	db *gorm.DB
}

// Open opens (or creates) the credential database at path.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	return NewStore(db)
}

// NewStore wraps an existing gorm DB, migrating the credential table.
func NewStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&Credential{}); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Save upserts the key for a provider.
func (s *Store) Save(ctx context.Context, provider, apiKey string) error {
	if strings.TrimSpace(apiKey) == "" {
		return errors.New("keystore: empty api key")
	}

	var c Credential
	err := s.db.WithContext(ctx).Where("provider = ?", provider).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.db.WithContext(ctx).Create(&Credential{Provider: provider, APIKey: apiKey}).Error
	}
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&c).Update("api_key", apiKey).Error
}

// Get returns the stored key for a provider, or "" when none is saved.
func (s *Store) Get(ctx context.Context, provider string) (string, error) {
	var c Credential
	err := s.db.WithContext(ctx).Where("provider = ?", provider).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return c.APIKey, nil
}

// Status reports whether a key is saved and a masked tail for display.
func (s *Store) Status(ctx context.Context, provider string) (bool, string, error) {
	key, err := s.Get(ctx, provider)
	if err != nil {
		return false, "", err
	}
	if key == "" {
		return false, "", nil
	}
	return true, Mask(key), nil
}

// Mask hides all but the last four characters of a key.
func Mask(key string) string {
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", 4) + key[len(key)-4:]
}
