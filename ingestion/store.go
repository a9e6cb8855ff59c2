package ingestion

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lifelog/core/lifelog"
)

// credentialRow is the relational form of Credentials, encrypted at rest
// with AES-256-GCM over the stored OAuth/device tokens.
type credentialRow struct {
	SourceID           string `gorm:"primaryKey"`
	AccessTokenCipher  string
	RefreshTokenCipher string
	ExpiresAt          time.Time
	AuthError          string
	UpdatedAt          time.Time
}

func (credentialRow) TableName() string { return "source_credential" }

// GormCredentialStore is the relational CredentialStore, encrypting both
// tokens with a CredentialCipher before they ever reach the database.
type GormCredentialStore struct {
	db     *gorm.DB
	cipher *CredentialCipher
}

// NewGormCredentialStore constructs a GormCredentialStore.
func NewGormCredentialStore(db *gorm.DB, cipher *CredentialCipher) *GormCredentialStore {
	return &GormCredentialStore{db: db, cipher: cipher}
}

func (s *GormCredentialStore) Load(ctx context.Context, sourceID string) (Credentials, error) {
	var row credentialRow
	err := s.db.WithContext(ctx).First(&row, "source_id = ?", sourceID).Error
	if err == gorm.ErrRecordNotFound {
		return Credentials{}, lifelog.New(lifelog.KindNotFound, "no credentials on file for "+sourceID)
	}
	if err != nil {
		return Credentials{}, lifelog.Wrap(lifelog.KindDatabase, "loading credentials", err)
	}

	access, err := s.cipher.Decrypt(row.AccessTokenCipher)
	if err != nil {
		return Credentials{}, err
	}
	creds := Credentials{AccessToken: string(access), ExpiresAt: row.ExpiresAt}
	if row.RefreshTokenCipher != "" {
		refresh, err := s.cipher.Decrypt(row.RefreshTokenCipher)
		if err != nil {
			return Credentials{}, err
		}
		creds.RefreshToken = string(refresh)
	}
	return creds, nil
}

func (s *GormCredentialStore) Save(ctx context.Context, sourceID string, creds Credentials) error {
	accessCipher, err := s.cipher.Encrypt([]byte(creds.AccessToken))
	if err != nil {
		return err
	}
	var refreshCipher string
	if creds.RefreshToken != "" {
		refreshCipher, err = s.cipher.Encrypt([]byte(creds.RefreshToken))
		if err != nil {
			return err
		}
	}

	row := credentialRow{
		SourceID:           sourceID,
		AccessTokenCipher:  accessCipher,
		RefreshTokenCipher: refreshCipher,
		ExpiresAt:          creds.ExpiresAt,
		UpdatedAt:          time.Now(),
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "source_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"access_token_cipher", "refresh_token_cipher", "expires_at", "auth_error", "updated_at",
		}),
	}).Create(&row).Error
	if err != nil {
		return lifelog.Wrap(lifelog.KindDatabase, "saving credentials", err)
	}
	return nil
}

func (s *GormCredentialStore) MarkAuthError(ctx context.Context, sourceID string, authErr error) error {
	msg := ""
	if authErr != nil {
		msg = authErr.Error()
	}
	err := s.db.WithContext(ctx).Model(&credentialRow{}).
		Where("source_id = ?", sourceID).
		Updates(map[string]any{"auth_error": msg, "updated_at": time.Now()}).Error
	if err != nil {
		return lifelog.Wrap(lifelog.KindDatabase, "marking auth error", err)
	}
	return nil
}

// cursorRow is the relational form of a (source, stream) sync cursor.
type cursorRow struct {
	SourceID  string `gorm:"primaryKey;uniqueIndex:idx_cursor_source_stream"`
	Stream    string `gorm:"primaryKey;uniqueIndex:idx_cursor_source_stream"`
	Cursor    string
	UpdatedAt time.Time
}

func (cursorRow) TableName() string { return "stream_cursor" }

// GormCursorStore is the relational CursorStore.
type GormCursorStore struct{ db *gorm.DB }

// NewGormCursorStore constructs a GormCursorStore.
func NewGormCursorStore(db *gorm.DB) *GormCursorStore {
	return &GormCursorStore{db: db}
}

func (s *GormCursorStore) Load(ctx context.Context, sourceID, stream string) (Cursor, error) {
	var row cursorRow
	err := s.db.WithContext(ctx).First(&row, "source_id = ? AND stream = ?", sourceID, stream).Error
	if err == gorm.ErrRecordNotFound {
		return "", nil // no prior cursor: the executor treats this as a from-scratch sync
	}
	if err != nil {
		return "", lifelog.Wrap(lifelog.KindDatabase, "loading cursor", err)
	}
	return Cursor(row.Cursor), nil
}

func (s *GormCursorStore) Save(ctx context.Context, sourceID, stream string, cursor Cursor) error {
	row := cursorRow{SourceID: sourceID, Stream: stream, Cursor: string(cursor), UpdatedAt: time.Now()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source_id"}, {Name: "stream"}},
		DoUpdates: clause.AssignmentColumns([]string{"cursor", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return lifelog.Wrap(lifelog.KindDatabase, "saving cursor", err)
	}
	return nil
}
