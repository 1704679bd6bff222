package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"stockbridge/internal/infrastructure/secret"
)

const (
	settingsTable = "sys_settings"

	// EndpointSetting is the row holding the sealed CRM endpoint.
	EndpointSetting = "crm.endpoint"
)

const settingsSchema = `
CREATE TABLE IF NOT EXISTS sys_settings (
    name        TEXT PRIMARY KEY,
    secret_key  BYTEA NOT NULL,
    iv          BYTEA NOT NULL,
    ciphertext  BYTEA NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// DB is the subset of *pgxpool.Pool the settings store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type sealedRow struct {
	SecretKey  []byte `db:"secret_key"`
	IV         []byte `db:"iv"`
	Ciphertext []byte `db:"ciphertext"`
}

// SettingsStore persists the sealed endpoint in sys_settings so that every
// replica opens the same value. It implements secret.Store.
type SettingsStore struct {
	db      DB
	name    string
	builder squirrel.StatementBuilderType
	now     func() time.Time
}

var _ secret.Store = (*SettingsStore)(nil)

// NewSettingsStore creates a store for the endpoint setting.
func NewSettingsStore(db DB) *SettingsStore {
	return &SettingsStore{
		db:      db,
		name:    EndpointSetting,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		now:     time.Now,
	}
}

// EnsureSchema creates the settings table if it does not exist.
func (s *SettingsStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, settingsSchema); err != nil {
		return fmt.Errorf("create %s: %w", settingsTable, err)
	}
	return nil
}

func (s *SettingsStore) upsertQuery(v secret.Sealed) (string, []any, error) {
	return s.builder.
		Insert(settingsTable).
		Columns("name", "secret_key", "iv", "ciphertext", "updated_at").
		Values(s.name, v.Key, v.IV, v.Ciphertext, s.now().UTC()).
		Suffix("ON CONFLICT (name) DO UPDATE SET " +
			"secret_key = EXCLUDED.secret_key, iv = EXCLUDED.iv, " +
			"ciphertext = EXCLUDED.ciphertext, updated_at = EXCLUDED.updated_at").
		ToSql()
}

func (s *SettingsStore) loadQuery() (string, []any, error) {
	return s.builder.
		Select("secret_key", "iv", "ciphertext").
		From(settingsTable).
		Where(squirrel.Eq{"name": s.name}).
		ToSql()
}

// Save upserts the sealed value.
func (s *SettingsStore) Save(ctx context.Context, v secret.Sealed) error {
	sql, args, err := s.upsertQuery(v)
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if _, err := s.db.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("save %s: %w", s.name, err)
	}
	return nil
}

// Load reads the sealed value; secret.ErrNotFound when the row is absent.
func (s *SettingsStore) Load(ctx context.Context) (secret.Sealed, error) {
	sql, args, err := s.loadQuery()
	if err != nil {
		return secret.Sealed{}, fmt.Errorf("build query: %w", err)
	}

	var row sealedRow
	if err := pgxscan.Get(ctx, s.db, &row, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return secret.Sealed{}, secret.ErrNotFound
		}
		return secret.Sealed{}, fmt.Errorf("load %s: %w", s.name, err)
	}
	return secret.Sealed{Key: row.SecretKey, IV: row.IV, Ciphertext: row.Ciphertext}, nil
}
