package blob

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// sqliteBlob はSQLiteのblobsテーブルの1行。
type sqliteBlob struct {
	bun.BaseModel `bun:"table:blobs"`

	Key       string    `bun:"blob_key,pk,notnull"`
	Data      []byte    `bun:"data,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

// SQLiteStore はbun経由でSQLiteファイルにブロブを保存するStore実装。
// 単一プロセスで外部DBを用意せずに永続化したい場合に使う。
type SQLiteStore struct {
	db *bun.DB
}

// OpenSQLite はDSNでSQLiteを開き、blobsテーブルを作成したSQLiteStoreを返す。
// DSNの例: "./assigndesk.db?mode=rwc", ":memory:"
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// SQLiteは書き込みが直列化されるため接続は1本に絞る（:memory:でもDBを共有できる）
	sqldb.SetMaxOpenConns(1)

	store := NewSQLiteStore(bun.NewDB(sqldb, sqlitedialect.New()))
	if err := store.CreateSchema(ctx); err != nil {
		sqldb.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLiteStore は既存のbun.DBからSQLiteStoreを生成する。
func NewSQLiteStore(db *bun.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// CreateSchema はblobsテーブルが無ければ作成する。
func (s *SQLiteStore) CreateSchema(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*sqliteBlob)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create blobs table: %w", err)
	}
	return nil
}

// Read はキーに対応するブロブを取得する。
func (s *SQLiteStore) Read(ctx context.Context, key string) ([]byte, error) {
	row := new(sqliteBlob)
	err := s.db.NewSelect().
		Model(row).
		Where("blob_key = ?", key).
		Scan(ctx)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read blob %q: %w", key, err)
	}
	return row.Data, nil
}

// Write はキーにブロブを書き込む。
func (s *SQLiteStore) Write(ctx context.Context, key string, data []byte, overwrite bool) error {
	row := &sqliteBlob{Key: key, Data: data, UpdatedAt: time.Now().UTC()}

	if overwrite {
		_, err := s.db.NewInsert().
			Model(row).
			On("CONFLICT (blob_key) DO UPDATE").
			Set("data = EXCLUDED.data").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to write blob %q: %w", key, err)
		}
		return nil
	}

	result, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (blob_key) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create blob %q: %w", key, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to confirm blob %q creation: %w", key, err)
	}
	if rows == 0 {
		return ErrAlreadyExists
	}
	return nil
}

// Ping はデータベースへの接続を確認する。
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close はデータベース接続を閉じる。
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
