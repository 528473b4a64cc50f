package blob

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore はPostgreSQLのblobsテーブルを使うStore実装。
// テーブルはdatabase.RunMigrationsで作成する。
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore はPostgresStoreを生成する。
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Read はキーに対応するブロブを取得する。
func (s *PostgresStore) Read(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM blobs WHERE key = $1`,
		key,
	).Scan(&data)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read blob %q: %w", key, err)
	}
	return data, nil
}

// Write はキーにブロブを書き込む。
// overwriteの場合はUPSERT、そうでなければON CONFLICT DO NOTHINGで挿入の有無を判定する。
func (s *PostgresStore) Write(ctx context.Context, key string, data []byte, overwrite bool) error {
	if overwrite {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO blobs (key, data, updated_at)
			 VALUES ($1, $2, NOW())
			 ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`,
			key, data,
		)
		if err != nil {
			return fmt.Errorf("failed to write blob %q: %w", key, err)
		}
		return nil
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO blobs (key, data, updated_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (key) DO NOTHING`,
		key, data,
	)
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

// Ping はデータベース接続を確認する。
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
