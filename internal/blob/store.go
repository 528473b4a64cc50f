// Package blob はキー単位で不透明なバイト列を読み書きするブロブストアを提供する。
// イベントリポジトリはこのインターフェースだけに依存し、
// バックエンド（メモリ、ファイル、PostgreSQL、Redis、SQLite）は設定で切り替える。
package blob

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound は指定キーのブロブが存在しないことを示す。
var ErrNotFound = errors.New("blob not found")

// ErrAlreadyExists は上書き禁止の書き込みで既にブロブが存在したことを示す。
var ErrAlreadyExists = errors.New("blob already exists")

// Store はブロブストアのインターフェース。
type Store interface {
	// Read はキーに対応するブロブを返す。存在しない場合はErrNotFoundを返す。
	Read(ctx context.Context, key string) ([]byte, error)

	// Write はキーにブロブを書き込む。
	// overwriteがfalseで既に存在する場合はErrAlreadyExistsを返す。
	Write(ctx context.Context, key string, data []byte, overwrite bool) error
}

// MemoryStore はプロセス内メモリに保持するStore実装。
// テストとデモ用で、再起動すると内容は失われる。
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryStore は空のMemoryStoreを生成する。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

// Read はキーに対応するブロブのコピーを返す。
func (s *MemoryStore) Read(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.blobs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

// Write はキーにブロブのコピーを保存する。
func (s *MemoryStore) Write(ctx context.Context, key string, data []byte, overwrite bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.blobs[key]; exists && !overwrite {
		return ErrAlreadyExists
	}
	s.blobs[key] = append([]byte(nil), data...)
	return nil
}
