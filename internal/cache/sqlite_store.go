package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"github.com/holepuncher/holepuncher/internal/transport"
)

// SQLiteFileName 是 StoragePath 下 sqlite 数据库的文件名。
const SQLiteFileName = "holepuncher.db"

const sqliteSchema = `CREATE TABLE IF NOT EXISTS responses (
	store     TEXT    NOT NULL,
	key       TEXT    NOT NULL,
	stored_at INTEGER NOT NULL,
	bytes     BLOB    NOT NULL,
	PRIMARY KEY (store, key)
)`

type sqliteBackend struct {
	db *sql.DB
}

type sqliteBucket struct {
	db   *sql.DB
	name string
}

// NewSQLiteBackend 打开（或创建）dsn 指向的数据库；dsn 为 ":memory:" 时仅驻留内存。
func NewSQLiteBackend(dsn string) (Backend, error) {
	if dsn == "" {
		return nil, errors.New("sqlite dsn required")
	}
	if dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// 单连接保证 :memory: 数据库在各调用间可见，同时串行化写入。
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create sqlite schema: %w", err)
	}
	return &sqliteBackend{db: db}, nil
}

func (s *sqliteBackend) Open(ctx context.Context, name string) (Bucket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, errors.New("store name required")
	}
	return &sqliteBucket{db: s.db, name: name}, nil
}

func (s *sqliteBackend) Delete(ctx context.Context, name string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM responses WHERE store = ?", name)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *sqliteBackend) Close() error {
	return s.db.Close()
}

func (b *sqliteBucket) Match(ctx context.Context, key string) (*transport.Response, error) {
	var raw []byte
	err := b.db.QueryRowContext(ctx, "SELECT bytes FROM responses WHERE store = ? AND key = ?", b.name, key).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return decodeSnapshot(raw)
}

func (b *sqliteBucket) Put(ctx context.Context, key string, resp *transport.Response) error {
	raw, err := encodeSnapshot(resp)
	if err != nil {
		return err
	}
	_, err = b.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO responses (store, key, stored_at, bytes) VALUES (?, ?, ?, ?)",
		b.name, key, time.Now().Unix(), raw)
	return err
}
