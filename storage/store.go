// Package storage is the persistence boundary of the engine: a small
// key-value contract with session-scoped (memory, Redis) and durable (SQLite)
// implementations.
package storage

import (
	"context"
	"strings"

	apperrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

const (
	ErrCodeQuotaExceeded    = "STORAGE_QUOTA_EXCEEDED"
	ErrCodeStoreUnavailable = "STORAGE_UNAVAILABLE"
	ErrCodeInvalidKey       = "STORAGE_INVALID_KEY"
)

var (
	ErrQuotaExceeded = apperrors.New("storage quota exceeded", apperrors.CategoryRateLimit).
				WithTextCode(ErrCodeQuotaExceeded)
	ErrStoreUnavailable = apperrors.New("storage not configured", apperrors.CategoryInternal).
				WithTextCode(ErrCodeStoreUnavailable)
	ErrInvalidKey = apperrors.New("storage key required", apperrors.CategoryBadInput).
			WithTextCode(ErrCodeInvalidKey)
)

// Store reads and writes opaque values by key.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// NewSessionID mints an identifier for one editing session.
func NewSessionID() string {
	return uuid.NewString()
}

type namespaced struct {
	store  Store
	prefix string
}

// Namespaced scopes every key of store under prefix. Sessions use it to keep
// their records apart inside a shared backend.
func Namespaced(store Store, prefix string) Store {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return store
	}
	if !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}
	return &namespaced{store: store, prefix: prefix}
}

func (n *namespaced) Get(ctx context.Context, key string) ([]byte, bool, error) {
	k, err := n.key(key)
	if err != nil {
		return nil, false, err
	}
	return n.store.Get(ctx, k)
}

func (n *namespaced) Set(ctx context.Context, key string, value []byte) error {
	k, err := n.key(key)
	if err != nil {
		return err
	}
	return n.store.Set(ctx, k, value)
}

func (n *namespaced) Delete(ctx context.Context, key string) error {
	k, err := n.key(key)
	if err != nil {
		return err
	}
	return n.store.Delete(ctx, k)
}

func (n *namespaced) key(key string) (string, error) {
	if n == nil || n.store == nil {
		return "", ErrStoreUnavailable
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", ErrInvalidKey
	}
	return n.prefix + key, nil
}

func normalizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", ErrInvalidKey
	}
	return key, nil
}
