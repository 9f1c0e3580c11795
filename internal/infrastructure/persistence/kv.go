package persistence

import (
	"context"
)

// KV is the durable key-value surface the credential store and the cookie
// jar are built on. Get returns apperrors.ErrKeyNotFound for a missing key.
// Delete of a missing key is not an error.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

// Namespaced prefixes every key with "<namespace>:".
type Namespaced struct {
	kv     KV
	prefix string
}

// WithNamespace wraps kv. An empty namespace returns kv unchanged.
func WithNamespace(kv KV, namespace string) KV {
	if namespace == "" {
		return kv
	}
	return &Namespaced{kv: kv, prefix: namespace + ":"}
}

func (n *Namespaced) Get(ctx context.Context, key string) (string, error) {
	return n.kv.Get(ctx, n.prefix+key)
}

func (n *Namespaced) Set(ctx context.Context, key, value string) error {
	return n.kv.Set(ctx, n.prefix+key, value)
}

func (n *Namespaced) Delete(ctx context.Context, keys ...string) error {
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = n.prefix + k
	}
	return n.kv.Delete(ctx, prefixed...)
}
