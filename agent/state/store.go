package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

var (
	ErrStateNotFound   = errors.New("session state not found")
	ErrNilSessionState = errors.New("session state is nil")
	ErrInvalidSession  = errors.New("caller id is empty")
)

const (
	defaultStoreKeyPrefix = "slotbook:session:"
	defaultStoreTTL       = 24 * time.Hour
)

// Store is the persistence contract used by the orchestrator.
type Store interface {
	Load(ctx context.Context, callerID string) (*Session, error)
	Save(ctx context.Context, callerID string, st *Session) error
	Delete(ctx context.Context, callerID string) error
}

type Backend string

const (
	BackendMemory  Backend = "memory"
	BackendRedis   Backend = "redis"
	BackendUpstash Backend = "upstash"
)

type StoreConfig struct {
	Backend   Backend       `envconfig:"BACKEND" default:"memory"`
	TTL       time.Duration `envconfig:"TTL" default:"24h"`
	KeyPrefix string        `split_words:"true" default:"slotbook:session:"`
}

// LoadOrCreate returns the caller's live session, or a fresh one when none is
// stored or the stored one is terminal.
func LoadOrCreate(ctx context.Context, store Store, callerID string, now time.Time) (*Session, error) {
	if strings.TrimSpace(callerID) == "" {
		return nil, ErrInvalidSession
	}

	st, err := store.Load(ctx, callerID)
	switch {
	case err == nil:
		if st.Terminal() {
			return NewSession(callerID, now), nil
		}
		return st, nil
	case errors.Is(err, ErrStateNotFound):
		return NewSession(callerID, now), nil
	default:
		return nil, fmt.Errorf("load session: %w", err)
	}
}

func buildKey(prefix, callerID string) (string, error) {
	if strings.TrimSpace(callerID) == "" {
		return "", ErrInvalidSession
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultStoreKeyPrefix
	}
	return prefix + callerID, nil
}

func prepareForSave(callerID string, st *Session) error {
	if st == nil {
		return ErrNilSessionState
	}
	if strings.TrimSpace(callerID) == "" {
		return ErrInvalidSession
	}
	if st.CallerID == "" {
		st.CallerID = callerID
	}
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = time.Now().UTC()
	} else {
		st.UpdatedAt = st.UpdatedAt.UTC()
	}
	return st.Validate()
}

// StoreOption customizes the remote session stores.
type StoreOption func(*storeOptions)

type storeOptions struct {
	keyPrefix  string
	ttl        time.Duration
	httpClient *http.Client
}

func WithKeyPrefix(prefix string) StoreOption {
	return func(o *storeOptions) {
		trimmed := strings.TrimSpace(prefix)
		if trimmed != "" {
			o.keyPrefix = trimmed
		}
	}
}

func WithTTL(ttl time.Duration) StoreOption {
	return func(o *storeOptions) {
		o.ttl = ttl
	}
}

// WithHTTPClient only affects UpstashRedisStore.
func WithHTTPClient(client *http.Client) StoreOption {
	return func(o *storeOptions) {
		if client != nil {
			o.httpClient = client
		}
	}
}

func applyStoreOptions(opts []StoreOption) (storeOptions, error) {
	o := storeOptions{
		keyPrefix: defaultStoreKeyPrefix,
		ttl:       defaultStoreTTL,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.ttl < 0 {
		return o, errors.New("ttl must be >= 0")
	}
	return o, nil
}

func decodeSession(payload []byte) (*Session, error) {
	var st Session
	if err := json.Unmarshal(payload, &st); err != nil {
		return nil, fmt.Errorf("unmarshal session state: %w", err)
	}
	if err := st.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session state loaded from store: %w", err)
	}
	return &st, nil
}

// ttlSeconds rounds up so a sub-second TTL never becomes "no expiry".
func ttlSeconds(ttl time.Duration) int64 {
	seconds := int64((ttl + time.Second - 1) / time.Second)
	return max(seconds, 1)
}
