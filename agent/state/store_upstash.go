package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const upstashMaxReplyBytes = 2 << 20

type UpstashRedisConfig struct {
	URL     string        `envconfig:"URL" split_words:"true" required:"true"`
	Token   string        `envconfig:"TOKEN" split_words:"true" required:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
}

// UpstashRedisStore keeps sessions in Upstash Redis through its REST endpoint,
// one JSON-encoded command per request.
type UpstashRedisStore struct {
	endpoint string
	token    string
	client   *http.Client
	opts     storeOptions
}

var _ Store = (*UpstashRedisStore)(nil)

func NewUpstashRedisStore(cfg UpstashRedisConfig, opts ...StoreOption) (*UpstashRedisStore, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	token := strings.TrimSpace(cfg.Token)
	switch {
	case endpoint == "":
		return nil, errors.New("upstash redis url is required")
	case token == "":
		return nil, errors.New("upstash redis token is required")
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("invalid upstash redis url: %w", err)
	}

	o, err := applyStoreOptions(opts)
	if err != nil {
		return nil, err
	}
	client := o.httpClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	return &UpstashRedisStore{endpoint: endpoint, token: token, client: client, opts: o}, nil
}

func (s *UpstashRedisStore) Load(ctx context.Context, callerID string) (*Session, error) {
	key, err := buildKey(s.opts.keyPrefix, callerID)
	if err != nil {
		return nil, err
	}

	result, err := s.do(ctx, "GET", key)
	if err != nil {
		return nil, err
	}
	// GET answers with a JSON string holding our encoded session, or null.
	var encoded *string
	if err := json.Unmarshal(result, &encoded); err != nil {
		return nil, fmt.Errorf("upstash get %s: decode result: %w", key, err)
	}
	if encoded == nil {
		return nil, ErrStateNotFound
	}
	return decodeSession([]byte(*encoded))
}

func (s *UpstashRedisStore) Save(ctx context.Context, callerID string, st *Session) error {
	if err := prepareForSave(callerID, st); err != nil {
		return err
	}
	key, err := buildKey(s.opts.keyPrefix, callerID)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal session state: %w", err)
	}

	args := []any{"SET", key, string(payload)}
	if s.opts.ttl > 0 {
		args = append(args, "EX", ttlSeconds(s.opts.ttl))
	}
	_, err = s.do(ctx, args...)
	return err
}

func (s *UpstashRedisStore) Delete(ctx context.Context, callerID string) error {
	key, err := buildKey(s.opts.keyPrefix, callerID)
	if err != nil {
		return err
	}
	_, err = s.do(ctx, "DEL", key)
	return err
}

// do posts a single command and returns the raw "result" field.
// A Redis-level failure comes back as the server's error text.
func (s *UpstashRedisStore) do(ctx context.Context, args ...any) (json.RawMessage, error) {
	body, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encode upstash command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build upstash request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstash %v: %w", args[0], err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, upstashMaxReplyBytes))
	if err != nil {
		return nil, fmt.Errorf("read upstash reply: %w", err)
	}

	var reply struct {
		Result json.RawMessage `json:"result"`
		Error  string          `json:"error"`
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &reply); err != nil && resp.StatusCode < 300 {
			return nil, fmt.Errorf("decode upstash reply: %w", err)
		}
	}
	if reply.Error != "" {
		return nil, errors.New(reply.Error)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("upstash %v: status %d: %s", args[0], resp.StatusCode, bytes.TrimSpace(raw))
	}
	if len(reply.Result) == 0 {
		return json.RawMessage("null"), nil
	}
	return reply.Result, nil
}
