package state

import (
	"context"
	"strings"

	"github.com/puzpuzpuz/xsync/v3"
)

// MemoryStore keeps sessions in process. Entries are never expired.
type MemoryStore struct {
	sessions *xsync.MapOf[string, *Session]
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: xsync.NewMapOf[string, *Session]()}
}

func (s *MemoryStore) Load(ctx context.Context, callerID string) (*Session, error) {
	if strings.TrimSpace(callerID) == "" {
		return nil, ErrInvalidSession
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	st, ok := s.sessions.Load(callerID)
	if !ok {
		return nil, ErrStateNotFound
	}
	return st.Clone(), nil
}

func (s *MemoryStore) Save(ctx context.Context, callerID string, st *Session) error {
	if err := prepareForSave(callerID, st); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.sessions.Store(callerID, st.Clone())
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, callerID string) error {
	if strings.TrimSpace(callerID) == "" {
		return ErrInvalidSession
	}
	s.sessions.Delete(callerID)
	return nil
}

func (s *MemoryStore) Len() int {
	return s.sessions.Size()
}
