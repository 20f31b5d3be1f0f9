package session

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/meowecho-tech/vote/internal/models"
	"github.com/meowecho-tech/vote/internal/security"
)

// Session owns the current token pair. Reads and replacements are single
// pointer swaps, so overlapping calls never see a half-written pair. The
// role it reports is advisory; the server decides on every call.
type Session struct {
	store   Store
	current atomic.Pointer[Tokens]
	log     zerolog.Logger
}

func New(store Store, log zerolog.Logger) *Session {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Session{store: store, log: log}
}

// Restore loads a previously persisted pair from the store.
func (s *Session) Restore(ctx context.Context) error {
	tokens, err := s.store.Load(ctx)
	if err != nil {
		return err
	}
	if tokens.Empty() {
		s.current.Store(nil)
		return nil
	}
	s.current.Store(&tokens)
	return nil
}

func (s *Session) Persist(ctx context.Context, access, refresh string) error {
	tokens := Tokens{AccessToken: access, RefreshToken: refresh}
	s.current.Store(&tokens)
	return s.store.Save(ctx, tokens)
}

func (s *Session) CurrentAccess() string {
	if t := s.current.Load(); t != nil {
		return t.AccessToken
	}
	return ""
}

func (s *Session) CurrentRefresh() string {
	if t := s.current.Load(); t != nil {
		return t.RefreshToken
	}
	return ""
}

func (s *Session) Clear(ctx context.Context) error {
	s.current.Store(nil)
	return s.store.Delete(ctx)
}

func (s *Session) Authenticated() bool {
	return s.CurrentAccess() != ""
}

func (s *Session) Role() (models.Role, bool) {
	return security.RoleOf(s.CurrentAccess())
}

// rotate replaces the pair only if it still carries the refresh token that
// was exchanged.
func (s *Session) rotate(ctx context.Context, used string, next Tokens) bool {
	for {
		cur := s.current.Load()
		if cur == nil || cur.RefreshToken != used {
			return false
		}
		if s.current.CompareAndSwap(cur, &next) {
			if err := s.store.Save(ctx, next); err != nil {
				s.log.Warn().Err(err).Msg("persist rotated session failed")
			}
			return true
		}
	}
}

// clearIf drops the pair only if it still carries the given refresh token.
// The stored pair is deleted only while it carries that token too; when
// another process has already rotated it, the newer pair is taken over.
func (s *Session) clearIf(ctx context.Context, used string) {
	for {
		cur := s.current.Load()
		if cur == nil || cur.RefreshToken != used {
			return
		}
		if s.current.CompareAndSwap(cur, nil) {
			break
		}
	}
	deleted, err := s.store.DeleteIf(ctx, used)
	if err != nil {
		s.log.Warn().Err(err).Msg("delete session failed")
		return
	}
	if !deleted {
		s.reload(ctx)
	}
}

// adopt takes over the stored pair when it no longer carries the access
// token that was rejected. It reports whether the session now holds a
// different access token.
func (s *Session) adopt(ctx context.Context, staleAccess string) bool {
	stored, err := s.store.Load(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("load stored session failed")
		return false
	}
	if stored.Empty() || stored.AccessToken == "" || stored.AccessToken == staleAccess {
		return false
	}
	for {
		cur := s.current.Load()
		if cur != nil && cur.AccessToken != staleAccess {
			return true
		}
		if s.current.CompareAndSwap(cur, &stored) {
			return true
		}
	}
}

// reload fills an empty session from the store, picking up a login made by
// another process.
func (s *Session) reload(ctx context.Context) {
	if s.current.Load() != nil {
		return
	}
	stored, err := s.store.Load(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("load stored session failed")
		return
	}
	if stored.Empty() {
		return
	}
	s.current.CompareAndSwap(nil, &stored)
}
