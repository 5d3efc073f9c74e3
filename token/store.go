package token

import (
	"time"

	"github.com/pkg/errors"

	"github.com/sessionkit/sessionkit/storage"
)

// Storage keys shared by every instance of the application.
const (
	AccessTokenKey  = "access_token"
	RefreshTokenKey = "refresh_token"
)

// Store owns the session token pair. Every read goes back to the
// underlying shared store so that updates made by sibling instances are
// observed; no caller should hold a token across ticks.
type Store struct {
	kv storage.KeyValueStore
}

func NewStore(kv storage.KeyValueStore) *Store {
	return &Store{kv: kv}
}

// AccessToken returns the current access token, or "" when absent.
func (s *Store) AccessToken() (string, error) {
	value, _, err := s.kv.Get(AccessTokenKey)
	if err != nil {
		return "", errors.Wrap(err, "[Store.AccessToken] read")
	}
	return value, nil
}

// RefreshToken returns the current refresh token, or "" when absent.
func (s *Store) RefreshToken() (string, error) {
	value, _, err := s.kv.Get(RefreshTokenKey)
	if err != nil {
		return "", errors.Wrap(err, "[Store.RefreshToken] read")
	}
	return value, nil
}

// SetAccessToken overwrites the access token in place, the steady-state
// write performed after every successful refresh.
func (s *Store) SetAccessToken(accessToken string) error {
	return errors.Wrap(s.kv.Set(AccessTokenKey, accessToken), "[Store.SetAccessToken] write")
}

// SetPair writes both tokens, the login-time bootstrap. The two writes are
// not transactional; readers between them see a stale but coherent pair.
func (s *Store) SetPair(accessToken, refreshToken string) error {
	if err := s.kv.Set(AccessTokenKey, accessToken); err != nil {
		return errors.Wrap(err, "[Store.SetPair] write access token")
	}
	if err := s.kv.Set(RefreshTokenKey, refreshToken); err != nil {
		return errors.Wrap(err, "[Store.SetPair] write refresh token")
	}
	return nil
}

// Clear deletes both tokens, on logout or unrecoverable refresh failure.
func (s *Store) Clear() error {
	if err := s.kv.Remove(AccessTokenKey); err != nil {
		return errors.Wrap(err, "[Store.Clear] remove access token")
	}
	if err := s.kv.Remove(RefreshTokenKey); err != nil {
		return errors.Wrap(err, "[Store.Clear] remove refresh token")
	}
	return nil
}

// Expiry reads the current access token and derives its expiry state.
func (s *Store) Expiry(now time.Time) (Expiry, error) {
	accessToken, err := s.AccessToken()
	if err != nil {
		return Expiry{}, err
	}
	return ExpiryOf(accessToken, now), nil
}

// Watch exposes the underlying store's change notifications so the
// coordinator can recompute on writes made by sibling instances.
func (s *Store) Watch() (<-chan storage.Change, func()) {
	return s.kv.Watch()
}
