package credstore

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ecofinds/ecofinds-client/internal/models"
)

func TestTokenRoundTrip(t *testing.T) {
	s, err := OpenMemory()
	require.NoError(t, err)

	access, err := s.AccessToken()
	require.NoError(t, err)
	require.Empty(t, access, "fresh store holds no token")

	require.NoError(t, s.SetTokens("T1", "R1"))

	access, err = s.AccessToken()
	require.NoError(t, err)
	require.Equal(t, "T1", access)

	refresh, err := s.RefreshToken()
	require.NoError(t, err)
	require.Equal(t, "R1", refresh)

	// Empty refresh on SetTokens leaves the stored one in place.
	require.NoError(t, s.SetTokens("T2", ""))
	refresh, err = s.RefreshToken()
	require.NoError(t, err)
	require.Equal(t, "R1", refresh)
}

func TestRefreshTokenSealedAtRest(t *testing.T) {
	s, err := OpenMemory()
	require.NoError(t, err)
	require.NoError(t, s.SetRefreshToken("R1"))

	var e entry
	require.NoError(t, s.db.Where("key = ?", keyRefreshToken).First(&e).Error)
	require.NotContains(t, string(e.Value), "R1", "refresh token must not be stored in the clear")

	plain, err := s.seal.open(e.Value)
	require.NoError(t, err)
	require.Equal(t, "R1", string(plain))
}

func TestCachedUser(t *testing.T) {
	s, err := OpenMemory()
	require.NoError(t, err)

	u, err := s.CachedUser()
	require.NoError(t, err)
	require.Nil(t, u)

	require.NoError(t, s.SetCachedUser(&models.User{ID: 1, Username: "alice", Email: "a@b.com"}))
	u, err = s.CachedUser()
	require.NoError(t, err)
	require.Equal(t, "alice", u.Username)

	require.NoError(t, s.ClearCachedUser())
	u, err = s.CachedUser()
	require.NoError(t, err)
	require.Nil(t, u)
}

func TestClearRemovesEverything(t *testing.T) {
	s, err := OpenMemory()
	require.NoError(t, err)
	require.NoError(t, s.SetTokens("T1", "R1"))
	require.NoError(t, s.SetCachedUser(&models.User{ID: 1, Username: "alice"}))

	require.NoError(t, s.Clear())

	access, err := s.AccessToken()
	require.NoError(t, err)
	require.Empty(t, access)
	refresh, err := s.RefreshToken()
	require.NoError(t, err)
	require.Empty(t, refresh)
	u, err := s.CachedUser()
	require.NoError(t, err)
	require.Nil(t, u)
}
