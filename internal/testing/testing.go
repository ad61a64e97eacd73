// package testing contains shared test doubles
package testing

import (
	"context"
	"sync"

	"github.com/lmckone/dwsaver/internal/shared"
	"github.com/lmckone/dwsaver/internal/spotify"
	"github.com/lmckone/dwsaver/internal/store"
)

// MockClient is a test double for the Spotify API client. Each func field
// overrides one operation; unset operations return zero values.
type MockClient struct {
	ExchangeTokenFunc  func(ctx context.Context, req spotify.TokenRequest) (*spotify.Token, error)
	CurrentUserFunc    func(ctx context.Context, accessToken string) (string, error)
	UserPlaylistsFunc  func(ctx context.Context, accessToken, userID string) (*spotify.PlaylistIndex, error)
	CreatePlaylistFunc func(ctx context.Context, accessToken, userID, name, description string, public bool) (*spotify.Playlist, error)
	PlaylistTracksFunc func(ctx context.Context, accessToken, playlistID string) (*spotify.TrackList, error)
	AddTracksFunc      func(ctx context.Context, accessToken, playlistID string, uris []string) error
}

func (m *MockClient) ExchangeToken(ctx context.Context, req spotify.TokenRequest) (*spotify.Token, error) {
	if m.ExchangeTokenFunc != nil {
		return m.ExchangeTokenFunc(ctx, req)
	}
	return &spotify.Token{AccessToken: "mock_access"}, nil
}

func (m *MockClient) CurrentUser(ctx context.Context, accessToken string) (string, error) {
	if m.CurrentUserFunc != nil {
		return m.CurrentUserFunc(ctx, accessToken)
	}
	return "mock_user", nil
}

func (m *MockClient) UserPlaylists(ctx context.Context, accessToken, userID string) (*spotify.PlaylistIndex, error) {
	if m.UserPlaylistsFunc != nil {
		return m.UserPlaylistsFunc(ctx, accessToken, userID)
	}
	return &spotify.PlaylistIndex{ByName: map[string]string{}}, nil
}

func (m *MockClient) CreatePlaylist(ctx context.Context, accessToken, userID, name, description string, public bool) (*spotify.Playlist, error) {
	if m.CreatePlaylistFunc != nil {
		return m.CreatePlaylistFunc(ctx, accessToken, userID, name, description, public)
	}
	return &spotify.Playlist{ID: "mock_playlist", Name: name}, nil
}

func (m *MockClient) PlaylistTracks(ctx context.Context, accessToken, playlistID string) (*spotify.TrackList, error) {
	if m.PlaylistTracksFunc != nil {
		return m.PlaylistTracksFunc(ctx, accessToken, playlistID)
	}
	return &spotify.TrackList{}, nil
}

func (m *MockClient) AddTracks(ctx context.Context, accessToken, playlistID string, uris []string) error {
	if m.AddTracksFunc != nil {
		return m.AddTracksFunc(ctx, accessToken, playlistID, uris)
	}
	return nil
}

// MockStore is an in-memory [store.AccountStore], safe for concurrent use.
type MockStore struct {
	mu       sync.Mutex
	accounts map[string]store.Account
}

func NewMockStore(accounts ...store.Account) *MockStore {
	m := &MockStore{accounts: map[string]store.Account{}}
	for _, account := range accounts {
		m.accounts[account.UserID] = account
	}
	return m
}

func (m *MockStore) List(ctx context.Context) ([]store.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var accounts []store.Account
	for _, account := range m.accounts {
		accounts = append(accounts, account)
	}
	return accounts, nil
}

func (m *MockStore) Get(ctx context.Context, userID string) (*store.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[userID]
	if !ok {
		return nil, shared.ErrAccountNotFound
	}
	return &account, nil
}

func (m *MockStore) Insert(ctx context.Context, account store.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[account.UserID] = account
	return nil
}

func (m *MockStore) UpdateToken(ctx context.Context, userID, refreshToken, nonce string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[userID]
	if !ok {
		return shared.ErrAccountNotFound
	}
	account.RefreshToken = refreshToken
	account.Nonce = nonce
	m.accounts[userID] = account
	return nil
}

func (m *MockStore) Delete(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[userID]; !ok {
		return shared.ErrAccountNotFound
	}
	delete(m.accounts, userID)
	return nil
}

func (m *MockStore) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.accounts), nil
}

// Has reports whether userID is present, for assertions.
func (m *MockStore) Has(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.accounts[userID]
	return ok
}
