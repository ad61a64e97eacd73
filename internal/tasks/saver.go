package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lmckone/dwsaver/internal/secrets"
	"github.com/lmckone/dwsaver/internal/shared"
	"github.com/lmckone/dwsaver/internal/spotify"
	"github.com/lmckone/dwsaver/internal/store"
)

// DefaultSourcePlaylist is the fixed name of the generated playlist Spotify
// refreshes weekly.
const DefaultSourcePlaylist = "Discover Weekly"

// addTracksBatchSize is the Web API's per-call limit for track insertion.
// The reconciler chunks the diff so one oversized week cannot fail the run.
const addTracksBatchSize = 100

// APIClient is the subset of [spotify.Client] the saver consumes.
// The abstraction exists for testing with fake remotes.
type APIClient interface {
	ExchangeToken(ctx context.Context, req spotify.TokenRequest) (*spotify.Token, error)
	CurrentUser(ctx context.Context, accessToken string) (string, error)
	UserPlaylists(ctx context.Context, accessToken, userID string) (*spotify.PlaylistIndex, error)
	CreatePlaylist(ctx context.Context, accessToken, userID, name, description string, public bool) (*spotify.Playlist, error)
	PlaylistTracks(ctx context.Context, accessToken, playlistID string) (*spotify.TrackList, error)
	AddTracks(ctx context.Context, accessToken, playlistID string, uris []string) error
}

// SyncStatus classifies the outcome of one account's reconciliation run.
type SyncStatus int

const (
	StatusSynced   SyncStatus = iota // run completed, target is a superset of source
	StatusNoSource                   // account has no source playlist, nothing to sync
	StatusRevoked                    // grant revoked, account deleted
	StatusFailed                     // transient failure, retried next scheduled run
)

func (s SyncStatus) String() string {
	switch s {
	case StatusSynced:
		return "synced"
	case StatusNoSource:
		return "no_source"
	case StatusRevoked:
		return "revoked"
	case StatusFailed:
		return "failed"
	default:
		return ""
	}
}

// SyncResult reports one account's reconciliation outcome. It is consumed
// only by logs and tests; failures never propagate to the batch.
type SyncResult struct {
	UserID      string
	Status      SyncStatus
	TracksAdded int
	// Truncated is set when any listing hit the page cap, meaning the diff
	// may have been computed against an incomplete snapshot.
	Truncated bool
	Err       error
}

// Saver reconciles accounts against the Spotify API.
type Saver struct {
	client     APIClient
	store      store.AccountStore
	codec      *secrets.Codec
	logger     *log.Logger
	sourceName string
	now        func() time.Time
}

// SaverOpts contains the dependencies for a [Saver].
type SaverOpts struct {
	Client     APIClient
	Store      store.AccountStore
	Codec      *secrets.Codec
	Logger     *log.Logger
	SourceName string
	Now        func() time.Time
}

// NewSaver creates a Saver. SourceName defaults to [DefaultSourcePlaylist]
// and Now to [time.Now].
func NewSaver(opts SaverOpts) *Saver {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.SourceName == "" {
		opts.SourceName = DefaultSourcePlaylist
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Saver{
		client:     opts.Client,
		store:      opts.Store,
		codec:      opts.Codec,
		logger:     opts.Logger,
		sourceName: opts.SourceName,
		now:        opts.Now,
	}
}

// TargetName returns the year-scoped archive playlist name for t.
func (s *Saver) TargetName(t time.Time) string {
	return fmt.Sprintf("Discover %d", t.Year())
}

// SyncAccount runs one reconciliation for account. See the package docs for
// the step sequence. The returned result is informational; the caller must
// not treat a failed status as a batch error.
func (s *Saver) SyncAccount(ctx context.Context, account store.Account) SyncResult {
	result := SyncResult{UserID: account.UserID}
	logger := shared.WithLogger(s.logger, "user", account.UserID)

	refreshToken, err := s.codec.Decrypt(account.RefreshToken, account.Nonce)
	if err != nil {
		logger.Error("failed to decrypt stored credential", "error", err)
		return s.fail(result, err)
	}

	token, err := s.client.ExchangeToken(ctx, spotify.TokenRequest{RefreshToken: refreshToken})
	if err != nil {
		var apiErr *spotify.APIError
		if errors.As(err, &apiErr) && apiErr.Code == spotify.ErrCodeInvalidGrant {
			logger.Info("grant revoked, removing account")
			if err := s.store.Delete(ctx, account.UserID); err != nil {
				logger.Error("failed to delete revoked account", "error", err)
			}
			result.Status = StatusRevoked
			return result
		}
		logger.Warn("token exchange failed", "error", err)
		return s.fail(result, err)
	}

	// Persist a rotated refresh token before any later step can fail, so
	// the new credential is never lost. An encryption failure here blocks
	// the update and ends the run.
	if token.RefreshToken != "" {
		ciphertext, nonce, err := s.codec.Encrypt(token.RefreshToken)
		if err != nil {
			logger.Error("failed to encrypt rotated credential", "error", err)
			return s.fail(result, fmt.Errorf("%w: %v", shared.ErrEncryptFailed, err))
		}
		if err := s.store.UpdateToken(ctx, account.UserID, ciphertext, nonce); err != nil {
			logger.Error("failed to persist rotated credential", "error", err)
			return s.fail(result, err)
		}
		logger.Debug("rotated refresh token persisted")
	}

	index, err := s.client.UserPlaylists(ctx, token.AccessToken, account.UserID)
	if err != nil {
		logger.Warn("playlist listing failed", "error", err)
		return s.fail(result, err)
	}
	if index.Truncated {
		logger.Warn("playlist listing hit page cap, results truncated")
		result.Truncated = true
	}

	sourceID, ok := index.ByName[s.sourceName]
	if !ok {
		logger.Info("source playlist not found, nothing to sync", "playlist", s.sourceName)
		result.Status = StatusNoSource
		return result
	}

	targetName := s.TargetName(s.now())
	targetID, ok := index.ByName[targetName]
	if !ok {
		playlist, err := s.client.CreatePlaylist(ctx, token.AccessToken, account.UserID, targetName, "", false)
		if err != nil {
			logger.Warn("failed to create target playlist", "playlist", targetName, "error", err)
			return s.fail(result, err)
		}
		targetID = playlist.ID
		logger.Info("created target playlist", "playlist", targetName, "id", targetID)
	}

	source, err := s.client.PlaylistTracks(ctx, token.AccessToken, sourceID)
	if err != nil {
		logger.Warn("failed to list source tracks", "error", err)
		return s.fail(result, err)
	}

	target, err := s.client.PlaylistTracks(ctx, token.AccessToken, targetID)
	if err != nil {
		logger.Warn("failed to list target tracks", "error", err)
		return s.fail(result, err)
	}
	if source.Truncated || target.Truncated {
		logger.Warn("track listing hit page cap, diff may be incomplete")
		result.Truncated = true
	}

	toAdd := diffTracks(source.URIs, target.URIs)
	if len(toAdd) == 0 {
		logger.Debug("target already up to date")
		result.Status = StatusSynced
		return result
	}

	for start := 0; start < len(toAdd); start += addTracksBatchSize {
		end := min(start+addTracksBatchSize, len(toAdd))
		if err := s.client.AddTracks(ctx, token.AccessToken, targetID, toAdd[start:end]); err != nil {
			logger.Warn("failed to append tracks", "error", err)
			result.TracksAdded = start
			return s.fail(result, err)
		}
	}

	logger.Info("sync complete", "added", len(toAdd), "target", targetName)
	result.TracksAdded = len(toAdd)
	result.Status = StatusSynced
	return result
}

func (s *Saver) fail(result SyncResult, err error) SyncResult {
	result.Status = StatusFailed
	result.Err = err
	return result
}

// diffTracks returns the source URIs absent from target, source order
// preserved, duplicates collapsed.
func diffTracks(source, target []string) []string {
	have := make(map[string]struct{}, len(target))
	for _, uri := range target {
		have[uri] = struct{}{}
	}

	var missing []string
	for _, uri := range source {
		if _, ok := have[uri]; ok {
			continue
		}
		have[uri] = struct{}{}
		missing = append(missing, uri)
	}

	return missing
}
