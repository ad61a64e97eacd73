package spotify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
)

const (
	AuthURL  = "https://accounts.spotify.com/authorize"
	TokenURL = "https://accounts.spotify.com/api/token"
	BaseURL  = "https://api.spotify.com/v1"

	playlistPageSize = 50
	trackPageSize    = 100
	// maxPages bounds both pagination loops against pathological accounts.
	maxPages = 20
)

// ErrCodeInvalidGrant is the token endpoint's error code for a revoked or
// otherwise invalid refresh grant. Accounts that produce it are pruned.
const ErrCodeInvalidGrant = "invalid_grant"

// Scopes requested during enrollment.
var Scopes = []string{
	"user-read-private",
	"user-read-email",
	"playlist-read-private",
	"playlist-modify-private",
	"playlist-modify-public",
}

// APIError is a failed Spotify response. Code carries the upstream error
// string verbatim when the body had one, otherwise it is empty and Status
// alone describes the failure.
type APIError struct {
	Status int
	Code   string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("spotify API error: status %d (%s)", e.Status, e.Code)
	}
	return fmt.Sprintf("spotify API error: status %d", e.Status)
}

// Token is the result of a token exchange. RefreshToken is only present when
// the grant rotated it.
type Token struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// TokenRequest holds exactly one of an authorization code or a refresh
// token.
type TokenRequest struct {
	Code         string
	RefreshToken string
}

// PlaylistIndex maps playlist names to IDs for one account. Later pages win
// on name collision; remote ordering is not stable, so the tie-break is
// undefined. Truncated is set when the page cap stopped the listing early.
type PlaylistIndex struct {
	ByName    map[string]string
	Truncated bool
}

// TrackList is the ordered track URIs of one playlist, duplicates preserved
// as returned by the API.
type TrackList struct {
	URIs      []string
	Truncated bool
}

// Playlist identifies a created playlist.
type Playlist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Client is a Spotify Web API client scoped to one application's
// credentials. It holds no per-account state; access tokens are passed per
// call.
type Client struct {
	clientID     string
	clientSecret string
	redirectURI  string
	market       string
	tokenURL     string
	baseURL      string
	httpClient   *http.Client
}

// ClientOpts configures a [Client]. TokenURL and BaseURL default to the
// production endpoints and exist for tests.
type ClientOpts struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Market       string
	TokenURL     string
	BaseURL      string
	HTTPClient   *http.Client
}

// NewClient creates a Client from the given application credentials.
func NewClient(opts ClientOpts) (*Client, error) {
	if opts.ClientID == "" || opts.ClientSecret == "" {
		return nil, fmt.Errorf("missing client_id or client_secret")
	}
	if opts.TokenURL == "" {
		opts.TokenURL = TokenURL
	}
	if opts.BaseURL == "" {
		opts.BaseURL = BaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Client{
		clientID:     opts.ClientID,
		clientSecret: opts.ClientSecret,
		redirectURI:  opts.RedirectURI,
		market:       opts.Market,
		tokenURL:     opts.TokenURL,
		baseURL:      opts.BaseURL,
		httpClient:   opts.HTTPClient,
	}, nil
}

// OAuthConfig returns an [oauth2.Config] for building authorization URLs
// during enrollment.
func (c *Client) OAuthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		RedirectURL:  c.redirectURI,
		Scopes:       Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  AuthURL,
			TokenURL: c.tokenURL,
		},
	}
}

// ExchangeToken POSTs client credentials plus exactly one of an
// authorization code or a refresh token to the token endpoint. On failure
// the returned [*APIError] carries the upstream error code verbatim.
func (c *Client) ExchangeToken(ctx context.Context, req TokenRequest) (*Token, error) {
	if (req.Code == "") == (req.RefreshToken == "") {
		return nil, fmt.Errorf("exactly one of code or refresh token is required")
	}

	form := url.Values{}
	if req.Code != "" {
		form.Set("grant_type", "authorization_code")
		form.Set("code", req.Code)
		form.Set("redirect_uri", c.redirectURI)
	} else {
		form.Set("grant_type", "refresh_token")
		form.Set("refresh_token", req.RefreshToken)
	}
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var body struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&body)
		return nil, &APIError{Status: resp.StatusCode, Code: body.Error}
	}

	var token Token
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}

	return &token, nil
}

// doRequest performs an authenticated request against the Web API and
// decodes the JSON response into result when non-nil.
func (c *Client) doRequest(ctx context.Context, method, endpoint, accessToken string, body, result any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var envelope struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&envelope)
		return &APIError{Status: resp.StatusCode, Code: envelope.Error.Message}
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// CurrentUser returns the stable account id of the token's owner.
func (c *Client) CurrentUser(ctx context.Context, accessToken string) (string, error) {
	var user struct {
		ID string `json:"id"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/me", accessToken, nil, &user); err != nil {
		return "", err
	}
	return user.ID, nil
}

// UserPlaylists lists all playlists owned by or followed by userID,
// aggregated into a name→id index. See the package docs for pagination
// semantics.
func (c *Client) UserPlaylists(ctx context.Context, accessToken, userID string) (*PlaylistIndex, error) {
	index := &PlaylistIndex{ByName: map[string]string{}}

	offset := 0
	for page := 0; page < maxPages; page++ {
		endpoint := fmt.Sprintf("/users/%s/playlists?offset=%d&limit=%d", url.PathEscape(userID), offset, playlistPageSize)

		var response struct {
			Items []Playlist `json:"items"`
		}
		if err := c.doRequest(ctx, http.MethodGet, endpoint, accessToken, nil, &response); err != nil {
			return nil, err
		}

		for _, item := range response.Items {
			index.ByName[item.Name] = item.ID
		}

		if len(response.Items) < playlistPageSize {
			return index, nil
		}
		offset += playlistPageSize
	}

	index.Truncated = true
	return index, nil
}

// CreatePlaylist creates a playlist for userID. Not idempotent: calling
// twice creates two playlists with the same name.
func (c *Client) CreatePlaylist(ctx context.Context, accessToken, userID, name, description string, public bool) (*Playlist, error) {
	if name == "" {
		return nil, fmt.Errorf("playlist name is required")
	}

	endpoint := fmt.Sprintf("/users/%s/playlists", url.PathEscape(userID))
	body := map[string]any{
		"name":        name,
		"description": description,
		"public":      public,
	}

	var playlist Playlist
	if err := c.doRequest(ctx, http.MethodPost, endpoint, accessToken, body, &playlist); err != nil {
		return nil, err
	}

	return &playlist, nil
}

// PlaylistTracks lists the track URIs of a playlist in order, duplicates
// preserved. The configured market restricts results to tracks available
// there.
func (c *Client) PlaylistTracks(ctx context.Context, accessToken, playlistID string) (*TrackList, error) {
	list := &TrackList{}

	query := url.Values{}
	if c.market != "" {
		query.Set("market", c.market)
	}

	offset := 0
	for page := 0; page < maxPages; page++ {
		query.Set("offset", fmt.Sprintf("%d", offset))
		query.Set("limit", fmt.Sprintf("%d", trackPageSize))
		endpoint := fmt.Sprintf("/playlists/%s/tracks?%s", url.PathEscape(playlistID), query.Encode())

		var response struct {
			Items []struct {
				Track struct {
					URI string `json:"uri"`
				} `json:"track"`
			} `json:"items"`
		}
		if err := c.doRequest(ctx, http.MethodGet, endpoint, accessToken, nil, &response); err != nil {
			return nil, err
		}

		for _, item := range response.Items {
			if item.Track.URI != "" {
				list.URIs = append(list.URIs, item.Track.URI)
			}
		}

		if len(response.Items) < trackPageSize {
			return list, nil
		}
		offset += trackPageSize
	}

	list.Truncated = true
	return list, nil
}

// AddTracks appends uris to a playlist in a single call. Callers are
// responsible for staying under the API's per-call batch limit of 100.
func (c *Client) AddTracks(ctx context.Context, accessToken, playlistID string, uris []string) error {
	if len(uris) == 0 {
		return fmt.Errorf("no track URIs provided")
	}

	query := url.Values{"uris": {strings.Join(uris, ",")}}
	endpoint := fmt.Sprintf("/playlists/%s/tracks?%s", url.PathEscape(playlistID), query.Encode())

	return c.doRequest(ctx, http.MethodPost, endpoint, accessToken, nil, nil)
}
