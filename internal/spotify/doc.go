// Package spotify implements a minimal client for the Spotify Web API.
//
// The client covers the five operations the saver needs: token exchange
// (authorization code or refresh token), identity lookup, paginated playlist
// and track listing, playlist creation, and batch track insertion.
//
// # Pagination
//
// Both listing operations walk offset/limit pages and stop when a page comes
// back short or a hard cap of 20 pages is reached. Hitting the cap is not an
// error: the result is returned with Truncated set so callers can tell a
// complete listing from a capped one. Any transport or HTTP failure on any
// page aborts the whole listing; nothing partial is returned.
//
// # Errors
//
// Upstream failures surface as [*APIError] carrying the error code from the
// response body verbatim. The token endpoint's "invalid_grant" code is the
// revocation signal the reconciler keys on; see [ErrCodeInvalidGrant].
package spotify
