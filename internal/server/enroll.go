package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/lmckone/dwsaver/internal/secrets"
	"github.com/lmckone/dwsaver/internal/shared"
	"github.com/lmckone/dwsaver/internal/spotify"
	"github.com/lmckone/dwsaver/internal/store"
	"github.com/lmckone/dwsaver/internal/tasks"
	"golang.org/x/oauth2"
)

// stateCookie carries the CSRF state token between /login and /callback.
const stateCookie = "spotify_auth_state"

// EnrollHandler drives account enrollment: the authorize redirect with a
// CSRF state cookie, and the callback that exchanges the code, encrypts the
// refresh token and stores the account.
type EnrollHandler struct {
	oauth       *oauth2.Config
	api         tasks.APIClient
	store       store.AccountStore
	codec       *secrets.Codec
	saver       *tasks.Saver
	logger      *log.Logger
	signupLimit int
}

// EnrollOpts contains the dependencies for an [EnrollHandler].
type EnrollOpts struct {
	OAuth *oauth2.Config
	API   tasks.APIClient
	Store store.AccountStore
	Codec *secrets.Codec
	// Saver, when set, runs an immediate first sync for newly enrolled
	// accounts.
	Saver *tasks.Saver
	Logger *log.Logger
	// SignupLimit caps enrolled accounts; 0 disables the limit.
	SignupLimit int
}

// NewEnrollHandler creates an enrollment handler.
func NewEnrollHandler(opts EnrollOpts) *EnrollHandler {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &EnrollHandler{
		oauth:       opts.OAuth,
		api:         opts.API,
		store:       opts.Store,
		codec:       opts.Codec,
		saver:       opts.Saver,
		logger:      opts.Logger,
		signupLimit: opts.SignupLimit,
	}
}

// Routes returns the paths this handler serves.
func (h *EnrollHandler) Routes() []string {
	return []string{"/", "/login", "/callback", "/signup-success", "/signup-failure"}
}

// ServeHTTP dispatches to the page handlers.
func (h *EnrollHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/":
		h.home(w, r)
	case "/login":
		h.login(w, r)
	case "/callback":
		h.callback(w, r)
	case "/signup-success":
		writePage(w, "Signed up", "Your Discover Weekly will be archived every week. You can close this window.")
	case "/signup-failure":
		writePage(w, "Signup failed", "Something went wrong on our side. Please try again.")
	default:
		http.NotFound(w, r)
	}
}

// home shows the signup page, or the limit-reached page when enrollment is
// full.
func (h *EnrollHandler) home(w http.ResponseWriter, r *http.Request) {
	if h.limitReached(r.Context()) {
		writePage(w, "Signups closed", "The signup limit has been reached. Check back later.")
		return
	}
	writePage(w, "Discover Weekly Saver", `Never lose a week of discoveries. <a href="/login">Sign up with Spotify</a>.`)
}

// login sets the state cookie and redirects to the Spotify authorize page.
func (h *EnrollHandler) login(w http.ResponseWriter, r *http.Request) {
	if h.limitReached(r.Context()) {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	state := shared.GenerateState()
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: state, Path: "/", HttpOnly: true})
	http.Redirect(w, r, h.oauth.AuthCodeURL(state), http.StatusFound)
}

// callback validates the state cookie, exchanges the authorization code and
// enrolls (or re-enrolls) the account.
func (h *EnrollHandler) callback(w http.ResponseWriter, r *http.Request) {
	if err := h.enroll(w, r); err != nil {
		h.logger.Warn("enrollment failed", "error", err)
		http.Redirect(w, r, "/signup-failure", http.StatusFound)
		return
	}
	http.Redirect(w, r, "/signup-success", http.StatusFound)
}

func (h *EnrollHandler) enroll(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	state := r.URL.Query().Get("state")
	cookie, err := r.Cookie(stateCookie)
	if err != nil || state == "" || state != cookie.Value {
		return shared.ErrInvalidState
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1})

	code := r.URL.Query().Get("code")
	if code == "" {
		return fmt.Errorf("%w: missing authorization code", shared.ErrAuthFailed)
	}

	token, err := h.api.ExchangeToken(ctx, spotify.TokenRequest{Code: code})
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}

	userID, err := h.api.CurrentUser(ctx, token.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to look up identity: %w", err)
	}

	ciphertext, nonce, err := h.codec.Encrypt(token.RefreshToken)
	if err != nil {
		// Fail closed: never store a credential that cannot be sealed.
		return fmt.Errorf("%w: %v", shared.ErrEncryptFailed, err)
	}

	// Re-enrollment updates the stored credential instead of duplicating
	// the account.
	if _, err := h.store.Get(ctx, userID); err == nil {
		h.logger.Info("account already enrolled, updating credential", "user", userID)
		return h.store.UpdateToken(ctx, userID, ciphertext, nonce)
	} else if !errors.Is(err, shared.ErrAccountNotFound) {
		return err
	}

	account := store.Account{UserID: userID, RefreshToken: ciphertext, Nonce: nonce}
	if err := h.store.Insert(ctx, account); err != nil {
		return err
	}
	h.logger.Info("account enrolled", "user", userID)

	// First sync runs right away so new users see this week's playlist
	// archived without waiting for the schedule.
	if h.saver != nil {
		h.saver.SyncAccount(ctx, account)
	}

	return nil
}

func (h *EnrollHandler) limitReached(ctx context.Context) bool {
	if h.signupLimit <= 0 {
		return false
	}

	count, err := h.store.Count(ctx)
	if err != nil {
		h.logger.Error("failed to count accounts", "error", err)
		return false
	}
	return count >= h.signupLimit
}

func writePage(w http.ResponseWriter, title, body string) {
	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
    <title>%s</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #1DB954; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>%s</h1>
        <p>%s</p>
    </div>
</body>
</html>
`, title, title, body)
}
