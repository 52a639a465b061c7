package handlers

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/control-eventos/apiserver/config"
	"github.com/control-eventos/apiserver/internal/logger"
	"github.com/control-eventos/apiserver/internal/services"
	"github.com/control-eventos/apiserver/types"
	"github.com/go-chi/chi/v5"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	oauthStateCookie   = "eventos_oauth_state"
	oauthStateTTL      = 10 * time.Minute
	googleUserInfoURL  = "https://openidconnect.googleapis.com/v1/userinfo"
	userInfoBodyLimit  = 64 << 10
	oauthCallbackRoute = "/google/callback"
)

// GoogleHandler implements the Google sign-in redirect flow.
type GoogleHandler struct {
	oauth       *oauth2.Config
	userService *services.UserService
	secret      []byte
	tokenTTL    time.Duration
	userInfoURL string
	log         *logger.Logger
}

// NewGoogleHandler constructs a GoogleHandler from config.
func NewGoogleHandler(cfg config.GoogleOAuthConfig, userService *services.UserService, jwtSecret string, tokenTTL time.Duration, log *logger.Logger) *GoogleHandler {
	if tokenTTL <= 0 {
		tokenTTL = defaultTokenTTL
	}
	return &GoogleHandler{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		userService: userService,
		secret:      []byte(jwtSecret),
		tokenTTL:    tokenTTL,
		userInfoURL: googleUserInfoURL,
		log:         log,
	}
}

// GoogleRouter registers the Google sign-in routes.
func GoogleRouter(r chi.Router, handler *GoogleHandler) {
	r.Get("/google/login", handler.Login)
	r.Get(oauthCallbackRoute, handler.Callback)
}

// Login redirects the browser to Google's consent screen.
func (h *GoogleHandler) Login(w http.ResponseWriter, r *http.Request) {
	state, err := newOAuthState()
	if err != nil {
		writeInternalError(w, r, h.log, "failed to start sign-in", err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/auth",
		MaxAge:   int(oauthStateTTL.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline), http.StatusFound)
}

// Callback exchanges the authorization code, finds or creates the account
// and returns a JWT.
func (h *GoogleHandler) Callback(w http.ResponseWriter, r *http.Request) {
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		writeError(w, http.StatusUnauthorized, "sign-in cancelled")
		return
	}

	cookie, err := r.Cookie(oauthStateCookie)
	state := r.URL.Query().Get("state")
	if err != nil || state == "" || subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(state)) != 1 {
		writeError(w, http.StatusBadRequest, "invalid oauth state")
		return
	}
	http.SetCookie(w, &http.Cookie{Name: oauthStateCookie, Value: "", Path: "/auth", MaxAge: -1})

	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "missing authorization code")
		return
	}

	token, err := h.oauth.Exchange(r.Context(), code)
	if err != nil {
		if h.log != nil {
			h.log.Warn(r.Context(), "oauth code exchange failed", err)
		}
		writeError(w, http.StatusUnauthorized, "sign-in failed")
		return
	}

	info, err := h.fetchUserInfo(r, token)
	if err != nil {
		writeInternalError(w, r, h.log, "failed to load google profile", err)
		return
	}
	if info.Email == "" || !info.EmailVerified {
		writeError(w, http.StatusForbidden, "google account email is not verified")
		return
	}

	user, err := h.userService.FindOrCreateExternal(r.Context(), info.Email, info.Name, types.AuthProviderGoogle)
	if err != nil {
		writeInternalError(w, r, h.log, "failed to sign in", err)
		return
	}

	jwtToken, err := issueToken(user.ID, h.secret, h.tokenTTL)
	if err != nil {
		writeInternalError(w, r, h.log, "failed to create token", err)
		return
	}
	writeJSON(w, http.StatusOK, AuthResponse{Token: jwtToken, User: user})
}

type googleUserInfo struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

func (h *GoogleHandler) fetchUserInfo(r *http.Request, token *oauth2.Token) (googleUserInfo, error) {
	client := h.oauth.Client(r.Context(), token)
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, h.userInfoURL, nil)
	if err != nil {
		return googleUserInfo{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return googleUserInfo{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return googleUserInfo{}, fmt.Errorf("userinfo status %d", resp.StatusCode)
	}
	var info googleUserInfo
	if err := json.NewDecoder(io.LimitReader(resp.Body, userInfoBodyLimit)).Decode(&info); err != nil {
		return googleUserInfo{}, fmt.Errorf("decode userinfo: %w", err)
	}
	return info, nil
}

func newOAuthState() (string, error) {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf[:]), nil
}
