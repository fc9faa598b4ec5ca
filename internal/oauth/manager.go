package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/Video-Publishing-CreatorHub/Upload-Service/internal/apperrors"
	"github.com/Video-Publishing-CreatorHub/Upload-Service/internal/models"
	"github.com/Video-Publishing-CreatorHub/Upload-Service/internal/storage"
)

// Scopes requested during the authorization flow.
var Scopes = []string{
	"https://www.googleapis.com/auth/youtube.upload",
	"https://www.googleapis.com/auth/youtube.readonly",
}

const (
	googleAuthURL     = "https://accounts.google.com/o/oauth2/auth"
	googleTokenURL    = "https://oauth2.googleapis.com/token"
	googleRevokeURL   = "https://oauth2.googleapis.com/revoke"
	googleChannelsURL = "https://www.googleapis.com/youtube/v3/channels"

	// pendingAuthTTL bounds how long an initiated flow may sit unclaimed.
	pendingAuthTTL = 10 * time.Minute
)

type pendingAuth struct {
	OwnerID   string
	ChannelID string
	ExpiresAt time.Time
}

// Manager owns every channel's token pair. It is the sole mutator of
// credentials; refreshes for one channel are coalesced so concurrent
// callers share a single token-endpoint round trip.
type Manager struct {
	store       storage.Store
	cfg         *oauth2.Config
	margin      time.Duration
	revokeURL   string
	channelsURL string
	httpClient  *http.Client
	group       singleflight.Group

	mu      sync.Mutex
	pending map[string]pendingAuth

	now func() time.Time
}

// NewManager builds a manager against Google's OAuth endpoints.
func NewManager(store storage.Store, clientID, clientSecret, redirectURL string, margin time.Duration) *Manager {
	cfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  googleAuthURL,
			TokenURL: googleTokenURL,
		},
	}
	return NewManagerWithConfig(store, cfg, margin)
}

// NewManagerWithConfig accepts a pre-built oauth2.Config so tests can point
// the manager at a fake token endpoint.
func NewManagerWithConfig(store storage.Store, cfg *oauth2.Config, margin time.Duration) *Manager {
	return &Manager{
		store:       store,
		cfg:         cfg,
		margin:      margin,
		revokeURL:   googleRevokeURL,
		channelsURL: googleChannelsURL,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		pending:     make(map[string]pendingAuth),
		now:         time.Now,
	}
}

// BeginAuth starts an authorization flow for a channel and returns the URL
// the user must visit plus the state token tying the callback back to it.
func (m *Manager) BeginAuth(ownerID, channelID string) (authURL, state string) {
	state = uuid.New().String()

	m.mu.Lock()
	m.pending[state] = pendingAuth{
		OwnerID:   ownerID,
		ChannelID: channelID,
		ExpiresAt: m.now().Add(pendingAuthTTL),
	}
	m.mu.Unlock()

	authURL = m.cfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
	return authURL, state
}

// CompleteAuth exchanges the callback code and stores the credential.
func (m *Manager) CompleteAuth(ctx context.Context, state, code string) (models.ChannelCredential, error) {
	m.mu.Lock()
	pend, ok := m.pending[state]
	if ok {
		delete(m.pending, state)
	}
	for s, p := range m.pending {
		if m.now().After(p.ExpiresAt) {
			delete(m.pending, s)
		}
	}
	m.mu.Unlock()

	if !ok || m.now().After(pend.ExpiresAt) {
		return models.ChannelCredential{}, fmt.Errorf("%w: unknown or expired state token", apperrors.ErrForbidden)
	}

	tok, err := m.cfg.Exchange(ctx, code)
	if err != nil {
		return models.ChannelCredential{}, fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	now := m.now()
	cred := models.ChannelCredential{
		ChannelID:            pend.ChannelID,
		OwnerID:              pend.OwnerID,
		Scopes:               m.cfg.Scopes,
		AccessToken:          tok.AccessToken,
		RefreshToken:         tok.RefreshToken,
		AccessTokenExpiresAt: tok.Expiry,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	// Best effort: the credential works without a display title.
	if title, titleErr := m.fetchChannelTitle(ctx, tok.AccessToken); titleErr != nil {
		log.Printf("Failed to fetch channel title for %s: %v", pend.ChannelID, titleErr)
	} else {
		cred.ChannelTitle = title
	}

	// Google omits the refresh token on re-consent; keep the one we have.
	if existing, found := m.store.GetCredential(pend.ChannelID); found {
		if cred.RefreshToken == "" {
			cred.RefreshToken = existing.RefreshToken
		}
		if cred.ChannelTitle == "" {
			cred.ChannelTitle = existing.ChannelTitle
		}
		cred.CreatedAt = existing.CreatedAt
	}

	if err := m.store.SaveCredential(cred); err != nil {
		return models.ChannelCredential{}, fmt.Errorf("failed to save credential: %w", err)
	}
	return cred, nil
}

// fetchChannelTitle asks the Data API for the authorized channel's snippet.
func (m *Manager) fetchChannelTitle(ctx context.Context, accessToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.channelsURL+"?part=snippet&mine=true", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("channel lookup returned %s", resp.Status)
	}

	var payload struct {
		Items []struct {
			Snippet struct {
				Title string `json:"title"`
			} `json:"snippet"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to decode channel listing: %w", err)
	}
	if len(payload.Items) == 0 {
		return "", errors.New("the account has no channel")
	}
	return payload.Items[0].Snippet.Title, nil
}

// Credential exposes the stored record for ownership checks at the API layer.
func (m *Manager) Credential(channelID string) (models.ChannelCredential, bool) {
	return m.store.GetCredential(channelID)
}

// ValidToken returns an access token guaranteed to outlive the safety
// margin, refreshing synchronously when the stored one is too close to
// expiry.
func (m *Manager) ValidToken(ctx context.Context, channelID string) (string, error) {
	cred, ok := m.store.GetCredential(channelID)
	if !ok {
		return "", apperrors.ErrNoSuchAccount
	}
	if cred.NeedsReauth {
		return "", apperrors.ErrReauthRequired
	}
	if m.now().Add(m.margin).Before(cred.AccessTokenExpiresAt) {
		return cred.AccessToken, nil
	}
	return m.refresh(ctx, channelID, false)
}

// ForceRefresh discards the current access token regardless of its expiry.
// The engine calls this once when the remote rejects a token mid-transfer.
func (m *Manager) ForceRefresh(ctx context.Context, channelID string) (string, error) {
	return m.refresh(ctx, channelID, true)
}

// refresh performs the refresh grant. Calls for the same channel are
// coalesced: at most one request is in flight, all callers get its result.
func (m *Manager) refresh(ctx context.Context, channelID string, force bool) (string, error) {
	token, err, _ := m.group.Do(channelID, func() (interface{}, error) {
		cred, ok := m.store.GetCredential(channelID)
		if !ok {
			return "", apperrors.ErrNoSuchAccount
		}
		if cred.NeedsReauth {
			return "", apperrors.ErrReauthRequired
		}
		// A caller that queued behind an in-flight refresh may find the
		// token already renewed.
		if !force && m.now().Add(m.margin).Before(cred.AccessTokenExpiresAt) {
			return cred.AccessToken, nil
		}
		if cred.RefreshToken == "" {
			cred.NeedsReauth = true
			if saveErr := m.store.SaveCredential(cred); saveErr != nil {
				log.Printf("Failed to mark channel %s for re-auth: %v", channelID, saveErr)
			}
			return "", apperrors.ErrReauthRequired
		}

		src := m.cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cred.RefreshToken})
		tok, err := src.Token()
		if err != nil {
			var retrieveErr *oauth2.RetrieveError
			if errors.As(err, &retrieveErr) && retrieveErr.Response != nil &&
				retrieveErr.Response.StatusCode >= 400 && retrieveErr.Response.StatusCode < 500 {
				// Revoked or invalid refresh token: only a fresh
				// authorization flow recovers this channel.
				cred.NeedsReauth = true
				if saveErr := m.store.SaveCredential(cred); saveErr != nil {
					log.Printf("Failed to mark channel %s for re-auth: %v", channelID, saveErr)
				}
				return "", apperrors.ErrReauthRequired
			}
			return "", apperrors.Transientf("token refresh failed: %v", err)
		}

		cred.AccessToken = tok.AccessToken
		cred.AccessTokenExpiresAt = tok.Expiry
		if tok.RefreshToken != "" {
			cred.RefreshToken = tok.RefreshToken
		}
		cred.UpdatedAt = m.now()
		if err := m.store.SaveCredential(cred); err != nil {
			return "", fmt.Errorf("failed to persist refreshed token: %w", err)
		}
		return cred.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return token.(string), nil
}

// Disconnect revokes the credential remotely (best effort) and deletes it.
// Safe to call while an upload is in flight: the transfer then fails with
// an auth error instead of crashing.
func (m *Manager) Disconnect(ctx context.Context, channelID string) error {
	cred, ok := m.store.GetCredential(channelID)
	if !ok {
		return apperrors.ErrNoSuchAccount
	}

	form := url.Values{"token": {cred.RefreshToken}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.revokeURL,
		strings.NewReader(form.Encode()))
	if err == nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		resp, revokeErr := m.httpClient.Do(req)
		if revokeErr != nil {
			log.Printf("Failed to revoke token for channel %s: %v", channelID, revokeErr)
		} else {
			resp.Body.Close()
		}
	}

	m.store.DeleteCredential(channelID)
	return nil
}
