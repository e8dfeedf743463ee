package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	"codestash/internal/apperrors"
)

const signInWithIdpPath = "/v1/accounts:signInWithIdp"

// GoogleExchanger implements Exchanger against Google's userinfo endpoint
// (via OIDC discovery) and a Firebase-style identity backend.
type GoogleExchanger struct {
	issuer       string
	identityBase string
	apiKey       string
	httpClient   *http.Client
	nowTime      func() time.Time

	providerOnce sync.Once
	provider     *oidc.Provider
	providerErr  error
}

// GoogleExchangerOption defines a function type to modify the GoogleExchanger instance.
type GoogleExchangerOption func(*GoogleExchanger)

// WithHTTPClient sets the HTTP client used for both network calls.
func WithHTTPClient(client *http.Client) GoogleExchangerOption {
	return func(g *GoogleExchanger) {
		g.httpClient = client
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) GoogleExchangerOption {
	return func(g *GoogleExchanger) {
		g.nowTime = nowFunc
	}
}

// NewGoogleExchanger creates an exchanger for the given OIDC issuer and
// identity backend base URL.
func NewGoogleExchanger(issuer, identityBaseURL, apiKey string, options ...GoogleExchangerOption) *GoogleExchanger {
	g := &GoogleExchanger{
		issuer:       issuer,
		identityBase: identityBaseURL,
		apiKey:       apiKey,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		nowTime:      time.Now,
	}
	for _, opt := range options {
		opt(g)
	}
	return g
}

var _ Exchanger = (*GoogleExchanger)(nil)

// Exchange fetches the user's profile with the bearer token, then signs the
// same token into the identity backend. Both calls must succeed.
func (g *GoogleExchanger) Exchange(ctx context.Context, accessToken string) (*Profile, *Credential, error) {
	profile, err := g.fetchUserInfo(ctx, accessToken)
	if err != nil {
		return nil, nil, errors.Wrapf(apperrors.ErrExchangeFailed, "[Exchange] userinfo: %v", err)
	}

	credential, err := g.signInWithIdp(ctx, accessToken)
	if err != nil {
		return nil, nil, errors.Wrapf(apperrors.ErrExchangeFailed, "[Exchange] backend sign-in: %v", err)
	}
	if credential.Email == "" {
		credential.Email = profile.Email
	}

	return profile, credential, nil
}

func (g *GoogleExchanger) fetchUserInfo(ctx context.Context, accessToken string) (*Profile, error) {
	ctx = oidc.ClientContext(ctx, g.httpClient)
	g.providerOnce.Do(func() {
		g.provider, g.providerErr = oidc.NewProvider(ctx, g.issuer)
	})
	if g.providerErr != nil {
		return nil, errors.Wrap(g.providerErr, "[fetchUserInfo] provider discovery")
	}

	tokenSource := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	})
	userInfo, err := g.provider.UserInfo(ctx, tokenSource)
	if err != nil {
		return nil, errors.Wrap(err, "[fetchUserInfo] userinfo endpoint")
	}

	var claims struct {
		Name string `json:"name"`
	}
	_ = userInfo.Claims(&claims)

	return &Profile{
		Subject: userInfo.Subject,
		Email:   userInfo.Email,
		Name:    claims.Name,
	}, nil
}

type signInRequest struct {
	PostBody            string `json:"postBody"`
	RequestURI          string `json:"requestUri"`
	ReturnSecureToken   bool   `json:"returnSecureToken"`
	ReturnIdpCredential bool   `json:"returnIdpCredential"`
}

type signInResponse struct {
	IDToken   string `json:"idToken"`
	LocalID   string `json:"localId"`
	Email     string `json:"email"`
	ExpiresIn string `json:"expiresIn"`
}

func (g *GoogleExchanger) signInWithIdp(ctx context.Context, accessToken string) (*Credential, error) {
	body, err := json.Marshal(signInRequest{
		PostBody:            "access_token=" + accessToken + "&providerId=google.com",
		RequestURI:          "http://localhost",
		ReturnSecureToken:   true,
		ReturnIdpCredential: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "[signInWithIdp] marshal request")
	}

	endpoint := g.identityBase + signInWithIdpPath + "?key=" + g.apiKey
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "[signInWithIdp] build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "[signInWithIdp] request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, errors.Errorf("[signInWithIdp] backend returned %d: %s", resp.StatusCode, string(payload))
	}

	var signIn signInResponse
	if err := json.NewDecoder(resp.Body).Decode(&signIn); err != nil {
		return nil, errors.Wrap(err, "[signInWithIdp] decode response")
	}
	if signIn.IDToken == "" || signIn.LocalID == "" {
		return nil, errors.New("[signInWithIdp] incomplete credential in response")
	}

	return &Credential{
		UserID:    signIn.LocalID,
		Email:     signIn.Email,
		IDToken:   signIn.IDToken,
		ExpiresAt: g.credentialExpiry(signIn),
	}, nil
}

// credentialExpiry prefers the exp claim of the backend ID token and falls
// back to the advertised expiresIn seconds.
func (g *GoogleExchanger) credentialExpiry(signIn signInResponse) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(signIn.IDToken, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}
	if seconds, err := strconv.Atoi(signIn.ExpiresIn); err == nil && seconds > 0 {
		return g.nowTime().Add(time.Duration(seconds) * time.Second)
	}
	return g.nowTime().Add(time.Hour)
}

// String identifies the exchanger in diagnostics without leaking the API key.
func (g *GoogleExchanger) String() string {
	return fmt.Sprintf("GoogleExchanger(issuer=%s)", g.issuer)
}
