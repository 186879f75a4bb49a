package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	domainErrors "github.com/todoapp/auth-service/internal/domain/errors"
)

// OAuth flow modes carried inside the state parameter.
const (
	StateModeLogin = "login"
	StateModeLink  = "link"
)

// OAuthState is the payload round-tripped through the provider redirect in
// the state query parameter. It replaces server-side session affinity: the
// callback reconstructs everything it needs from this signed blob.
type OAuthState struct {
	RedirectURL   string
	FrontendTag   string
	Mode          string
	CurrentUserID *uuid.UUID
}

type oauthStateClaims struct {
	jwt.RegisteredClaims
	Redirect      string `json:"redirect,omitempty"`
	Frontend      string `json:"frontend,omitempty"`
	Mode          string `json:"mode"`
	CurrentUserID string `json:"current_user_id,omitempty"`
}

// OAuthStateCodec signs and verifies OAuth state tokens with a dedicated
// secret, distinct from the access and refresh secrets.
type OAuthStateCodec struct {
	secret []byte
	ttl    time.Duration
}

func NewOAuthStateCodec(secret string, ttl time.Duration) (*OAuthStateCodec, error) {
	if secret == "" {
		return nil, errors.New("oauth state secret must be configured")
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &OAuthStateCodec{secret: []byte(secret), ttl: ttl}, nil
}

// Encode produces the opaque state string for the given payload.
func (c *OAuthStateCodec) Encode(state OAuthState) (string, error) {
	if state.Mode != StateModeLogin && state.Mode != StateModeLink {
		return "", fmt.Errorf("%w: unknown oauth state mode %q", domainErrors.ErrInvalidInput, state.Mode)
	}
	if state.Mode == StateModeLink && state.CurrentUserID == nil {
		return "", fmt.Errorf("%w: link mode requires a current user id", domainErrors.ErrInvalidInput)
	}

	now := time.Now()
	claims := &oauthStateClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
			ID:        uuid.NewString(),
		},
		Redirect: state.RedirectURL,
		Frontend: state.FrontendTag,
		Mode:     state.Mode,
	}
	if state.CurrentUserID != nil {
		claims.CurrentUserID = state.CurrentUserID.String()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign oauth state: %w", err)
	}
	return signed, nil
}

// Decode verifies the state string and returns its payload. Signature
// mismatch and expiry both surface as ErrInvalidState so callers treat them
// uniformly.
func (c *OAuthStateCodec) Decode(opaque string) (*OAuthState, error) {
	claims := &oauthStateClaims{}
	token, err := jwt.ParseWithClaims(opaque, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", domainErrors.ErrInvalidState, err)
	}

	if claims.Mode != StateModeLogin && claims.Mode != StateModeLink {
		return nil, fmt.Errorf("%w: unknown mode %q", domainErrors.ErrInvalidState, claims.Mode)
	}

	state := &OAuthState{
		RedirectURL: claims.Redirect,
		FrontendTag: claims.Frontend,
		Mode:        claims.Mode,
	}
	if claims.CurrentUserID != "" {
		id, err := uuid.Parse(claims.CurrentUserID)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed user id", domainErrors.ErrInvalidState)
		}
		state.CurrentUserID = &id
	}
	if state.Mode == StateModeLink && state.CurrentUserID == nil {
		return nil, fmt.Errorf("%w: link state missing user id", domainErrors.ErrInvalidState)
	}
	return state, nil
}
