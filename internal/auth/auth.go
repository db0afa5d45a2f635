// Package auth turns a bearer token into a user id.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/idtoken"
)

const (
	ModeStatic = "static"
	ModeGoogle = "google"
)

var ErrUnauthenticated = errors.New("unauthenticated")

// Verifier resolves a bearer token to the caller's user id. It returns an
// error wrapping ErrUnauthenticated when the token is not acceptable.
type Verifier interface {
	Verify(ctx context.Context, token string) (userID string, err error)
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, bool) {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// StaticVerifier accepts a fixed set of tokens, each bound to one user.
type StaticVerifier struct {
	tokens map[string]string
}

// ParseStaticTokens reads "token:uid,token2:uid2". Whitespace around entries
// is ignored.
func ParseStaticTokens(list string) (*StaticVerifier, error) {
	v := &StaticVerifier{tokens: make(map[string]string)}
	for _, entry := range strings.Split(list, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		token, uid, ok := strings.Cut(entry, ":")
		token, uid = strings.TrimSpace(token), strings.TrimSpace(uid)
		if !ok || token == "" || uid == "" {
			return nil, fmt.Errorf("invalid auth token entry %q: want token:uid", entry)
		}
		if _, dup := v.tokens[token]; dup {
			return nil, fmt.Errorf("duplicate auth token for uid %q", uid)
		}
		v.tokens[token] = uid
	}
	if len(v.tokens) == 0 {
		return nil, errors.New("no auth tokens configured")
	}
	return v, nil
}

func (v *StaticVerifier) Verify(_ context.Context, token string) (string, error) {
	for known, uid := range v.tokens {
		if subtle.ConstantTimeCompare([]byte(known), []byte(token)) == 1 {
			return uid, nil
		}
	}
	return "", ErrUnauthenticated
}

// GoogleVerifier accepts Google-signed ID tokens minted for audience. The
// user id is the token subject.
type GoogleVerifier struct {
	audience string
	validate func(ctx context.Context, token, audience string) (*idtoken.Payload, error)
}

func NewGoogleVerifier(audience string) (*GoogleVerifier, error) {
	if strings.TrimSpace(audience) == "" {
		return nil, errors.New("google auth requires an audience")
	}
	return &GoogleVerifier{audience: audience, validate: idtoken.Validate}, nil
}

func (v *GoogleVerifier) Verify(ctx context.Context, token string) (string, error) {
	payload, err := v.validate(ctx, token, v.audience)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if payload.Subject == "" {
		return "", fmt.Errorf("%w: token has no subject", ErrUnauthenticated)
	}
	return payload.Subject, nil
}

// New builds the verifier for mode.
func New(mode, staticTokens, audience string) (Verifier, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", ModeStatic:
		return ParseStaticTokens(staticTokens)
	case ModeGoogle:
		return NewGoogleVerifier(audience)
	default:
		return nil, fmt.Errorf("unknown auth mode %q", mode)
	}
}
