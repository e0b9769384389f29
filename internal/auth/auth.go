package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

var ErrUnauthorized = errors.New("unauthorized")

type PrincipalKind string

const (
	PrincipalUser    PrincipalKind = "user"
	PrincipalService PrincipalKind = "service"
)

// Principal is the caller resolved from a bearer token. Token keeps the raw
// bearer so it can be forwarded to background workflows.
type Principal struct {
	Kind   PrincipalKind
	UserID string
	Token  string
}

func (p *Principal) IsService() bool {
	return p != nil && p.Kind == PrincipalService
}

type Verifier interface {
	Verify(ctx context.Context, token string) (*Principal, error)
}

type ctxKeyPrincipal struct{}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, ctxKeyPrincipal{}, p)
}

func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(ctxKeyPrincipal{}).(*Principal)
	return p, ok && p != nil
}

func ParseBearer(r *http.Request) (string, bool) {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if v == "" {
		return "", false
	}
	scheme, token, ok := strings.Cut(v, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
