// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey string

const (
	// CustomerKey is the context key for the anonymous customer id.
	CustomerKey contextKey = "customer"

	// CustomerCookie names the cookie that identifies a customer's
	// browser, so drafts stay private to it.
	CustomerCookie = "mockup_customer"

	// customerCookieAge matches the longest a draft could matter.
	customerCookieAge = 30 * 24 * time.Hour
)

// OperatorAuth guards the operator API with a bearer token checked
// against a bcrypt hash. Tokens that verified once are remembered so
// bcrypt runs once per token, not once per request.
type OperatorAuth struct {
	hash     []byte
	open     bool
	verified sync.Map
}

// NewOperatorAuth creates the guard. An empty hash leaves the API open
// when allowOpen is set (development) and closed otherwise.
func NewOperatorAuth(hash string, allowOpen bool) *OperatorAuth {
	a := &OperatorAuth{hash: []byte(hash)}
	if hash == "" && allowOpen {
		a.open = true
		slog.Warn("operator API is unauthenticated, set OPERATOR_TOKEN_HASH to protect it")
	}
	return a
}

// check reports whether token is the operator token.
func (a *OperatorAuth) check(token string) bool {
	if token == "" || len(a.hash) == 0 {
		return false
	}
	if _, ok := a.verified.Load(token); ok {
		return true
	}
	if bcrypt.CompareHashAndPassword(a.hash, []byte(token)) != nil {
		return false
	}
	a.verified.Store(token, struct{}{})
	return true
}

// Require rejects requests without a valid "Authorization: Bearer" token
// with 401.
func (a *OperatorAuth) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.open {
			next.ServeHTTP(w, r)
			return
		}
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || !a.check(strings.TrimSpace(token)) {
			w.Header().Set("WWW-Authenticate", `Bearer realm="operator"`)
			writeError(w, http.StatusUnauthorized, "operator token required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Customer identifies the anonymous customer by cookie, issuing a new id
// when the cookie is missing or malformed. Downstream handlers read it via
// CustomerFromCtx.
func Customer(secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var id string
			if c, err := r.Cookie(CustomerCookie); err == nil {
				if parsed, err := uuid.Parse(c.Value); err == nil {
					id = parsed.String()
				}
			}
			if id == "" {
				id = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     CustomerCookie,
					Value:    id,
					Path:     "/",
					MaxAge:   int(customerCookieAge / time.Second),
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), CustomerKey, id)))
		})
	}
}

// CustomerFromCtx returns the customer id set by Customer, or "".
func CustomerFromCtx(ctx context.Context) string {
	id, _ := ctx.Value(CustomerKey).(string)
	return id
}
