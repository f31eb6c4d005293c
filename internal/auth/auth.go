// Package auth checks the static bearer tokens configured for the API.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

var (
	ErrNoToken      = errors.New("no authorization header")
	ErrInvalidToken = errors.New("invalid token")
)

type contextKey struct{}

type credential struct {
	subject string
	secret  []byte
}

// Verifier accepts a fixed set of tokens. Tokens are configured as
// "subject:secret"; a bare secret authenticates as "publisher".
type Verifier struct {
	credentials []credential
}

func NewVerifier(tokens []string) *Verifier {
	v := &Verifier{}
	for _, token := range tokens {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		subject, secret, ok := strings.Cut(token, ":")
		if !ok {
			subject, secret = "publisher", token
		}
		secret = strings.TrimSpace(secret)
		if secret == "" {
			continue
		}
		v.credentials = append(v.credentials, credential{subject: subject, secret: []byte(secret)})
	}
	return v
}

// Enabled reports whether any token is configured.
func (v *Verifier) Enabled() bool {
	return len(v.credentials) > 0
}

// Verify returns the subject of an "Authorization" header value.
func (v *Verifier) Verify(header string) (string, error) {
	if header == "" {
		return "", ErrNoToken
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" || token == "Bearer" {
		return "", ErrNoToken
	}
	for _, c := range v.credentials {
		if subtle.ConstantTimeCompare([]byte(token), c.secret) == 1 {
			return c.subject, nil
		}
	}
	return "", ErrInvalidToken
}

func (v *Verifier) VerifyToken(r *http.Request) (string, error) {
	return v.Verify(r.Header.Get("Authorization"))
}

// Middleware rejects unauthenticated requests when tokens are configured.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !v.Enabled() {
			next.ServeHTTP(w, r)
			return
		}
		subject, err := v.VerifyToken(r)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSubject(r.Context(), subject)))
	})
}

// UnaryServerInterceptor is Middleware for gRPC, reading the "authorization"
// metadata key.
func (v *Verifier) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !v.Enabled() {
			return handler(ctx, req)
		}
		var header string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if values := md.Get("authorization"); len(values) > 0 {
				header = values[0]
			}
		}
		subject, err := v.Verify(header)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}
		return handler(WithSubject(ctx, subject), req)
	}
}

func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, contextKey{}, subject)
}

// SubjectFromContext returns the authenticated subject, if any.
func SubjectFromContext(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(contextKey{}).(string)
	return subject, ok
}
