package bitbucket

import (
	"os"
	"strings"
)

type AuthTokenSource string

const (
	AuthTokenSourceExplicit AuthTokenSource = "explicit"
	AuthTokenSourceEnv      AuthTokenSource = "env:BITBUCKET_TOKEN"
	AuthTokenSourceNone     AuthTokenSource = "none"
)

// ResolveAuthToken resolves a Bitbucket access token.
//
// Precedence:
//  1. provided (if non-empty)
//  2. BITBUCKET_TOKEN env var
//
// It never prints the token.
func ResolveAuthToken(provided string) (token string, source AuthTokenSource) {
	if tok := strings.TrimSpace(provided); tok != "" {
		return tok, AuthTokenSourceExplicit
	}
	if env := strings.TrimSpace(os.Getenv("BITBUCKET_TOKEN")); env != "" {
		return env, AuthTokenSourceEnv
	}
	return "", AuthTokenSourceNone
}
