package xaytheon

import (
	"context"

	"golang.org/x/oauth2"
)

// TokenSource adapts the session to oauth2.TokenSource, so the managed
// credential plugs into anything that speaks the oauth2 ecosystem
// (oauth2.NewClient, gRPC per-RPC credentials, etc.). Each Token call goes
// through the session's refresh logic, so the source never hands out a
// token the session considers stale.
func (s *Session) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &sessionTokenSource{ctx: ctx, session: s}
}

type sessionTokenSource struct {
	ctx     context.Context
	session *Session
}

func (ts *sessionTokenSource) Token() (*oauth2.Token, error) {
	access, err := ts.session.Token(ts.ctx)
	if err != nil {
		return nil, err
	}

	tok := &oauth2.Token{AccessToken: access, TokenType: "Bearer"}
	if cred := ts.session.store.Current(); cred != nil {
		tok.Expiry = cred.ExpiresAt
	}
	return tok, nil
}
