package xaytheon

import (
	"net/http"
)

// AuthTransport is an http.RoundTripper that adds a fixed bearer token to
// every request. It is the static building block; for managed tokens with
// refresh, use Session.Transport.
type AuthTransport struct {
	Base  http.RoundTripper
	Token string
}

// RoundTrip implements http.RoundTripper.
func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Token != "" {
		req2 := req.Clone(req.Context())
		req2.Header.Set("Authorization", "Bearer "+t.Token)
		req = req2
	}

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}

// Transport returns an http.RoundTripper that runs the session's
// authenticated-request protocol over base: fresh token on every request,
// one refresh-and-retry on 401. Unlike Do, a second 401 is returned as the
// response itself, per RoundTripper conventions. A nil base uses
// http.DefaultTransport.
//
// The returned transport must not be used for the provider's own auth
// endpoints; the Session already talks to those directly.
func (s *Session) Transport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &sessionTransport{session: s, base: base}
}

type sessionTransport struct {
	session *Session
	base    http.RoundTripper
}

func (t *sessionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.session.Token(req.Context())
	if err != nil {
		return nil, err
	}

	resp, err := t.base.RoundTrip(t.withBearer(req, token))
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	if refreshErr := t.session.Refresh(req.Context()); refreshErr != nil {
		return resp, nil
	}
	cred := t.session.store.Current()
	if cred == nil {
		return resp, nil
	}

	resp.Body.Close()
	return t.base.RoundTrip(t.withBearer(req, cred.AccessToken))
}

func (t *sessionTransport) withBearer(req *http.Request, token string) *http.Request {
	r := req.Clone(req.Context())
	if req.GetBody != nil {
		if body, err := req.GetBody(); err == nil {
			r.Body = body
		}
	}
	r.Header.Set("Authorization", "Bearer "+token)
	return r
}
