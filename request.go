package xaytheon

import (
	"context"
	"net/http"
)

// Do executes an arbitrary API request under the authenticated-request
// protocol:
//
//  1. If the credential is expiring soon, refresh first; if that fails the
//     call fails with SESSION_EXPIRED without touching the network.
//  2. Attach "Authorization: Bearer <token>" and dispatch via the Gateway.
//  3. On a 401 response, attempt exactly one recovery: refresh and
//     re-dispatch once. A failed refresh, or a second 401, surfaces
//     UNAUTHORIZED. Never more than one retry.
//  4. Every other status is returned unmodified for endpoint-specific
//     interpretation.
//
// Requests built with NewJSONRequest (or anything with GetBody set) are
// re-dispatched with a fresh body on retry.
func (s *Session) Do(ctx context.Context, req *http.Request) (*Response, error) {
	token, err := s.Token(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := s.dispatch(ctx, req, token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	if err := s.Refresh(ctx); err != nil {
		return nil, WrapAuthError(ErrCodeUnauthorized, "not authorized", err)
	}
	cred := s.store.Current()
	if cred == nil {
		return nil, NewAuthError(ErrCodeUnauthorized, "not authorized")
	}

	resp, err = s.dispatch(ctx, req, cred.AccessToken)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, NewAuthError(ErrCodeUnauthorized, "not authorized")
	}
	return resp, nil
}

// dispatch sends a bearer-authenticated clone of req, leaving the original
// request replayable.
func (s *Session) dispatch(ctx context.Context, req *http.Request, token string) (*Response, error) {
	r := req.Clone(ctx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		r.Body = body
	}
	r.Header.Set("Authorization", "Bearer "+token)
	return s.gateway.Call(ctx, r)
}
