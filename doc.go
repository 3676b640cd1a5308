// Package xaytheon is a client-side session manager for the Xaytheon
// identity API. It acquires, caches, proactively renews, and invalidates a
// short-lived access token backed by a longer-lived refresh token, and
// transparently retries API calls that fail on credential expiry.
//
// # Architecture
//
// Session: the state machine owner. Orchestrates login, registration,
// logout, refresh, and restoration, and exposes the authenticated-request
// protocol (Do, Transport, TokenSource).
//
// Store: the in-memory credential, its expiry instant (with a safety skew
// subtracted), the last refresh failure, and the "auth changed" observer
// list.
//
// Gateway: outbound HTTP with a hard per-call timeout and uniform failure
// classification (TIMEOUT vs NETWORK_ERROR).
//
// TokenStorage: durable persistence of the refresh token. MemoryStorage
// keeps it in-process; stores/fs persists it to the user config directory;
// nil selects cookie mode, where the refresh credential rides on the HTTP
// client's cookie jar.
//
// # Basic Usage
//
// Create a session and restore any prior sign-in:
//
//	storage, err := fs.NewTokenStorage("", "")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	session := xaytheon.New("https://api.example.com/api/auth", storage)
//	session.Restore(ctx)
//
// Sign in and watch for auth changes:
//
//	cancel := session.OnAuthChange(func(u *xaytheon.User) {
//	    render(u) // nil means signed out
//	})
//	defer cancel()
//
//	user, err := session.Login(ctx, email, password)
//	if err != nil {
//	    show(xaytheon.MessageFor(xaytheon.CodeOf(err)))
//	}
//
// Make authenticated API calls; expiry is handled for you, including a
// single retry when the server rejects a token mid-flight:
//
//	req, _ := xaytheon.NewJSONRequest("GET", "https://api.example.com/api/projects", nil)
//	resp, err := session.Do(ctx, req)
//
// Or plug the session into the standard ecosystem:
//
//	httpClient := &http.Client{Transport: session.Transport(nil)}
//	src := session.TokenSource(ctx)
//
// All failures carry a stable ErrorCode (CodeOf) with a display message
// lookup (MessageFor), so UI code never inspects HTTP statuses.
package xaytheon
