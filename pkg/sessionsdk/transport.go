package sessionsdk

import "net/http"

// BearerTransport authorises outgoing API calls with the session's access
// token. It refuses to send anything for a terminated session.
type BearerTransport struct {
	Session *Session

	// Base defaults to http.DefaultTransport.
	Base http.RoundTripper
}

func (t *BearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Session == nil || t.Session.Errored() || t.Session.AccessToken == "" {
		if req.Body != nil {
			_ = req.Body.Close()
		}
		return nil, ErrSignedOut
	}

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	r := req.Clone(req.Context())
	r.Header.Set("Authorization", "Bearer "+t.Session.AccessToken)
	return base.RoundTrip(r)
}
