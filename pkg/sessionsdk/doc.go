// Package sessionsdk is the client for the portal session service.
//
// Data-fetchers (blog, projects, issues, welfare) forward the caller's
// session cookie to read the Projected Session and then call their own APIs
// with the access token it carries:
//
//	client := sessionsdk.NewClient("https://portal.example.com")
//	sess, err := client.GetSession(ctx, cookieValue)
//	if err != nil {
//		return err
//	}
//	api := &http.Client{Transport: &sessionsdk.BearerTransport{Session: sess}}
//
// A session carrying the error marker can no longer be used; every call made
// through BearerTransport then fails with ErrSignedOut and the user must be
// sent through sign-out.
package sessionsdk
