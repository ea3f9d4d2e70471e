// Package projector maps a Session Record onto the view consumers are allowed
// to see.
package projector

import (
	"bytes"
	"encoding/json"
	"slices"

	"github.com/aussiebroadwan/portal/internal/session/domain"
)

// Project builds the consumer-facing session. It never fails: a user data
// blob that is missing or not a JSON object becomes an empty object. The
// refresh token is never copied.
func Project(rec domain.Record) domain.ProjectedSession {
	c := rec.Claims

	groups := slices.Clone(c.Groups)
	if groups == nil {
		groups = []string{}
	}

	return domain.ProjectedSession{
		User: domain.Profile{
			ID:            c.Subject,
			Name:          c.Name,
			Email:         c.Email,
			EmailVerified: c.EmailVerified,
			Birthdate:     c.Birthdate,
			Address:       c.Address,
			Gender:        c.Gender,
			Groups:        groups,
			UserData:      ParseUserData(c.UserData),
		},
		AccessToken:          rec.Tokens.AccessToken,
		AccessTokenExpiresAt: rec.Tokens.AccessTokenExpiresAt,
		Error:                rec.Error,
	}
}

// ParseUserData decodes the opaque user data blob. Anything other than a JSON
// object yields an empty map.
func ParseUserData(raw string) map[string]any {
	data := bytes.TrimSpace([]byte(raw))
	if len(data) == 0 {
		return map[string]any{}
	}

	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil || out == nil {
		return map[string]any{}
	}
	return out
}
