package provider

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/aussiebroadwan/portal/internal/session/domain"
)

// idTokenClaims is the lenient wire shape of the ID token payload. Providers
// disagree on a few types so those fields are decoded by hand.
type idTokenClaims struct {
	Subject       string          `json:"sub"`
	Email         string          `json:"email"`
	Name          string          `json:"name"`
	EmailVerified flexBool        `json:"email_verified"`
	Birthdate     string          `json:"birthdate"`
	Address       domain.Address  `json:"address"`
	Gender        string          `json:"gender"`
	Groups        []string        `json:"groups"`
	UserData      json.RawMessage `json:"user_data"`
}

// flexBool accepts true, "true" and their negations.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case bool:
		*b = flexBool(t)
	case string:
		parsed, err := strconv.ParseBool(t)
		if err != nil {
			return fmt.Errorf("email_verified: %w", err)
		}
		*b = flexBool(parsed)
	case nil:
		*b = false
	default:
		return fmt.Errorf("email_verified: unexpected %T", v)
	}
	return nil
}

func (c idTokenClaims) toDomain() domain.IdentityClaims {
	return domain.IdentityClaims{
		Subject:       c.Subject,
		Email:         c.Email,
		Name:          c.Name,
		EmailVerified: bool(c.EmailVerified),
		Birthdate:     c.Birthdate,
		Address:       c.Address,
		Gender:        c.Gender,
		Groups:        c.Groups,
		UserData:      userDataString(c.UserData),
	}
}

// userDataString keeps the blob opaque. Some providers send it as a JSON
// encoded string, others inline the object; both end up as the document
// text. Whether that text is valid JSON is the projector's problem.
func userDataString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return string(raw)
}
