package domain

// Address mirrors the OIDC "address" claim.
type Address struct {
	Formatted     string `json:"formatted,omitempty"`
	StreetAddress string `json:"street_address,omitempty"`
	Locality      string `json:"locality,omitempty"`
	Region        string `json:"region,omitempty"`
	PostalCode    string `json:"postal_code,omitempty"`
	Country       string `json:"country,omitempty"`
}

// IdentityClaims are the user attributes the identity provider asserts at
// sign-in. They are replaced only by a newer sign-in or an explicit session
// update.
type IdentityClaims struct {
	Subject       string   `json:"sub"`
	Email         string   `json:"email,omitempty"`
	Name          string   `json:"name,omitempty"`
	EmailVerified bool     `json:"email_verified,omitempty"`
	Birthdate     string   `json:"birthdate,omitempty"`
	Address       Address  `json:"address,omitzero"`
	Gender        string   `json:"gender,omitempty"`
	Groups        []string `json:"groups,omitempty"`

	// UserData is the opaque application blob as issued by the provider. It is
	// expected to hold a small JSON object but is never trusted to.
	UserData string `json:"user_data,omitempty"`
}
