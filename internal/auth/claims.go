package auth

// Claims is the custom-claims payload this service owns inside the auth
// provider's token claims: the three keys organizations, orgRoles and
// platformAdmin. It mirrors the durable user record as of the last
// synchronization; the guard trusts it at face value.
type Claims struct {
	Organizations []string        `json:"organizations"`
	OrgRoles      map[string]Role `json:"orgRoles"`
	PlatformAdmin bool            `json:"platformAdmin,omitempty"`
}

// MemberOf reports whether the claims include the organization.
func (c Claims) MemberOf(orgID string) bool {
	for _, id := range c.Organizations {
		if id == orgID {
			return true
		}
	}
	return false
}

// RoleIn returns the claimed role within the organization, if any.
func (c Claims) RoleIn(orgID string) (Role, bool) {
	r, ok := c.OrgRoles[orgID]
	return r, ok
}

// Identity is an authenticated caller: the subject of a verified token plus
// the claims it presented.
type Identity struct {
	UID    string
	Email  string
	Claims Claims
}
