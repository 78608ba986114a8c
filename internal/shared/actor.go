package shared

import "strings"

// Actor identifies the caller of a store operation. It is a placeholder identity
// supplied by the transport layer, not an authenticated principal.
type Actor struct {
	UserID  string
	Name    string
	Company string
}

// DisplayCompany returns the company when set, falling back to the name and user id.
func (a Actor) DisplayCompany() string {
	if c := strings.TrimSpace(a.Company); c != "" {
		return c
	}
	if n := strings.TrimSpace(a.Name); n != "" {
		return n
	}
	return a.UserID
}

// Represents reports whether the actor speaks for the given company or user name.
func (a Actor) Represents(party string) bool {
	party = strings.TrimSpace(party)
	if party == "" {
		return false
	}
	return strings.EqualFold(party, a.DisplayCompany()) || strings.EqualFold(party, a.UserID)
}
