package domain

import (
	"strings"
	"time"
)

// BlacklistEntry bans a visitor fingerprint from future requests.
type BlacklistEntry struct {
	ID           string
	Name         string
	Organization string
	Email        string
	Phone        string
	Reason       string
	Active       bool
	CreatedAt    time.Time
}

// GuestFingerprint is the set of guest fields screened against the blacklist.
type GuestFingerprint struct {
	Name         string
	Organization string
	Email        string
	Phone        string
}

// MatchedFields returns the fingerprint fields this entry matches, in a fixed
// order. Name, organization, and email compare case-insensitively; phone
// compares exactly. Empty fingerprint fields never match.
func (e *BlacklistEntry) MatchedFields(fp GuestFingerprint) []string {
	var matched []string
	if fp.Name != "" && strings.EqualFold(e.Name, fp.Name) {
		matched = append(matched, "name")
	}
	if fp.Organization != "" && strings.EqualFold(e.Organization, fp.Organization) {
		matched = append(matched, "organization")
	}
	if fp.Email != "" && strings.EqualFold(e.Email, fp.Email) {
		matched = append(matched, "email")
	}
	if fp.Phone != "" && e.Phone == fp.Phone {
		matched = append(matched, "phone")
	}
	return matched
}
