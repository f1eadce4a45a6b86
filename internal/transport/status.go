package transport

import "fmt"

// MemberStatus is a user's standing in a channel as reported by the platform.
type MemberStatus string

const (
	StatusCreator       MemberStatus = "creator"
	StatusAdministrator MemberStatus = "administrator"
	StatusMember        MemberStatus = "member"
	StatusRestricted    MemberStatus = "restricted"
	StatusLeft          MemberStatus = "left"
	StatusKicked        MemberStatus = "kicked"
)

// ParseMemberStatus converts a platform status string.
func ParseMemberStatus(value string) (MemberStatus, error) {
	switch status := MemberStatus(value); status {
	case StatusCreator, StatusAdministrator, StatusMember, StatusRestricted, StatusLeft, StatusKicked:
		return status, nil
	default:
		return "", fmt.Errorf("unknown member status %q", value)
	}
}

// Joined reports whether the status counts as a full member for ledger
// transitions.
func (s MemberStatus) Joined() bool {
	switch s {
	case StatusMember, StatusAdministrator, StatusCreator:
		return true
	default:
		return false
	}
}

// Gone reports whether the user is outside the channel.
func (s MemberStatus) Gone() bool {
	return s == StatusLeft || s == StatusKicked
}
