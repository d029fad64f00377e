package session

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/investly/investly/internal/cli/client"
)

// Role is the access level of an account
type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

// Profile is the client-side view of the signed-in user
type Profile struct {
	ID              string
	Name            string
	Email           string
	Role            Role
	IsEmailVerified bool
	Active          bool
	Avatar          string
}

func (p Profile) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// Initials returns the uppercase first letter of every whitespace-separated word
func Initials(name string) string {
	var b strings.Builder
	for _, word := range strings.Fields(name) {
		r, _ := utf8.DecodeRuneInString(word)
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

func newProfile(u client.User) Profile {
	return Profile{
		ID:              u.ID,
		Name:            u.Name,
		Email:           u.Email,
		Role:            Role(u.Role),
		IsEmailVerified: u.IsEmailVerified,
		Active:          u.Active,
		Avatar:          Initials(u.Name),
	}
}
