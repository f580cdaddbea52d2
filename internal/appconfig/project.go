package appconfig

import (
	"net/mail"
	"regexp"
	"strings"

	"github.com/google/uuid"

	oerrors "github.com/appforge/cli/internal/errors"
)

// projectIDRegex admits a single safe path segment: no dots, so neither
// ".." nor hidden directories such as ".staging".
var projectIDRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,127}$`)

// ValidateProjectID checks that id can name a directory and an archive.
func ValidateProjectID(id string) error {
	if !projectIDRegex.MatchString(id) {
		return oerrors.NewValidationError(
			"project id must be 1-128 letters, digits, '-' or '_' and start with a letter or digit",
			"projectId", "projectId", "")
	}
	return nil
}

// Slug reduces an app name to a lower-case project id candidate.
// "My Shop!" becomes "my-shop".
func Slug(appName string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(appName) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}

	s := strings.TrimSuffix(b.String(), "-")
	if len(s) > 64 {
		s = strings.TrimSuffix(s[:64], "-")
	}
	if s == "" {
		return "app"
	}
	return s
}

// NewProjectID returns a fresh, unique project id derived from appName.
func NewProjectID(appName string) string {
	return Slug(appName) + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// Validate checks that the owner has a usable email address.
func (o Owner) Validate() error {
	if strings.TrimSpace(o.Email) == "" {
		return oerrors.NewValidationError("owner email is missing", "owner.email", "email",
			"Pass --owner-email or set owner.email in the appforge config")
	}
	addr, err := mail.ParseAddress(o.Email)
	if err != nil {
		return oerrors.NewValidationError("owner email "+o.Email+" is not a valid address",
			"owner.email", "email", "")
	}
	// ParseAddress also accepts "Name <addr>"; the email is written
	// verbatim into the generated app, so only the bare address passes.
	if addr.Address != o.Email {
		return oerrors.NewValidationError("owner email "+o.Email+" is not a bare address",
			"owner.email", "email", "Pass only the address, e.g. "+addr.Address+", and set the name separately")
	}
	return nil
}
