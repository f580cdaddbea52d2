package appconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	oerrors "github.com/appforge/cli/internal/errors"
)

func TestSlug(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"My Shop", "my-shop"},
		{"  Task  Manager!! ", "task-manager"},
		{"Blog_2024", "blog-2024"},
		{"---", "app"},
		{"", "app"},
		{"Café Menu", "caf-menu"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Slug(tt.in))
			assert.NoError(t, ValidateProjectID(Slug(tt.in)))
		})
	}
}

func TestNewProjectID(t *testing.T) {
	a := NewProjectID("My Shop")
	b := NewProjectID("My Shop")

	assert.NotEqual(t, a, b)
	assert.Regexp(t, `^my-shop-[0-9a-f]{12}$`, a)
	require.NoError(t, ValidateProjectID(a))
}

func TestValidateProjectID(t *testing.T) {
	for _, bad := range []string{"", "..", ".staging", "a/b", `a\b`, "-lead", "with space"} {
		err := ValidateProjectID(bad)
		assert.ErrorIs(t, err, oerrors.ErrValidation, "id %q", bad)
	}
	for _, good := range []string{"p1", "my-shop", "A_b-9"} {
		assert.NoError(t, ValidateProjectID(good), "id %q", good)
	}
}

func TestOwnerValidate(t *testing.T) {
	tests := []struct {
		name    string
		owner   Owner
		wantErr string
	}{
		{name: "bare address", owner: Owner{Email: "ada@example.com", Name: "Ada"}},
		{name: "no name", owner: Owner{Email: "ada@example.com"}},
		{name: "missing", owner: Owner{}, wantErr: "owner email is missing"},
		{name: "not an address", owner: Owner{Email: "not-an-address"}, wantErr: "is not a valid address"},
		{name: "display name", owner: Owner{Email: "Guest <g@x.com>"}, wantErr: "is not a bare address"},
		{name: "padded", owner: Owner{Email: " g@x.com "}, wantErr: "is not a bare address"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.owner.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, oerrors.ErrValidation)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestParseIdentityPolicy(t *testing.T) {
	p, ok := ParseIdentityPolicy("")
	assert.True(t, ok)
	assert.Equal(t, PolicyMerge, p)

	p, ok = ParseIdentityPolicy("Reject")
	assert.True(t, ok)
	assert.Equal(t, PolicyReject, p)

	_, ok = ParseIdentityPolicy("append")
	assert.False(t, ok)
}
