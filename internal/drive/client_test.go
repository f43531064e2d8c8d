package drive

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidRole(t *testing.T) {
	for _, role := range []string{RoleReader, RoleCommenter, RoleWriter} {
		assert.True(t, ValidRole(role), "role %q", role)
	}
	for _, role := range []string{"", "owner", "Reader", "admin"} {
		assert.False(t, ValidRole(role), "role %q", role)
	}
}
