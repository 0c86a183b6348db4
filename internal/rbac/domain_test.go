package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	for raw, want := range map[string]Level{
		"read_only":     LevelReadOnly,
		"READ_EDIT":     LevelReadEdit,
		" full_access ": LevelFullAccess,
	} {
		got, err := ParseLevel(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got)
	}

	_, err := ParseLevel("write")
	assert.Error(t, err)
	assert.False(t, Level("admin").Valid())
}

func TestParseScope(t *testing.T) {
	for raw, want := range map[string]Scope{
		"own":        ScopeOwn,
		"Team":       ScopeTeam,
		" all ":      ScopeAll,
		"unassigned": ScopeUnassigned,
	} {
		got, err := ParseScope(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got)
	}

	_, err := ParseScope("everyone")
	assert.Error(t, err)
}

func TestScopedKey(t *testing.T) {
	assert.Equal(t, "leads.edit.team", ScopedKey("Leads", " Edit ", ScopeTeam))

	p := Permission{Module: "tickets", Action: "view", Scope: ScopeOwn}
	assert.Equal(t, "tickets.view.own", p.ScopedKey())
}

func TestSystemRoleNames(t *testing.T) {
	assert.Len(t, SystemRoles(), 5)
	for _, name := range SystemRoles() {
		assert.True(t, IsSystemRoleName(name), name)
	}
	assert.False(t, IsSystemRoleName("ops"))
	assert.False(t, IsSystemRoleName("SUPER_ADMIN"))
}
