package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoleFromFlags(t *testing.T) {
	require.Equal(t, RoleAdmin, RoleFromFlags(true, false))
	require.Equal(t, RoleAdmin, RoleFromFlags(true, true))
	require.Equal(t, RoleManager, RoleFromFlags(false, true))
	require.Equal(t, RoleUser, RoleFromFlags(false, false))
}

func TestEnumValidation(t *testing.T) {
	for _, r := range Roles {
		require.True(t, r.Valid(), r)
		require.NotEmpty(t, r.Display())
	}
	require.False(t, Role("root").Valid())
	require.False(t, Role("").Valid())

	for _, d := range Departments {
		require.True(t, d.Valid(), d)
	}
	require.False(t, Department("legal").Valid())
	require.Equal(t, "Customer Support", DepartmentSupport.Display())
}

func TestIdentityFullName(t *testing.T) {
	require.Equal(t, "Ada Lovelace", (&Identity{Username: "ada", FirstName: "Ada", LastName: "Lovelace"}).FullName())
	require.Equal(t, "Lovelace", (&Identity{Username: "ada", LastName: "Lovelace"}).FullName())
	require.Equal(t, "ada", (&Identity{Username: "ada"}).FullName())
}
