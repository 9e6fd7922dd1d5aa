package statemachine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sserr "github.com/StricklySoft/stricklysoft-statemachine/pkg/errors"
)

// TestCatalog_Provide_New verifies that typed factories are stored under the
// type-derived identity and create fresh instances.
func TestCatalog_Provide_New(t *testing.T) {
	t.Parallel()
	c := NewCatalog[*player]()
	require.NoError(t, Provide(c, func() *idle { return &idle{} }))
	require.NoError(t, Provide(c, func() *moving { return &moving{} }))

	first, err := c.New(IdentityFor[*idle]())
	require.NoError(t, err)
	second, err := c.New(IdentityFor[*idle]())
	require.NoError(t, err)

	assert.IsType(t, &idle{}, first)
	assert.NotSame(t, first, second)
	assert.True(t, c.Has(IdentityFor[*moving]()))
	assert.Equal(t, []Identity{IdentityFor[*idle](), IdentityFor[*moving]()}, c.Identities())
}

// TestCatalog_Add_Duplicate verifies that a second factory for the same
// identity is rejected.
func TestCatalog_Add_Duplicate(t *testing.T) {
	t.Parallel()
	c := NewCatalog[*player]()
	factory := func() State[*player] { return newScripted("a", nil) }
	require.NoError(t, c.Add("a", factory))

	err := c.Add("a", factory)
	require.Error(t, err)
	assert.True(t, sserr.IsConflict(err))
	assert.True(t, sserr.HasCode(err, sserr.CodeConflictAlreadyExists))
}

// TestCatalog_Add_Invalid verifies that empty identities and nil factories
// are rejected.
func TestCatalog_Add_Invalid(t *testing.T) {
	t.Parallel()
	c := NewCatalog[*player]()
	assert.True(t, sserr.IsConfiguration(c.Add("", func() State[*player] { return nil })))
	assert.True(t, sserr.IsConfiguration(c.Add("a", nil)))
	assert.True(t, sserr.IsConfiguration(Provide[*idle](c, nil)))
	assert.Empty(t, c.Identities())
}

// TestCatalog_New_Unknown verifies the error for a missing factory.
func TestCatalog_New_Unknown(t *testing.T) {
	t.Parallel()
	c := NewCatalog[*player]()
	state, err := c.New("missing")
	assert.Nil(t, state)
	assert.True(t, sserr.HasCode(err, sserr.CodeUnknownFactory))
	assert.True(t, sserr.IsNotFound(err))
}

// TestCatalog_RegisterWithMachine verifies that catalog-created states can
// drive a machine.
func TestCatalog_RegisterWithMachine(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := NewCatalog[*player]()
	require.NoError(t, Provide(c, func() *idle { return &idle{} }))

	state, err := c.New(IdentityFor[*idle]())
	require.NoError(t, err)

	m := mustBuildMachine(t)
	mustRegister(t, m, state)
	require.NoError(t, m.Start(ctx, IdentityFor[*idle]()))
	assert.True(t, m.Ready())
}
