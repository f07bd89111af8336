package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSessionsCmdStructure(t *testing.T) {
	cmd := NewSessionsCmd()
	assert.Equal(t, "sessions", cmd.Use)

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.ElementsMatch(t, []string{"list", "show", "export", "prune"}, names)
}

func TestSessionsCmdGlobalFlags(t *testing.T) {
	cmd := NewSessionsCmd()
	for _, name := range []string{"json", "no-color", "quiet"} {
		require.NotNil(t, cmd.PersistentFlags().Lookup(name), "missing flag %s", name)
	}
}
