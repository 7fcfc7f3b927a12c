package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppCommands(t *testing.T) {
	app := newApp()
	var names []string
	for _, c := range app.Commands {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"run", "export", "migrate"}, names)

	migrate := app.Command("migrate")
	require.NotNil(t, migrate)
	assert.Len(t, migrate.Flags, 3)
}
