package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMigrationsSourceURL(t *testing.T) {
	assert.Equal(t, "file://migrations", MigrationsSourceURL("migrations"))
	assert.Equal(t, "file:///srv/app/migrations", MigrationsSourceURL("/srv/app/migrations"))
	assert.Equal(t, "file://custom", MigrationsSourceURL("file://custom"))
}

func TestNewPgxPool_EmptyURL(t *testing.T) {
	_, err := NewPgxPool(t.Context(), "", nil)
	assert.Error(t, err)
}
