package utils

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPosthogClientWrapper_Uninitialized(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	w := InitializePosthogClient("", "", logger)

	assert.False(t, w.IsInitialized())
	assert.NotPanics(t, func() {
		w.Enqueue("user-1", "api_v1_accounts", map[string]any{"status_code": 201})
		w.Close()
	})

	var nilWrapper *PosthogClientWrapper
	assert.False(t, nilWrapper.IsInitialized())
}
