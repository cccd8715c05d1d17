package store

import (
	"context"
	"testing"

	"github.com/dl-alexandre/ghimg/internal/api"
	"github.com/dl-alexandre/ghimg/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_GitHub(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Owner = "octo"
	cfg.Repository = "assets"

	client, err := New(context.Background(), cfg, Options{})
	require.NoError(t, err)
	_, ok := client.(*api.Client)
	assert.True(t, ok, "expected *api.Client, got %T", client)
}

func TestNew_GitHubRequiresRepository(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Owner = "octo"

	_, err := New(context.Background(), cfg, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "owner and repository")
}

func TestNew_UnknownBackend(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Backend = "ftp"

	_, err := New(context.Background(), cfg, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown backend")
}
