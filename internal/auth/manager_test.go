package auth

import (
	"testing"

	"github.com/dl-alexandre/ghimg/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, env map[string]string) *Manager {
	t.Helper()
	mgr := NewManagerWithOptions(t.TempDir(), ManagerOptions{ForceEncryptedFile: true})
	mgr.getenv = func(k string) string { return env[k] }
	return mgr
}

func TestManager_SetLoadDeleteToken(t *testing.T) {
	mgr := newTestManager(t, nil)

	require.NoError(t, mgr.SetToken("", "  ghp_abcdefghijkl  "))

	stored, err := mgr.LoadToken(DefaultProfile)
	require.NoError(t, err)
	assert.Equal(t, "ghp_abcdefghijkl", stored.Token)
	assert.Equal(t, DefaultProfile, stored.Profile)
	assert.False(t, stored.CreatedAt.IsZero())

	profiles, err := mgr.ListProfiles()
	require.NoError(t, err)
	assert.Equal(t, []string{DefaultProfile}, profiles)

	require.NoError(t, mgr.DeleteToken(DefaultProfile))
	_, err = mgr.LoadToken(DefaultProfile)
	var appErr *utils.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, utils.ErrCodeAuthRequired, appErr.CLIError.Code)
}

func TestManager_SetTokenRejectsEmpty(t *testing.T) {
	mgr := newTestManager(t, nil)
	assert.Error(t, mgr.SetToken("work", "   "))
}

func TestManager_ResolveTokenOrder(t *testing.T) {
	mgr := newTestManager(t, map[string]string{"GITHUB_TOKEN": "from-github-env"})
	require.NoError(t, mgr.SetToken("", "stored-token"))

	token, source := mgr.ResolveToken("", "from-flag")
	assert.Equal(t, "from-flag", token)
	assert.Equal(t, SourceFlag, source)

	token, source = mgr.ResolveToken("", "")
	assert.Equal(t, "from-github-env", token)
	assert.Equal(t, SourceGitHubEnv, source)

	mgr.getenv = func(k string) string {
		if k == "GHIMG_TOKEN" {
			return "from-ghimg-env"
		}
		return "from-github-env"
	}
	token, source = mgr.ResolveToken("", "")
	assert.Equal(t, "from-ghimg-env", token)
	assert.Equal(t, SourceEnv, source)

	mgr.getenv = func(string) string { return "" }
	token, source = mgr.ResolveToken("", "")
	assert.Equal(t, "stored-token", token)
	assert.Equal(t, SourceStored, source)

	token, source = mgr.ResolveToken("other", "")
	assert.Empty(t, token)
	assert.Equal(t, SourceNone, source)
}

func TestManager_Status(t *testing.T) {
	mgr := newTestManager(t, nil)

	st := mgr.Status("", "")
	assert.False(t, st.Authenticated)
	assert.Equal(t, "encrypted-file", st.Backend)

	require.NoError(t, mgr.SetToken("", "ghp_1234567890abcd"))
	st = mgr.Status("", "")
	assert.True(t, st.Authenticated)
	assert.Equal(t, SourceStored, st.Source)
	assert.Equal(t, "ghp_****abcd", st.Token)
}

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "", MaskToken(""))
	assert.Equal(t, "*****", MaskToken("short"))
	assert.Equal(t, "github_pat_****wxyz", MaskToken("github_pat_0123456789wxyz"))
	assert.Equal(t, "****6789", MaskToken("0123456789"))
}
