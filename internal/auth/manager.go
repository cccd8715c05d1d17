package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dl-alexandre/ghimg/internal/utils"
	"github.com/zalando/go-keyring"
)

const (
	serviceName = "ghimg-cli"
	// DefaultProfile is used when no profile is named
	DefaultProfile = "default"
)

// Token sources, in lookup order
const (
	SourceFlag      = "flag"
	SourceEnv       = "env:GHIMG_TOKEN"
	SourceGitHubEnv = "env:GITHUB_TOKEN"
	SourceStored    = "stored"
	SourceNone      = "none"
)

// StoredToken is the persisted credential for a profile
type StoredToken struct {
	Profile   string    `json:"profile"`
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"createdAt"`
}

// Status describes where the active token comes from
type Status struct {
	Profile       string `json:"profile"`
	Authenticated bool   `json:"authenticated"`
	Source        string `json:"source"`
	Backend       string `json:"backend"`
	Token         string `json:"token,omitempty"`
	Warning       string `json:"warning,omitempty"`
}

// Manager handles token storage and lookup
type Manager struct {
	storage        Store
	storageWarning string
	getenv         func(string) string
}

// NewManager creates a new auth manager
func NewManager(configDir string) *Manager {
	return NewManagerWithOptions(configDir, ManagerOptions{})
}

// ManagerOptions configures the auth manager
type ManagerOptions struct {
	ForceEncryptedFile bool // Force use of encrypted file storage
	ForcePlainFile     bool // Force use of plain file storage (insecure, dev only)
}

// NewManagerWithOptions creates a new auth manager with specific options
func NewManagerWithOptions(configDir string, opts ManagerOptions) *Manager {
	mgr := &Manager{
		getenv: os.Getenv,
	}

	switch {
	case opts.ForcePlainFile:
		mgr.storage = newPlainFileStore(configDir)
		mgr.storageWarning = "WARNING: Using unencrypted file storage. Tokens are stored in plain text."
	case opts.ForceEncryptedFile || !checkKeyringAvailable():
		store, err := newEncryptedFileStore(configDir)
		if err != nil {
			mgr.storage = newPlainFileStore(configDir)
			mgr.storageWarning = fmt.Sprintf("WARNING: Encryption setup failed (%v). Using plain file storage.", err)
			break
		}
		mgr.storage = store
		if !opts.ForceEncryptedFile {
			mgr.storageWarning = "INFO: System keyring not available. Using encrypted file storage."
		}
	default:
		mgr.storage = newKeyringStore(serviceName, configDir)
	}

	return mgr
}

// checkKeyringAvailable tests if system keyring is available
func checkKeyringAvailable() bool {
	testKey := "ghimg-cli-test"
	if err := keyring.Set(serviceName, testKey, "test"); err != nil {
		return false
	}
	_ = keyring.Delete(serviceName, testKey)
	return true
}

// SetToken stores token for profile
func (m *Manager) SetToken(profile, token string) error {
	profile, err := checkProfile(profile)
	if err != nil {
		return err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return utils.NewAppError(utils.NewCLIError(utils.ErrCodeInvalidArgument, "token must not be empty").Build())
	}

	data, err := json.Marshal(StoredToken{Profile: profile, Token: token, CreatedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	if err := m.storage.Put(profile, data); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	return nil
}

// LoadToken returns the stored token of profile
func (m *Manager) LoadToken(profile string) (*StoredToken, error) {
	profile, err := checkProfile(profile)
	if err != nil {
		return nil, err
	}
	data, err := m.storage.Get(profile)
	if errors.Is(err, ErrNoToken) {
		return nil, utils.NewAppError(utils.NewCLIError(utils.ErrCodeAuthRequired,
			fmt.Sprintf("No token stored for profile '%s'. Run 'ghimg auth set-token'", profile)).Build())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token for profile '%s': %w", profile, err)
	}

	var stored StoredToken
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("invalid stored token: %w", err)
	}
	return &stored, nil
}

// DeleteToken removes the stored token of profile
func (m *Manager) DeleteToken(profile string) error {
	profile, err := checkProfile(profile)
	if err != nil {
		return err
	}
	return m.storage.Remove(profile)
}

// ListProfiles returns the profiles with a stored token, sorted by name
func (m *Manager) ListProfiles() ([]string, error) {
	return m.storage.Profiles()
}

// ResolveToken picks the token to use: an explicit flag value, then
// GHIMG_TOKEN, then GITHUB_TOKEN, then the stored token. An empty token
// means anonymous access.
func (m *Manager) ResolveToken(profile, flagToken string) (string, string) {
	if t := strings.TrimSpace(flagToken); t != "" {
		return t, SourceFlag
	}
	if t := strings.TrimSpace(m.getenv("GHIMG_TOKEN")); t != "" {
		return t, SourceEnv
	}
	if t := strings.TrimSpace(m.getenv("GITHUB_TOKEN")); t != "" {
		return t, SourceGitHubEnv
	}
	if stored, err := m.LoadToken(profile); err == nil && stored.Token != "" {
		return stored.Token, SourceStored
	}
	return "", SourceNone
}

// Status reports the token that ResolveToken would pick
func (m *Manager) Status(profile, flagToken string) Status {
	token, source := m.ResolveToken(profile, flagToken)
	return Status{
		Profile:       profileName(profile),
		Authenticated: token != "",
		Source:        source,
		Backend:       m.storage.Name(),
		Token:         MaskToken(token),
		Warning:       m.storageWarning,
	}
}

// MaskToken keeps a recognizable prefix and the last four characters
func MaskToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 8 {
		return strings.Repeat("*", len(token))
	}
	prefix := ""
	for _, p := range []string{"github_pat_", "ghp_", "gho_", "ghs_"} {
		if strings.HasPrefix(token, p) {
			prefix = p
			break
		}
	}
	return prefix + "****" + token[len(token)-4:]
}

func profileName(profile string) string {
	if profile = strings.TrimSpace(profile); profile == "" {
		return DefaultProfile
	}
	return profile
}

func checkProfile(profile string) (string, error) {
	profile = profileName(profile)
	if !ValidProfile(profile) {
		return "", utils.NewAppError(utils.NewCLIError(utils.ErrCodeInvalidArgument,
			fmt.Sprintf("invalid profile name '%s'", profile)).
			WithContext("profile", profile).
			Build())
	}
	return profile, nil
}

// GetStorageBackend returns the name of the storage backend being used
func (m *Manager) GetStorageBackend() string {
	return m.storage.Name()
}

// GetStorageWarning returns any warning message about the storage backend
func (m *Manager) GetStorageWarning() string {
	return m.storageWarning
}
