package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/zalando/go-keyring"
)

// ErrNoToken is returned by a Store when the profile has nothing stored
var ErrNoToken = errors.New("no token stored")

// Store persists one secret per profile
type Store interface {
	Put(profile string, secret []byte) error
	Get(profile string) ([]byte, error)
	Remove(profile string) error
	Profiles() ([]string, error)
	Name() string
}

var profilePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidProfile reports whether name is usable as a file name and keyring account
func ValidProfile(name string) bool {
	return len(name) <= 64 && profilePattern.MatchString(name)
}

// keyringStore keeps secrets in the OS keyring. The keyring cannot be
// enumerated, so profile names are mirrored in an index file.
type keyringStore struct {
	service string
	index   profileIndex
}

func newKeyringStore(service, configDir string) *keyringStore {
	return &keyringStore{
		service: service,
		index:   profileIndex{path: filepath.Join(configDir, "profiles.json")},
	}
}

func (s *keyringStore) Put(profile string, secret []byte) error {
	if err := keyring.Set(s.service, profile, string(secret)); err != nil {
		return err
	}
	return s.index.add(profile)
}

func (s *keyringStore) Get(profile string) ([]byte, error) {
	data, err := keyring.Get(s.service, profile)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, err
	}
	return []byte(data), nil
}

func (s *keyringStore) Remove(profile string) error {
	if err := keyring.Delete(s.service, profile); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return err
	}
	return s.index.remove(profile)
}

func (s *keyringStore) Profiles() ([]string, error) {
	return s.index.load()
}

func (s *keyringStore) Name() string {
	return "system-keyring"
}

// profileIndex is a sorted JSON list of profile names
type profileIndex struct {
	path string
}

func (x profileIndex) load() ([]string, error) {
	data, err := os.ReadFile(x.path)
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, fmt.Errorf("corrupt profile index %s: %w", x.path, err)
	}
	sort.Strings(names)
	return names, nil
}

func (x profileIndex) add(profile string) error {
	names, err := x.load()
	if err != nil {
		return err
	}
	for _, n := range names {
		if n == profile {
			return nil
		}
	}
	return x.save(append(names, profile))
}

func (x profileIndex) remove(profile string) error {
	names, err := x.load()
	if err != nil {
		return err
	}
	kept := names[:0]
	for _, n := range names {
		if n != profile {
			kept = append(kept, n)
		}
	}
	return x.save(kept)
}

func (x profileIndex) save(names []string) error {
	sort.Strings(names)
	data, err := json.Marshal(names)
	if err != nil {
		return err
	}
	return writeFileAtomic(x.path, data)
}

// fileStore keeps one file per profile under <configDir>/tokens. With a
// sealer the contents are AES-GCM encrypted, otherwise stored as is.
type fileStore struct {
	dir  string
	seal *sealer
}

func newEncryptedFileStore(configDir string) (*fileStore, error) {
	s, err := loadSealer(filepath.Join(configDir, ".keyfile"))
	if err != nil {
		return nil, fmt.Errorf("failed to get encryption key: %w", err)
	}
	return &fileStore{dir: filepath.Join(configDir, "tokens"), seal: s}, nil
}

func newPlainFileStore(configDir string) *fileStore {
	return &fileStore{dir: filepath.Join(configDir, "tokens")}
}

func (s *fileStore) ext() string {
	if s.seal != nil {
		return ".enc"
	}
	return ".json"
}

func (s *fileStore) path(profile string) string {
	return filepath.Join(s.dir, profile+s.ext())
}

func (s *fileStore) Put(profile string, secret []byte) error {
	data := secret
	if s.seal != nil {
		var err error
		if data, err = s.seal.seal(secret); err != nil {
			return fmt.Errorf("failed to encrypt token: %w", err)
		}
	}
	return writeFileAtomic(s.path(profile), data)
}

func (s *fileStore) Get(profile string) ([]byte, error) {
	data, err := os.ReadFile(s.path(profile))
	if os.IsNotExist(err) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, err
	}
	if s.seal == nil {
		return data, nil
	}
	return s.seal.open(data)
}

func (s *fileStore) Remove(profile string) error {
	if err := os.Remove(s.path(profile)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *fileStore) Profiles() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	names := []string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if name, ok := strings.CutSuffix(e.Name(), s.ext()); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *fileStore) Name() string {
	if s.seal != nil {
		return "encrypted-file"
	}
	return "plain-file"
}

// sealer encrypts with AES-256-GCM. The nonce is prepended to the output.
type sealer struct {
	aead cipher.AEAD
}

func loadSealer(keyFile string) (*sealer, error) {
	key, err := readOrCreateKey(keyFile)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &sealer{aead: aead}, nil
}

func (s *sealer) seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return s.aead.Seal(nonce, nonce, plaintext, nil), nil
}

func (s *sealer) open(data []byte) ([]byte, error) {
	n := s.aead.NonceSize()
	if len(data) < n {
		return nil, errors.New("token file is truncated")
	}
	plaintext, err := s.aead.Open(nil, data[:n], data[n:], nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt token: %w", err)
	}
	return plaintext, nil
}

func readOrCreateKey(keyFile string) ([]byte, error) {
	if data, err := os.ReadFile(keyFile); err == nil {
		key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
		if err == nil && len(key) == 32 {
			return key, nil
		}
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	if err := writeFileAtomic(keyFile, []byte(base64.StdEncoding.EncodeToString(key))); err != nil {
		return nil, err
	}
	return key, nil
}

// writeFileAtomic writes through a temp file in the same directory so a
// crash never leaves a half-written token behind
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return err
	}
	if err := tmp.Chmod(0600); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return err
	}
	return os.Rename(name, path)
}
