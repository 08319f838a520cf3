package session

import (
	"encoding/json"
	"os"
	"time"

	"github.com/gauciv/triji-app-admin-dashboard/internal/vault"
)

// persistedState is the client-local storage record backing the inactivity
// timeout across restarts.
type persistedState struct {
	LastActivity time.Time `json:"lastActivity"`
	Token        string    `json:"token,omitempty"`
}

// stateFile reads and writes the session state with an atomic rename. When a
// key is present the token is encrypted at rest; the last-activity timestamp
// stays plain so an expired file is cheap to recognize.
type stateFile struct {
	path string
	key  []byte
}

func newStateFile(path string, key []byte) *stateFile {
	return &stateFile{path: path, key: key}
}

func (f *stateFile) save(st persistedState) error {
	if len(f.key) > 0 && st.Token != "" {
		sealed, err := vault.Encrypt(st.Token, f.key)
		if err != nil {
			return err
		}
		st.Token = sealed
	}
	bytes, err := json.Marshal(st)
	if err != nil {
		return err
	}
	tempPath := f.path + ".tmp"
	if err := os.WriteFile(tempPath, bytes, 0600); err != nil {
		return err
	}
	return os.Rename(tempPath, f.path)
}

func (f *stateFile) load() (persistedState, error) {
	var st persistedState
	content, err := os.ReadFile(f.path)
	if err != nil {
		return st, err
	}
	if err := json.Unmarshal(content, &st); err != nil {
		return st, err
	}
	if len(f.key) > 0 && st.Token != "" {
		plain, err := vault.Decrypt(st.Token, f.key)
		if err != nil {
			// A token we cannot decrypt is useless; drop it but keep the
			// activity timestamp.
			st.Token = ""
		} else {
			st.Token = plain
		}
	}
	return st, nil
}

func (f *stateFile) remove() {
	os.Remove(f.path)
}
