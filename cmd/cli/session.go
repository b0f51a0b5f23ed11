package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// session is what the CLI persists between invocations: the bearer token and
// the cookies a browser would hold.
type session struct {
	API         string            `json:"api"`
	AccessToken string            `json:"accessToken,omitempty"`
	CSRFToken   string            `json:"csrfToken,omitempty"`
	Cookies     map[string]string `json:"cookies,omitempty"`
}

func sessionPath() (string, error) {
	if p := os.Getenv("PAYMENTS_SESSION_FILE"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locate home directory: %w", err)
	}
	return filepath.Join(home, ".paymentsportal", "session.json"), nil
}

func loadSession(path string) (*session, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &session{Cookies: map[string]string{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	var s session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", path, err)
	}
	if s.Cookies == nil {
		s.Cookies = map[string]string{}
	}
	return &s, nil
}

func (s *session) save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
