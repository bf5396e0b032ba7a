package httpapi

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type APIKey struct {
	ID          string   `yaml:"id"`
	Key         string   `yaml:"key"`
	Permissions []string `yaml:"permissions"`
}

type APIKeyStore struct {
	byKey map[string]*APIKey
}

// NewAPIKeyStore indexes keys by their secret value.
func NewAPIKeyStore(keys ...APIKey) (*APIKeyStore, error) {
	if len(keys) == 0 {
		return nil, errors.New("no api keys configured")
	}
	s := &APIKeyStore{byKey: make(map[string]*APIKey, len(keys))}
	for i := range keys {
		k := keys[i]
		k.ID = strings.TrimSpace(k.ID)
		k.Key = strings.TrimSpace(k.Key)
		switch {
		case k.ID == "":
			return nil, fmt.Errorf("api key at index %d has empty id", i)
		case k.Key == "":
			return nil, fmt.Errorf("api key %q has empty key", k.ID)
		case len(k.Permissions) == 0:
			return nil, fmt.Errorf("api key %q has no permissions", k.ID)
		}
		for _, p := range k.Permissions {
			if _, ok := knownPermissions[p]; !ok {
				return nil, fmt.Errorf("api key %q has unknown permission %q", k.ID, p)
			}
		}
		if _, exists := s.byKey[k.Key]; exists {
			return nil, fmt.Errorf("duplicate api key value for id %q", k.ID)
		}
		s.byKey[k.Key] = &k
	}
	return s, nil
}

func LoadAPIKeys(path string) (*APIKeyStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read api keys file: %w", err)
	}
	var entries []APIKey
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse api keys file: %w", err)
	}
	s, err := NewAPIKeyStore(entries...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

func (s *APIKeyStore) Lookup(key string) (*APIKey, bool) {
	if s == nil {
		return nil, false
	}
	k, ok := s.byKey[key]
	return k, ok
}

func (s *APIKeyStore) Len() int {
	if s == nil {
		return 0
	}
	return len(s.byKey)
}
