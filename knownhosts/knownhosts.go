// Package knownhosts implements a file-backed host key trust store in
// the OpenSSH known_hosts line format: hostname, key type and
// base64-encoded key separated by spaces, with comma-separated hostname
// aliases and "[host]:port" qualification for non-default ports.
//
// The store is consulted by the strict and lenient host key verifiers
// and appended to when the lenient verifier accepts a previously unknown
// host.
package knownhosts

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"sync"
)

// Result classifies a host key lookup.
type Result int

const (
	// Unknown means no entry exists for the host.
	Unknown Result = iota
	// Match means an entry exists and the key is identical.
	Match
	// Mismatch means an entry exists with a different key.
	Mismatch
)

// String returns a diagnostic name for the result.
func (r Result) String() string {
	switch r {
	case Unknown:
		return "unknown"
	case Match:
		return "match"
	case Mismatch:
		return "mismatch"
	default:
		return fmt.Sprintf("result(%d)", int(r))
	}
}

// Entry is one parsed known-hosts line.
type Entry struct {
	Hosts   []string
	KeyType string
	Key     []byte
}

// Store reads and appends known-hosts entries. A zero path store treats
// every host as unknown and silently drops additions, which keeps the
// verifiers usable without a trust file.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates a store over the given file path. The file does not
// need to exist yet.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// HostPattern formats a host and port the way known_hosts expects:
// bare hostname for the default SSH port, "[host]:port" otherwise.
func HostPattern(host string, port int) string {
	if port == 22 {
		return host
	}
	return fmt.Sprintf("[%s]:%d", host, port)
}

// Check compares a presented key against the store.
func (s *Store) Check(hostPattern, keyType string, key []byte) (Result, error) {
	entries, err := s.load()
	if err != nil {
		return Unknown, err
	}

	found := false
	for _, e := range entries {
		if e.KeyType != keyType || !e.matches(hostPattern) {
			continue
		}
		found = true
		if bytes.Equal(e.Key, key) {
			return Match, nil
		}
	}
	if found {
		return Mismatch, nil
	}
	return Unknown, nil
}

// Add appends an entry for the host. A store without a path drops the
// entry.
func (s *Store) Add(hostPattern, keyType string, key []byte) error {
	if s.path == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("knownhosts: open %s: %w", s.path, err)
	}
	defer f.Close()

	line := fmt.Sprintf("%s %s %s\n", hostPattern, keyType, base64.StdEncoding.EncodeToString(key))
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("knownhosts: append %s: %w", s.path, err)
	}
	return nil
}

func (e *Entry) matches(hostPattern string) bool {
	for _, h := range e.Hosts {
		if h == hostPattern {
			return true
		}
	}
	return false
}

func (s *Store) load() ([]Entry, error) {
	if s.path == "" {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("knownhosts: open %s: %w", s.path, err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		key, err := base64.StdEncoding.DecodeString(fields[2])
		if err != nil {
			// Unreadable entries are skipped rather than failing every
			// lookup against the file.
			continue
		}
		entries = append(entries, Entry{
			Hosts:   strings.Split(fields[0], ","),
			KeyType: fields[1],
			Key:     key,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("knownhosts: read %s: %w", s.path, err)
	}
	return entries, nil
}
