// Package passphrase resolves keystore passphrases for the sodap binaries.
package passphrase

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// terminal is the subset of x/term used to prompt. Tests replace it.
type terminal interface {
	IsTerminal(fd int) bool
	ReadPassword(fd int) ([]byte, error)
}

type osTerminal struct{}

func (osTerminal) IsTerminal(fd int) bool              { return term.IsTerminal(fd) }
func (osTerminal) ReadPassword(fd int) ([]byte, error) { return term.ReadPassword(fd) }

// Source resolves a passphrase once, from envVar when it is set or else by
// prompting on the controlling terminal, and caches the answer.
type Source struct {
	envVar string
	label  string
	lookup func(string) (string, bool)
	term   terminal
	prompt io.Writer

	once  sync.Once
	value string
	err   error
}

// NewSource builds a source that checks envVar before prompting.
func NewSource(envVar string) *Source {
	return &Source{
		envVar: strings.TrimSpace(envVar),
		label:  "keystore",
		lookup: os.LookupEnv,
		term:   osTerminal{},
		prompt: os.Stderr,
	}
}

// WithLabel names the secret in prompts and errors.
func (s *Source) WithLabel(label string) *Source {
	if label = strings.TrimSpace(label); label != "" {
		s.label = label
	}
	return s
}

// Get returns the cached passphrase, resolving it on first use. An env var
// that is present but blank is an error, as is a blank typed answer.
func (s *Source) Get() (string, error) {
	s.once.Do(func() {
		s.value, s.err = s.resolve()
	})
	return s.value, s.err
}

func (s *Source) resolve() (string, error) {
	if s.envVar != "" {
		if value, ok := s.lookup(s.envVar); ok {
			if strings.TrimSpace(value) == "" {
				return "", fmt.Errorf("%s is set but empty", s.envVar)
			}
			return value, nil
		}
	}

	fd := int(os.Stdin.Fd())
	if !s.term.IsTerminal(fd) {
		if s.envVar != "" {
			return "", fmt.Errorf("%s passphrase required; set %s or run interactively", s.label, s.envVar)
		}
		return "", fmt.Errorf("%s passphrase required and no terminal available", s.label)
	}

	fmt.Fprintf(s.prompt, "Enter %s passphrase: ", s.label)
	raw, err := s.term.ReadPassword(fd)
	fmt.Fprintln(s.prompt)
	if err != nil {
		return "", fmt.Errorf("read passphrase: %w", err)
	}
	if strings.TrimSpace(string(raw)) == "" {
		return "", errors.New(s.label + " passphrase cannot be empty")
	}
	return string(raw), nil
}
