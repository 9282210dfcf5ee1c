package main

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"sodap/cmd/internal/passphrase"
	"sodap/crypto"
)

type cli struct {
	endpoint string
	token    string
	stdout   io.Writer
	stderr   io.Writer

	// passphrase overrides the prompt in tests.
	passphrase func() (string, error)
	decimals   *uint8
}

func (c *cli) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	return fs
}

func (c *cli) getPassphrase() (string, error) {
	if c.passphrase != nil {
		return c.passphrase()
	}
	return passphrase.NewSource(keyPassEnv).Get()
}

func (c *cli) loadKey(path string) (*crypto.PrivateKey, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("--key is required")
	}
	pass, err := c.getPassphrase()
	if err != nil {
		return nil, err
	}
	key, err := crypto.LoadKey(path, pass)
	if err != nil {
		return nil, fmt.Errorf("load key %s: %w", path, err)
	}
	return key, nil
}

func (c *cli) runGenerateKey(args []string) int {
	fs := c.flagSet("generate-key")
	out := fs.String("out", "sodap.key", "path of the encrypted key file to create")
	light := fs.Bool("light", false, "use cheap scrypt parameters (dev keys only)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	pass, err := c.getPassphrase()
	if err != nil {
		return c.fail(err)
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return c.fail(err)
	}
	params := crypto.StandardScrypt
	if *light {
		params = crypto.LightScrypt
	}
	if err := crypto.SaveKey(*out, key, pass, params); err != nil {
		return c.fail(err)
	}
	fmt.Fprintf(c.stdout, "Key written to %s\nCredential: %s\n", *out, key.PubKey().Address().String())
	return 0
}

func (c *cli) runWhoami(args []string) int {
	fs := c.flagSet("whoami")
	keyFile := fs.String("key", "", "encrypted key file")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	key, err := c.loadKey(*keyFile)
	if err != nil {
		return c.fail(err)
	}
	fmt.Fprintln(c.stdout, key.PubKey().Address().String())
	return 0
}
