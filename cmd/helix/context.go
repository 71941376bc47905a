package main

import (
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"helix/internal/catalog"
	"helix/internal/config"
)

type commandContext struct {
	apiFlag    *string
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(apiFlag, configFlag *string) *commandContext {
	return &commandContext{
		apiFlag:    apiFlag,
		configFlag: configFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// apiAddress resolves the daemon API address, command flag first.
func (c *commandContext) apiAddress() string {
	if c.apiFlag != nil && strings.TrimSpace(*c.apiFlag) != "" {
		return strings.TrimSpace(*c.apiFlag)
	}
	if cfg := c.configValue(); cfg != nil {
		return strings.TrimSpace(cfg.Paths.APIBind)
	}
	return ""
}

// dialClient probes the daemon API and returns a client when it responds.
func (c *commandContext) dialClient() *apiClient {
	address := c.apiAddress()
	if address == "" {
		return nil
	}
	client := newAPIClient(address)
	if _, err := client.Status(); err != nil {
		return nil
	}
	return client
}

// withCatalog runs fn against the daemon API when one is reachable, and
// falls back to opening the catalog store directly otherwise. Exactly one
// of client and store is non-nil.
func (c *commandContext) withCatalog(fn func(client *apiClient, store *catalog.Store) error) error {
	if client := c.dialClient(); client != nil {
		return fn(client, nil)
	}
	return c.withStore(func(store *catalog.Store) error {
		return fn(nil, store)
	})
}

// withStore always opens the catalog store directly. Mutating commands use
// this path so they work with or without a running daemon.
func (c *commandContext) withStore(fn func(store *catalog.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := catalog.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
