package main

import (
	"context"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"shotdeck/internal/config"
	"shotdeck/internal/dispatch"
	"shotdeck/internal/generators"
	"shotdeck/internal/media"
	"shotdeck/internal/prompts"
	"shotdeck/internal/services/llm"
	"shotdeck/internal/store"
	"shotdeck/internal/studio"
)

type commandContext struct {
	configFlag *string
	userFlag   *string
	jsonFlag   *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, userFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		userFlag:   userFlag,
		jsonFlag:   jsonFlag,
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

// user returns --user, falling back to the configured default user.
func (c *commandContext) user() string {
	if c.userFlag != nil {
		if user := strings.TrimSpace(*c.userFlag); user != "" {
			return user
		}
	}
	if cfg := c.configValue(); cfg != nil {
		return cfg.Server.DefaultUser
	}
	return ""
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

// withStudio opens the store and hands fn a studio service. Tasks created
// through it are dispatched to Redis when a broker is configured; otherwise a
// running worker finds them by polling.
func (c *commandContext) withStudio(fn func(*studio.Service) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	st, err := store.Open(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	dispatcher := dispatch.New(cfg)
	defer dispatcher.Close()

	svc := studio.New(st,
		studio.WithMedia(media.NewStore(cfg, nil)),
		studio.WithDispatcher(dispatcher),
		studio.WithTaskValidator(generators.Validate),
	)
	return fn(svc)
}

// withPrompts builds the prompt service, preferring the user's stored key.
func (c *commandContext) withPrompts(fn func(*prompts.Service) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	return c.withStudio(func(svc *studio.Service) error {
		keys := func(ctx context.Context, userID string) (string, error) {
			return svc.ResolveAPIKey(ctx, userID, store.ProviderOpenAI)
		}
		return fn(prompts.New(llm.NewClient(llm.ConfigFromApp(cfg)), keys, nil))
	})
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
