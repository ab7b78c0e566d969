package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/soypete/calbot/pkg/calcom"
	"github.com/soypete/calbot/pkg/chat"
	"github.com/soypete/calbot/pkg/config"
	"github.com/soypete/calbot/pkg/llm"
	"github.com/soypete/calbot/pkg/timectx"
	"github.com/soypete/calbot/pkg/tools"
)

// app holds the wired-together collaborators shared by the commands.
type app struct {
	cfg      *config.Config
	log      zerolog.Logger
	adapter  *calcom.Adapter
	backend  llm.Backend
	registry *tools.Registry
	clock    *timectx.Provider
}

// buildApp loads configuration and wires the stack. needModel controls
// whether a model API key is required: the direct commands (bookings,
// event-types) work without one.
func buildApp(cmd *cobra.Command, needModel bool) (*app, error) {
	configPath, _ := cmd.Flags().GetString("config")

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := newLogger(cfg)

	if cfg.CalCom.APIKey == "" {
		return nil, fmt.Errorf("no Cal.com API key: set CALCOM_API_KEY or calcom.api_key in the config file")
	}

	client := calcom.NewClient(calcom.ClientConfig{
		APIKey:    cfg.CalCom.APIKey,
		BaseURLV2: cfg.CalCom.BaseURLV2,
		BaseURLV1: cfg.CalCom.BaseURLV1,
		Timeout:   cfg.CalCom.Timeout(),
		Logger:    logger,
	})
	adapter := calcom.NewAdapter(client, cfg.CalCom.DefaultTZ, logger)
	clock := timectx.NewProvider()

	a := &app{
		cfg:     cfg,
		log:     logger,
		adapter: adapter,
		clock:   clock,
	}

	if needModel {
		if cfg.Model.APIKey == "" {
			return nil, fmt.Errorf("no model API key: set OPENAI_API_KEY or model.api_key in the config file")
		}
		backend, err := llm.NewOpenAIClient(llm.OpenAIConfig{
			APIKey:     cfg.Model.APIKey,
			BaseURL:    cfg.Model.BaseURL,
			Model:      cfg.Model.Name,
			MaxRetries: cfg.Model.MaxRetries,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		a.backend = backend

		registry := tools.NewRegistry()
		err = tools.RegisterScheduling(registry, tools.Deps{
			Adapter:           adapter,
			Clock:             clock,
			Logger:            logger,
			AttendeeName:      cfg.Attendee.Name,
			AttendeeEmail:     cfg.Attendee.Email,
			DefaultTZ:         cfg.CalCom.DefaultTZ,
			PinnedEventTypeID: cfg.CalCom.EventTypeID,
		})
		if err != nil {
			return nil, err
		}
		a.registry = registry
	}

	return a, nil
}

// newSession builds a fresh conversation over the app's collaborators.
func (a *app) newSession() *chat.Session {
	return chat.NewSession(chat.Config{
		Backend:       a.backend,
		Dispatcher:    tools.NewDispatcher(a.registry, a.log),
		Registry:      a.registry,
		Clock:         a.clock,
		Adapter:       a.adapter,
		Temperature:   a.cfg.Model.Temperature,
		AttendeeEmail: a.cfg.Attendee.Email,
		Logger:        a.log,
	})
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Debug.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if cfg.Debug.Enabled {
		level = zerolog.DebugLevel
	}
	writer := zerolog.ConsoleWriter{Out: os.Stderr}
	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}
