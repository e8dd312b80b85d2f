package server

import (
	"github.com/raysh454/offerlens/internal/app"
	"github.com/raysh454/offerlens/internal/logging"
)

type Config struct {
	// ListenAddr is the HTTP listen address for the API server.
	ListenAddr string

	AppConfig *app.Config
	Logger    logging.Logger

	// Orchestrator, when set, is used instead of building one from AppConfig.
	Orchestrator *app.Orchestrator
}
