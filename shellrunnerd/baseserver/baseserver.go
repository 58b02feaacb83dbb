package baseserver

import (
	"io"
	"log/slog"

	"github.com/Oudwins/shellrunner/internals/assert"
	"github.com/Oudwins/shellrunner/internals/conf"
	"github.com/Oudwins/shellrunner/internals/env"
	"github.com/Oudwins/shellrunner/internals/logging"
)

type BaseServer struct {
	Config *conf.Config
	Env    *env.EnvStruct
	Logger *slog.Logger
	// LogFile is closed when the daemon exits.
	LogFile io.Closer
}

func New() *BaseServer {
	env := env.Get()
	config := conf.GetConfig()

	logger, logFile, err := logging.New(logging.Options{
		Level:     slog.LevelDebug,
		LogPath:   config.Server.LogPath(),
		AddSource: true,
	})
	assert.AssertNil(err, "[BASESERVER] Failed to initialize logger")
	slog.SetDefault(logger)

	return &BaseServer{
		Config:  config,
		Env:     env,
		Logger:  logger,
		LogFile: logFile,
	}
}
