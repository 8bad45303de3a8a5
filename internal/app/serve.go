package app

import (
	"context"

	"go.uber.org/zap"

	"github.com/zcapi-go/zcapi/internal/web/server"
)

// NewServer creates the HTTP server for the app
func (a *App) NewServer() (*server.Server, error) {
	sc := server.DefaultConfig(a.Handler())
	sc.Address = a.Config.Server.Address()
	sc.Logger = a.Logger.Named("server")

	if a.Config.Server.TLSCert != "" {
		sc.TLS = &server.TLSConfig{
			CertFile: a.Config.Server.TLSCert,
			KeyFile:  a.Config.Server.TLSKey,
		}
	}

	return server.New(sc)
}

// Serve runs the HTTP server until ctx is cancelled or the process is
// signalled, then closes the app
func (a *App) Serve(ctx context.Context) error {
	srv, err := a.NewServer()
	if err != nil {
		return err
	}

	gs := server.NewGracefulShutdown(srv, &server.ShutdownConfig{
		Timeout: a.Config.Server.ShutdownTimeout,
		Logger:  a.Logger.Named("server"),
	})
	gs.RegisterHook(func(ctx context.Context) error {
		a.Logger.Info("closing database", zap.String("driver", a.Config.Database.Driver))
		return a.Close()
	})

	return gs.Run(ctx)
}
