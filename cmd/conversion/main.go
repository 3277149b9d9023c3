package main

import (
	"log/slog"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/tendant/chi-demo/app"

	"github.com/tendant/simple-image/pkg/simpleimage/api"
	"github.com/tendant/simple-image/pkg/simpleimage/client"
	"github.com/tendant/simple-image/pkg/simpleimage/convert/local"
)

type Config struct {
	RepositoryURL   string `env:"REPOSITORY_URL" env-default:"http://localhost:8080"`
	MaxPayloadBytes int64  `env:"MAX_PAYLOAD_BYTES" env-default:"33554432"`
}

func main() {
	_ = godotenv.Load()

	var config Config
	if err := cleanenv.ReadEnv(&config); err != nil {
		slog.Error("Failed to read configuration", "err", err)
		os.Exit(1)
	}

	handler, err := newConversionHandler(config)
	if err != nil {
		slog.Error("Failed to initialize conversion handler", "err", err)
		os.Exit(1)
	}

	server := app.DefaultApp()

	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)

	server.R.Mount("/conversion", handler.Routes())

	slog.Info("Conversion service starting", "repository", config.RepositoryURL)
	server.Run()
}

// newConversionHandler converts in-process and reads originals for the id
// mode from the repository service
func newConversionHandler(config Config) (*api.ConversionHandler, error) {
	repository, err := client.New(config.RepositoryURL)
	if err != nil {
		return nil, err
	}
	return api.NewConversionHandler(local.New(),
		api.WithOriginalFetcher(repository),
		api.WithMaxPayloadBytes(config.MaxPayloadBytes),
	), nil
}
