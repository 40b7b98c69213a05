//go:build wireinject
// +build wireinject

package app

import (
	"github.com/google/wire"

	"github.com/elevare/server/internal/infra/config"
)

// InitializeApp creates the application graph using Wire.
func InitializeApp(cfg *config.Config) (*App, func(), error) {
	wire.Build(
		AppSet,
		wire.Struct(new(App), "*"),
	)
	return nil, nil, nil
}
