package source

import (
	"github.com/railzwaylabs/plexsource/internal/source/apiclient"
	"github.com/railzwaylabs/plexsource/internal/source/repository"
	"github.com/railzwaylabs/plexsource/internal/source/service"
	"go.uber.org/fx"
)

// APIModule persists sources through the identity backend.
var APIModule = fx.Module("source.api",
	fx.Provide(apiclient.New),
	fx.Provide(service.New),
)

// LocalModule persists sources in the local database.
var LocalModule = fx.Module("source.local",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
