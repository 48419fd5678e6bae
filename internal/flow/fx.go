package flow

import (
	"github.com/railzwaylabs/plexsource/internal/flow/apiclient"
	"github.com/railzwaylabs/plexsource/internal/flow/repository"
	"github.com/railzwaylabs/plexsource/internal/flow/service"
	"go.uber.org/fx"
)

// APIModule reads flows from the identity backend.
var APIModule = fx.Module("flow.api",
	fx.Provide(apiclient.New),
	fx.Provide(service.New),
)

// LocalModule reads flows from the local database.
var LocalModule = fx.Module("flow.local",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
