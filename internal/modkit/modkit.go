package modkit

import (
	"context"

	phttp "eventsink/internal/platform/net/http"
)

// Module is what main wires: routes, a port bundle for other modules, a name for logs
type Module interface {
	MountRoutes(r phttp.Router)
	Ports() any
	Name() string
}

// Closer is a module with in-flight work to drain before exit
type Closer interface {
	Close(ctx context.Context) error
}
