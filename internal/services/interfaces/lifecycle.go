// Package serviceinterfaces defines service interfaces shared by the container and the services it manages.
package serviceinterfaces

import (
	"context"
)

// Lifecycle defines the interface for services that need lifecycle management
type Lifecycle interface {
	// Startup is called once the service is wired, before it receives requests
	Startup(ctx context.Context) error

	// Shutdown is called when the service should release what Startup acquired
	Shutdown(ctx context.Context) error

	// IsReady returns whether the service is ready to handle requests
	IsReady() bool
}
