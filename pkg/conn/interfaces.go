package conn

import (
	"context"

	"gateway-console/pkg/api"
)

// Socket is an open push connection. Read blocks until the next frame.
type Socket interface {
	Read(ctx context.Context) ([]byte, error)
	Close() error
}

// Dialer opens a Socket to url.
type Dialer interface {
	Dial(ctx context.Context, url string) (Socket, error)
}

// Handler receives decoded push payloads. Implementations must not block.
type Handler interface {
	HandleDevices(devices []api.Device)
	HandleHealth(health api.Health)
	HandleLinkQuality(snapshot api.LQISnapshot)
	HandleLegacyStatus(status api.StatusUpdate)
}

// Reconciler is implemented by handlers that want a one-shot pull after each
// connection opens. ctx is cancelled by the next open or by shutdown.
type Reconciler interface {
	Reconcile(ctx context.Context)
}
