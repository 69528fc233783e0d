package fleetsync

import (
	"context"

	"github.com/ubus-campus/ubus/pkg/model"
)

// Feed is the remote source of vehicle positions.
// Change notifications carry no payload, they only say that something changed.
type Feed interface {
	FetchAll(ctx context.Context) ([]model.VehiclePosition, error)
	Subscribe(ctx context.Context, onChange func()) (Subscription, error)
}

// Subscription is a live change subscription. Close must be safe to call more than once
// and no onChange call may start after it returns.
type Subscription interface {
	Close()
}
