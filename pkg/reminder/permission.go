package reminder

import (
	"context"
	"errors"

	"github.com/looplab/fsm"
)

const (
	PermissionDefault  = "default"
	PermissionGranted  = "granted"
	PermissionDenied   = "denied"
	PermissionDisabled = "disabled"

	eventGrant   = "grant"
	eventDeny    = "deny"
	eventDisable = "disable"
)

var ErrPermissionDenied = errors.New("notification permission denied")

func newPermissionFSM(onFirstGrant func(ctx context.Context)) *fsm.FSM {
	granted := false

	return fsm.NewFSM(
		PermissionDefault,
		fsm.Events{
			{Name: eventGrant, Src: []string{PermissionDefault, PermissionDenied, PermissionDisabled, PermissionGranted}, Dst: PermissionGranted},
			{Name: eventDeny, Src: []string{PermissionDefault, PermissionGranted, PermissionDisabled, PermissionDenied}, Dst: PermissionDenied},
			{Name: eventDisable, Src: []string{PermissionGranted, PermissionDisabled}, Dst: PermissionDisabled},
		},
		fsm.Callbacks{
			"enter_" + PermissionGranted: func(ctx context.Context, e *fsm.Event) {
				if granted {
					return
				}
				granted = true
				onFirstGrant(ctx)
			},
		},
	)
}

// firePermissionEvent ignores transitions that are no-ops or not allowed from the current state
func firePermissionEvent(ctx context.Context, machine *fsm.FSM, event string) error {
	err := machine.Event(ctx, event)

	var noTransition fsm.NoTransitionError
	var invalidEvent fsm.InvalidEventError
	if errors.As(err, &noTransition) || errors.As(err, &invalidEvent) {
		return nil
	}

	return err
}
