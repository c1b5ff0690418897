package insteon

import (
	"context"
	"fmt"
)

// maxGroup is the largest ALL-Link group number.
const maxGroup = 255

// SceneRefresher is implemented by modems that can re-read scene membership.
type SceneRefresher interface {
	RefreshScene(ctx context.Context, group int) error
}

// Scene is a modem ALL-Link group.
type Scene struct {
	group     int
	refresher SceneRefresher
}

// NewScene creates a scene for group 0-255. The refresher may be nil.
func NewScene(group int, refresher SceneRefresher) (*Scene, error) {
	if group < 0 || group > maxGroup {
		return nil, fmt.Errorf("%w: %d", ErrInvalidGroup, group)
	}
	return &Scene{group: group, refresher: refresher}, nil
}

// Group returns the group number.
func (s *Scene) Group() int { return s.group }

// SetRefresher attaches or detaches the modem used by Refresh.
func (s *Scene) SetRefresher(r SceneRefresher) { s.refresher = r }

// Refresh asks the modem to re-evaluate scene membership. It returns once
// the request is issued; membership is reported asynchronously by the modem.
//
// Returns ErrNoModemAssigned if no refresher is attached.
func (s *Scene) Refresh(ctx context.Context) error {
	if s.refresher == nil {
		return fmt.Errorf("%w: scene %d", ErrNoModemAssigned, s.group)
	}
	return s.refresher.RefreshScene(ctx, s.group)
}

// String returns a short description for logging.
func (s *Scene) String() string {
	return fmt.Sprintf("scene %d", s.group)
}
