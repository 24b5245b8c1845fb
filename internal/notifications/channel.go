// Package notifications delivers alert events to configured channels
// and keeps a bounded record of delivery attempts.
package notifications

import (
	"context"

	"github.com/rafique586/cloudence/internal/models"
)

// Channel delivers a single alert event to one destination.
type Channel interface {
	Name() string
	Send(ctx context.Context, event *models.AlertEvent) error
}

// ChannelFunc adapts a function to the Channel interface.
type ChannelFunc struct {
	ChannelName string
	SendFunc    func(ctx context.Context, event *models.AlertEvent) error
}

func (c ChannelFunc) Name() string { return c.ChannelName }

func (c ChannelFunc) Send(ctx context.Context, event *models.AlertEvent) error {
	return c.SendFunc(ctx, event)
}
