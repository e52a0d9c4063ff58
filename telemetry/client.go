// Package telemetry ships motion events to an external dashboard service
// so gesture activity can be reviewed after the fact. The robot works
// fine without it; the controller falls back to a noop recorder.
package telemetry

import (
	"context"
	"time"

	"github.com/calvinmclean/babyapi"

	"github.com/rufuslabs/rufus/controller"
)

type event struct {
	// include NilResource so we don't implement Render/Bind which are not needed
	*babyapi.NilResource

	ID        string    `json:"id,omitempty"`
	Gesture   string    `json:"gesture"`
	Steps     int       `json:"steps"`
	Completed int       `json:"completed"`
	Failure   string    `json:"failure,omitempty"`
	At        time.Time `json:"at"`
}

func (e *event) GetID() string { return e.ID }

// Client records motion events against the dashboard's /events resource.
type Client struct {
	client *babyapi.Client[*event]
}

var _ controller.Recorder = (*Client)(nil)

func NewClient(addr string) *Client {
	return &Client{client: babyapi.NewClient[*event](addr, "/events")}
}

// RecordMotion implements controller.Recorder.
func (c *Client) RecordMotion(ctx context.Context, ev controller.MotionEvent) error {
	_, err := c.client.Post(ctx, &event{
		Gesture:   ev.Gesture,
		Steps:     ev.Steps,
		Completed: ev.Completed,
		Failure:   ev.Failure,
		At:        ev.At,
	})
	return err
}
