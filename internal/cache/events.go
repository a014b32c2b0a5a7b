package cache

import (
	"context"
	"encoding/json"
	"fmt"
)

// ResetChannel carries catalog reset events between castvault processes.
const ResetChannel = KeyPrefix + "events:reset"

// ResetEvent announces that Origin rebuilt the catalog for Ref.
type ResetEvent struct {
	Ref    string `json:"ref"`
	Origin string `json:"origin"`
	JobID  string `json:"job_id,omitempty"`
}

// PublishReset broadcasts ev to every subscriber of ResetChannel.
func PublishReset(ctx context.Context, r *Redis, ev ResetEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("reset event marshal: %w", err)
	}
	if err := r.client.Publish(ctx, ResetChannel, data).Err(); err != nil {
		return fmt.Errorf("publish reset: %w", err)
	}
	return nil
}

// SubscribeResets calls fn for every reset event until ctx is done. It
// returns an error only when the subscription cannot be established.
// Undecodable messages are skipped.
func SubscribeResets(ctx context.Context, r *Redis, fn func(ResetEvent)) error {
	sub := r.client.Subscribe(ctx, ResetChannel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", ResetChannel, err)
	}
	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			var ev ResetEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				continue
			}
			fn(ev)
		}
	}
}
