package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
)

const campaignChannel = "campaign_changes"

type fieldChange struct {
	ID    string `json:"id"`
	Field string `json:"field"`
}

// WatchCampaignField subscribes to campaign mutation events and invokes
// handler with the campaign id every time the named field changes. The
// notifications come from a trigger installed by the migrations. The call
// blocks until ctx is done or the listening connection fails; reconnecting
// is the caller's job.
func (s *Store) WatchCampaignField(ctx context.Context, field string, handler func(campaignID string)) error {
	conn, err := s.Pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listen conn: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+campaignChannel); err != nil {
		return fmt.Errorf("listen %s: %w", campaignChannel, err)
	}

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}

		var change fieldChange
		if err := json.Unmarshal([]byte(n.Payload), &change); err != nil {
			log.Printf("campaign change payload invalid: %v", err)
			continue
		}
		if change.ID == "" || change.Field != field {
			continue
		}
		handler(change.ID)
	}
}
