package resolutionlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// NotifyChannel is the name of the NOTIFY channel on which the database announces
// each newly recorded resolution
const NotifyChannel = "resolution_log"

// entryEvent is the JSON payload emitted via NotifyChannel
type entryEvent struct {
	ID        int64     `json:"id"`
	Mode      string    `json:"mode"`
	UserID    string    `json:"user_id"`
	Outcome   string    `json:"outcome"`
	Error     *string   `json:"error"`
	CreatedAt time.Time `json:"created_at"`
}

// Listener follows resolutions as they are recorded, by any server instance
type Listener struct {
	pql *pq.Listener
}

func NewListener(pql *pq.Listener) (*Listener, error) {
	if err := pql.Listen(NotifyChannel); err != nil {
		return nil, err
	}
	return &Listener{pql: pql}, nil
}

// Run calls onEntry for each resolution recorded until ctx is done
func (l *Listener) Run(ctx context.Context, onEntry func(Entry)) error {
	for {
		select {
		case <-ctx.Done():
			return l.pql.Close()
		case notification := <-l.pql.Notify:
			// pq sends nil after re-establishing a dropped connection
			if notification == nil || notification.Channel != NotifyChannel {
				continue
			}
			entry, err := decodeEntry(notification.Extra)
			if err != nil {
				return fmt.Errorf("failed to decode JSON payload from pg event in channel '%s': %w", notification.Channel, err)
			}
			onEntry(entry)
		}
	}
}

func decodeEntry(payload string) (Entry, error) {
	var ev entryEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return Entry{}, err
	}
	entry := Entry{
		ID:        ev.ID,
		Mode:      ev.Mode,
		UserID:    ev.UserID,
		Outcome:   ev.Outcome,
		CreatedAt: ev.CreatedAt,
	}
	if ev.Error != nil {
		entry.Error = sql.NullString{Valid: true, String: *ev.Error}
	}
	return entry, nil
}
