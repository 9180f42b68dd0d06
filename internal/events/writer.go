package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Update types appended by the engine.
const (
	VentureCreated   = "venture_created"
	PlayerCreated    = "player_created"
	PlayerJoined     = "player_joined"
	VentureLaunched  = "venture_launched"
	SessionCompleted = "session_completed"
	CEOSelected      = "ceo_selected"
	VentureCompleted = "venture_completed"
	TicketsPurchased = "tickets_purchased"
)

type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

type EventPayload map[string]any

// Append writes one event row inside the caller's transaction so the log
// commits or rolls back with the state change it describes.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, updateType, ventureID, entityKind, entityID, playerID string, payload EventPayload) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	ts := w.Now().UTC().Format(time.RFC3339)
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(ts,update_type,venture_id,entity_kind,entity_id,player_id,payload_json) VALUES (?,?,?,?,?,?,?)`,
		ts, updateType, nullable(ventureID), entityKind, nullable(entityID), playerID, string(data))
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
