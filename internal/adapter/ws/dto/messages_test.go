package dto

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/olzhas-a/dispatch-core/internal/domain/models"
	"github.com/olzhas-a/dispatch-core/pkg/uuid"
)

// Every server broadcast must tell clients when the change happened, so
// late-arriving messages can be ordered on the receiving side.
func TestBroadcastMessagesCarryTimestamp(t *testing.T) {
	at := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	requestID := uuid.New().String()

	tests := []struct {
		name string
		msg  any
	}{
		{"status-updated", StatusUpdated{
			Type:      TypeStatusUpdated,
			RequestID: requestID,
			Status:    "CONFIRMED",
			Timestamp: at,
		}},
		{"driver-assigned", DriverAssigned{
			Type:      TypeDriverAssigned,
			RequestID: requestID,
			DriverID:  uuid.New().String(),
			Driver:    models.DriverSnapshot{ID: uuid.New(), Name: "Aruzhan"},
			Timestamp: at,
		}},
		{"new-assignment", NewAssignment{
			Type:      TypeNewAssignment,
			RequestID: requestID,
			Timestamp: at,
		}},
		{"location-updated", LocationUpdated{
			Type:      TypeLocationUpdated,
			RequestID: requestID,
			Lat:       43.25,
			Lng:       76.95,
			Timestamp: at,
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			raw, err := json.Marshal(tc.msg)
			if err != nil {
				t.Fatalf("marshal failed: %v", err)
			}

			var payload map[string]any
			if err := json.Unmarshal(raw, &payload); err != nil {
				t.Fatalf("unmarshal failed: %v", err)
			}

			got, ok := payload["timestamp"].(string)
			if !ok {
				t.Fatalf("payload has no timestamp field: %s", raw)
			}
			if got != at.Format(time.RFC3339) {
				t.Errorf("expected timestamp %s, got %s", at.Format(time.RFC3339), got)
			}
		})
	}
}
