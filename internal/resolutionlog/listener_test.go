package resolutionlog

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func Test_decodeEntry(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    Entry
		wantErr bool
	}{
		{
			"resolved entry",
			`{"id":7,"mode":"authenticated","user_id":"u1","outcome":"resolved","error":null,"created_at":"2024-06-01T12:00:00.25+00:00"}`,
			Entry{
				ID:        7,
				Mode:      "authenticated",
				UserID:    "u1",
				Outcome:   OutcomeResolved,
				CreatedAt: time.Date(2024, 6, 1, 12, 0, 0, 250_000_000, time.UTC),
			},
			false,
		},
		{
			"failed entry carries its error",
			`{"id":8,"mode":"guest-new","user_id":"","outcome":"failed","error":"backend unavailable","created_at":"2024-06-01T12:00:01+00:00"}`,
			Entry{
				ID:        8,
				Mode:      "guest-new",
				Outcome:   OutcomeFailed,
				Error:     sql.NullString{Valid: true, String: "backend unavailable"},
				CreatedAt: time.Date(2024, 6, 1, 12, 0, 1, 0, time.UTC),
			},
			false,
		},
		{
			"malformed payload",
			`{"id":"nope"`,
			Entry{},
			true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeEntry(tt.payload)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.True(t, tt.want.CreatedAt.Equal(got.CreatedAt))
			got.CreatedAt = tt.want.CreatedAt
			assert.Equal(t, tt.want, got)
		})
	}
}
