package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kolohelios/afmbridge-sub001/internal/stream"
)

// InsertStreamEventsJob batch-inserts one request's SSE frames via COPY.
func InsertStreamEventsJob(requestID uuid.UUID, ts time.Time, frames []stream.Frame) WriteJob {
	return WriteJobFunc(func(ctx context.Context, pool *pgxpool.Pool) error {
		rows := make([][]interface{}, len(frames))
		for i, f := range frames {
			rows[i] = []interface{}{
				ts,
				requestID,
				f.Index,
				f.EventType,
				f.RawData,
				f.RawBytes,
			}
		}

		_, err := pool.CopyFrom(ctx,
			pgx.Identifier{"stream_events"},
			[]string{"ts", "request_id", "event_index", "event_type", "data_json", "raw_bytes"},
			pgx.CopyFromRows(rows),
		)
		return err
	})
}
