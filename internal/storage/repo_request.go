package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RequestRecord struct {
	ID             uuid.UUID
	Timestamp      time.Time
	Model          string
	StatusCode     int
	Success        bool
	ErrorMessage   string
	ResponseTimeMs int
	IsStream       bool
	MaxTokens      int
	ToolCount      int
	StopReason     string
	InputTokens    int
	OutputTokens   int
	TotalTokens    int
}

func InsertRequestJob(r *RequestRecord) WriteJob {
	return WriteJobFunc(func(ctx context.Context, pool *pgxpool.Pool) error {
		_, err := pool.Exec(ctx, `
			INSERT INTO requests (
				id, ts, model, status_code, success, error_message,
				response_time_ms, is_stream, max_tokens, tool_count,
				stop_reason, input_tokens, output_tokens, total_tokens
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
			r.ID, r.Timestamp, nilIfEmpty(r.Model), r.StatusCode, r.Success,
			nilIfEmpty(r.ErrorMessage), r.ResponseTimeMs, r.IsStream,
			r.MaxTokens, r.ToolCount, nilIfEmpty(r.StopReason),
			r.InputTokens, r.OutputTokens, r.TotalTokens,
		)
		return err
	})
}

// UpdateRequestUsageJob backfills usage extracted by the analytics consumer
// from a request's replayed stream.
func UpdateRequestUsageJob(requestID uuid.UUID, model, stopReason string, inputTokens, outputTokens, totalTokens int) WriteJob {
	return WriteJobFunc(func(ctx context.Context, pool *pgxpool.Pool) error {
		_, err := pool.Exec(ctx, `
			UPDATE requests SET
				model = COALESCE($1, model),
				stop_reason = COALESCE($2, stop_reason),
				input_tokens = $3,
				output_tokens = $4,
				total_tokens = $5
			WHERE id = $6`,
			nilIfEmpty(model), nilIfEmpty(stopReason),
			inputTokens, outputTokens, totalTokens, requestID,
		)
		return err
	})
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
