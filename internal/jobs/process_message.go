package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"pixwebhook/internal/database"
	"pixwebhook/internal/models"
	"pixwebhook/internal/pipeline"
)

// Processor runs one raw message through the pipeline
type Processor interface {
	Process(ctx context.Context, raw []byte) (*pipeline.Result, error)
}

// ProcessMessageHandler creates a job handler for webhook deliveries
func ProcessMessageHandler(p Processor) JobHandler {
	return func(ctx context.Context, job *models.Job, db *database.DB) error {
		// Parse payload
		var payload models.ProcessMessagePayload
		if err := json.Unmarshal([]byte(job.Payload), &payload); err != nil {
			return fmt.Errorf("unmarshal payload: %w", err)
		}
		db.UpdateJobProgress(job.ID, 10)

		result, err := p.Process(ctx, []byte(payload.Message))
		if err != nil {
			return fmt.Errorf("process message: %w", err)
		}

		resultJSON, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		if err := db.CompleteJob(job.ID, string(resultJSON)); err != nil {
			return fmt.Errorf("complete job: %w", err)
		}
		return nil
	}
}
