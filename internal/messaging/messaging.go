package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	ReportQueue     = "report_queue"
	RetryDelay      = 5 * time.Second
	MaxConnectRetry = 5
)

// Task is one delivery from a queue. Exactly one of Ack, Nack or Reject is
// called per task.
type Task interface {
	Type() string
	Payload() []byte

	Ack() error
	// Nack marks a task that was understood but could not be processed.
	Nack() error
	// Reject marks a malformed or unknown task.
	Reject() error
}

// ReportTaskPayload asks a worker to render the report with ReportId. Attempt
// counts previous failed runs and is zero on the first delivery.
type ReportTaskPayload struct {
	ReportId uuid.UUID
	Attempt  int `json:",omitempty"`
}

// Retry returns the payload for the next attempt, or false once maxAttempts
// runs have been made.
func (p ReportTaskPayload) Retry(maxAttempts int) (ReportTaskPayload, bool) {
	if p.Attempt+1 >= maxAttempts {
		return p, false
	}
	return ReportTaskPayload{ReportId: p.ReportId, Attempt: p.Attempt + 1}, true
}

func DecodeReportTask(task Task) (ReportTaskPayload, error) {
	var payload ReportTaskPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("invalid report task payload: %w", err)
	}
	if payload.ReportId == uuid.Nil {
		return payload, fmt.Errorf("report task has no report id")
	}
	return payload, nil
}

type Publisher interface {
	PublishReportTask(ctx context.Context, payload ReportTaskPayload) error
	Close()
}

// Reciever hands out tasks until Close. The channel is not closed by every
// implementation, so consumers also watch their own stop signal.
type Reciever interface {
	Tasks() <-chan Task
	Close()
}
