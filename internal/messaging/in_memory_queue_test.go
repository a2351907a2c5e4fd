package messaging_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"camqc-backend/internal/messaging"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryQueue(t *testing.T) {
	queue := messaging.NewInMemoryQueue()

	id := uuid.New()
	require.NoError(t, queue.PublishReportTask(context.Background(), messaging.ReportTaskPayload{ReportId: id}))

	select {
	case task := <-queue.Tasks():
		assert.Equal(t, messaging.ReportQueue, task.Type())
		var payload messaging.ReportTaskPayload
		require.NoError(t, json.Unmarshal(task.Payload(), &payload))
		assert.Equal(t, id, payload.ReportId)
		assert.NoError(t, task.Ack())
	case <-time.After(time.Second):
		t.Fatal("task was not delivered")
	}

	queue.Close()
	queue.Close()

	err := queue.PublishReportTask(context.Background(), messaging.ReportTaskPayload{ReportId: id})
	assert.ErrorIs(t, err, messaging.ErrQueueClosed)

	_, ok := <-queue.Tasks()
	assert.False(t, ok)
}

func TestInMemoryQueuePublishRespectsContext(t *testing.T) {
	queue := messaging.NewInMemoryQueue()
	defer queue.Close()

	for i := 0; i < 100; i++ {
		require.NoError(t, queue.PublishReportTask(context.Background(), messaging.ReportTaskPayload{ReportId: uuid.New()}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := queue.PublishReportTask(ctx, messaging.ReportTaskPayload{ReportId: uuid.New()})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
