package integrationtests

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

func setupRabbitMQ(t *testing.T, ctx context.Context) (*messaging.RabbitMQPublisher, *messaging.RabbitMQReceiver) {
	url := setupRabbitMQContainer(t, ctx)

	publisher, err := messaging.NewRabbitMQPublisher(url)
	require.NoError(t, err)
	t.Cleanup(publisher.Close)

	receiver, err := messaging.NewRabbitMQReceiver(url)
	require.NoError(t, err)
	t.Cleanup(receiver.Close)

	return publisher, receiver
}

func receive(t *testing.T, receiver messaging.Reciever, timeout time.Duration) messaging.Task {
	select {
	case task := <-receiver.Tasks():
		return task
	case <-time.After(timeout):
		t.Fatal("Timed out waiting for task")
		return nil
	}
}

func TestRabbitMQ(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	publisher, receiver := setupRabbitMQ(t, ctx)

	t.Run("PublishAndReceiveReportTask", func(t *testing.T) {
		payload := messaging.ReportTaskPayload{ReportId: uuid.New()}
		require.NoError(t, publisher.PublishReportTask(ctx, payload))

		task := receive(t, receiver, 10*time.Second)
		assert.Equal(t, messaging.ReportQueue, task.Type())

		var received messaging.ReportTaskPayload
		require.NoError(t, json.Unmarshal(task.Payload(), &received))
		assert.Equal(t, payload, received)

		require.NoError(t, task.Ack())
	})

	t.Run("NackedTaskIsNotRedelivered", func(t *testing.T) {
		failing := messaging.ReportTaskPayload{ReportId: uuid.New()}
		require.NoError(t, publisher.PublishReportTask(ctx, failing))
		require.NoError(t, receive(t, receiver, 10*time.Second).Nack())

		next := messaging.ReportTaskPayload{ReportId: uuid.New()}
		require.NoError(t, publisher.PublishReportTask(ctx, next))

		task := receive(t, receiver, 10*time.Second)
		var received messaging.ReportTaskPayload
		require.NoError(t, json.Unmarshal(task.Payload(), &received))
		assert.Equal(t, next.ReportId, received.ReportId)
		require.NoError(t, task.Ack())
	})
}
