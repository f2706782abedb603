package sender

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/GabrielNunesIT/log-shipper/internal/config"
	"github.com/GabrielNunesIT/log-shipper/internal/testutil"
	"github.com/GabrielNunesIT/log-shipper/internal/testutil/mocks"
)

func TestKafka_Send(t *testing.T) {
	writer := mocks.NewMessageWriter(t)
	writer.On("WriteMessages", mock.Anything, mock.MatchedBy(func(msgs []kafka.Message) bool {
		if len(msgs) != 2 {
			return false
		}
		var doc map[string]any
		if err := json.Unmarshal(msgs[0].Value, &doc); err != nil {
			return false
		}
		return string(msgs[0].Key) == "logs" &&
			doc["message"] == "first" &&
			doc["source"] == "test" &&
			string(msgs[1].Headers[1].Value) == "2"
	})).Return(nil).Once()

	k := NewKafka(config.KafkaSenderConfig{Topic: "logs", Brokers: []string{"localhost:9092"}}, testutil.NewTestLogger(), WithKafkaWriter(writer))
	assert.Equal(t, "kafka", k.Name())
	require.NoError(t, k.Start(context.Background()))

	res := sendAndWait(t, k, testBatch(testEntry("test", "first"), testEntry("test", "second")))
	assert.Equal(t, StatusSuccess, res.Status)
}

func TestKafka_Stop(t *testing.T) {
	writer := mocks.NewMessageWriter(t)
	writer.On("Close").Return(nil).Once()

	k := NewKafka(config.KafkaSenderConfig{}, testutil.NewTestLogger(), WithKafkaWriter(writer))
	assert.NoError(t, k.Stop(context.Background()))
}

func TestClassifyKafkaError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Status
	}{
		{"network", errors.New("dial tcp: connection refused"), StatusRecoverable},
		{"deadline", context.DeadlineExceeded, StatusRecoverable},
		{"temporary broker error", kafka.LeaderNotAvailable, StatusRecoverable},
		{"wrapped temporary", fmt.Errorf("write: %w", kafka.RequestTimedOut), StatusRecoverable},
		{"authorization", kafka.TopicAuthorizationFailed, StatusFatal},
		{"too large", kafka.MessageSizeTooLarge, StatusFatal},
		{"partial write", kafka.WriteErrors{nil, kafka.MessageSizeTooLarge}, StatusFatal},
		{"partial temporary", kafka.WriteErrors{kafka.NotEnoughReplicas, nil}, StatusRecoverable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := classifyKafkaError(tt.err)
			assert.Equal(t, tt.want, res.Status)
			assert.Error(t, res.Err)
		})
	}
}

func TestKafka_SendFailure(t *testing.T) {
	writer := mocks.NewMessageWriter(t)
	writer.On("WriteMessages", mock.Anything, mock.Anything).Return(kafka.TopicAuthorizationFailed).Once()

	k := NewKafka(config.KafkaSenderConfig{Topic: "logs"}, testutil.NewTestLogger(), WithKafkaWriter(writer))
	res := sendAndWait(t, k, testBatch(testEntry("test", "x")))
	assert.Equal(t, StatusFatal, res.Status)
	assert.ErrorIs(t, res.Err, kafka.TopicAuthorizationFailed)
}
