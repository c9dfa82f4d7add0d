package kafka

import (
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func loggerForTests() *logrus.Entry {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	return logger.WithField("component", "test")
}

func TestProducer_SendJSON(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		require.Equal(t, TopicOrderEvents, msg.Topic)
		key, err := msg.Key.Encode()
		require.NoError(t, err)
		require.Equal(t, "42", string(key))
		require.Len(t, msg.Headers, 1)
		return nil
	})

	producer := newProducer(mockProducer, loggerForTests())
	err := producer.SendJSON(TopicOrderEvents, "42", map[string]int{"order_id": 42}, map[string]string{HeaderEventType: "order.created"})
	require.NoError(t, err)
	require.NoError(t, producer.Close())
}

func TestProducer_SendError(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	producer := newProducer(mockProducer, loggerForTests())
	err := producer.Send(TopicOrderEvents, "1", []byte(`{}`), nil)
	require.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, producer.Close())
}

func TestProducer_SendJSONMarshalError(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	producer := newProducer(mockProducer, loggerForTests())

	err := producer.SendJSON(TopicOrderEvents, "1", make(chan int), nil)
	require.Error(t, err)
	require.NoError(t, producer.Close())
}

func TestNewSaramaConfig(t *testing.T) {
	cfg := newSaramaConfig(ProducerConfig{Idempotent: true})
	require.Equal(t, defaultClientID, cfg.ClientID)
	require.Equal(t, sarama.WaitForAll, cfg.Producer.RequiredAcks)
	require.True(t, cfg.Producer.Return.Successes)
	require.True(t, cfg.Producer.Idempotent)
	require.Equal(t, 1, cfg.Net.MaxOpenRequests)

	cfg = newSaramaConfig(ProducerConfig{ClientID: "custom"})
	require.Equal(t, "custom", cfg.ClientID)
	require.False(t, cfg.Producer.Idempotent)
}

func TestNewProducer_NoBrokers(t *testing.T) {
	_, err := NewProducer(ProducerConfig{}, nil)
	require.Error(t, err)
}

func TestProducer_CloseNil(t *testing.T) {
	var producer *Producer
	require.NoError(t, producer.Close())

}
