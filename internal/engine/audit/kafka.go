package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/intentcore/server/internal/engine/model"
	logx "github.com/intentcore/server/pkg/logger"
)

// KafkaSink publishes one message per finalized result, keyed by request id
// so replays of the same request land on the same partition.
type KafkaSink struct {
	writer *kafka.Writer
}

func NewKafkaSink(cfg model.AuditConfig) *KafkaSink {
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(cfg.Brokers...),
			Topic:    cfg.Topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

func (s *KafkaSink) Record(ctx context.Context, result *model.ReasoningResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal reasoning result: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(result.RequestID),
		Value: data,
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write audit message: %w", err)
	}

	logx.Debug().
		Str("request_id", result.RequestID).
		Str("path_taken", string(result.PathTaken)).
		Msg("Audit record published")
	return nil
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
