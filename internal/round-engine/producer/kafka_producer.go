package producer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/gorbagame/trash-rounds-poc/pkg/contracts/events"
)

// KafkaPublisher implementa engine.EventPublisher com um writer por tópico.
type KafkaPublisher struct {
	PayoutDue    *kafka.Writer
	PayoutDueDLQ *kafka.Writer
	RoundSettled *kafka.Writer
}

func NewKafkaPublisher(payoutDue, payoutDueDLQ, roundSettled *kafka.Writer) *KafkaPublisher {
	return &KafkaPublisher{PayoutDue: payoutDue, PayoutDueDLQ: payoutDueDLQ, RoundSettled: roundSettled}
}

// PublishPayoutDue usa o WagerID como chave: mesma aposta sempre cai na
// mesma partição, preservando a ordem de re-drives.
func (p *KafkaPublisher) PublishPayoutDue(ctx context.Context, e events.PayoutDue) error {
	b, _ := json.Marshal(e)
	return p.PayoutDue.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.WagerID),
		Value: b,
		Time:  time.Now(),
	})
}

// PublishPayoutDueDLQ grava o payout_due que o tópico principal recusou.
func (p *KafkaPublisher) PublishPayoutDueDLQ(ctx context.Context, e events.PayoutDue) error {
	b, _ := json.Marshal(e)
	return p.PayoutDueDLQ.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.WagerID),
		Value: b,
		Time:  time.Now(),
	})
}

func (p *KafkaPublisher) PublishRoundSettled(ctx context.Context, e events.RoundSettled) error {
	b, _ := json.Marshal(e)
	return p.RoundSettled.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.RoundID),
		Value: b,
		Time:  time.Now(),
	})
}
