package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	customError "github.com/policycore/billing-engine/pkg/errors"
)

// Detail types announced to unrelated systems (document generation,
// disbursement, notifications).
const (
	DetailStatementReady      = "billing.statement-ready"
	DetailPaymentReceived     = "billing.payment-received"
	DetailPaymentOutOfBalance = "billing.payment-out-of-balance"
	DetailPaymentFailed       = "billing.payment-failed"
	DetailDelinquencyChanged  = "billing.delinquency-status-changed"
	DetailRefundInitiated     = "billing.refund-initiated"
)

// Publisher announces domain events, fire-and-forget.
type Publisher interface {
	Publish(ctx context.Context, detailType string, payload any) error
}

type envelope struct {
	DetailType string `json:"detail_type"`
	Detail     any    `json:"detail"`
}

// RedisPublisher publishes events on a redis pub/sub channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, detailType string, payload any) error {
	body, err := json.Marshal(envelope{DetailType: detailType, Detail: payload})
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", detailType, err)
	}
	if err := p.client.Publish(ctx, p.channel, body).Err(); err != nil {
		return customError.WrapCacheError(err)
	}
	return nil
}
