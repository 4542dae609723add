package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	pkgerrors "github.com/lingkar-ai/lingkar-backend/pkg/errors"
	"github.com/lingkar-ai/lingkar-backend/pkg/logger"
)

// TriggerMessage is an on-demand scoring request published to the scoring
// topic.
type TriggerMessage struct {
	BorrowerNumber string `json:"borrower_number,omitempty"`
	CircleID       string `json:"circle_id,omitempty"`
}

// Consumer drains on-demand scoring triggers from Pub/Sub.
type Consumer struct {
	subscription *gcppubsub.Subscriber
	service      Service
	logg         *logger.Logger
}

// NewConsumer builds a scoring trigger consumer.
func NewConsumer(subscription *gcppubsub.Subscriber, service Service, logg *logger.Logger) (*Consumer, error) {
	if subscription == nil {
		return nil, errors.New("scoring subscription is required")
	}
	if service == nil {
		return nil, errors.New("scoring service is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Consumer{subscription: subscription, service: service, logg: logg}, nil
}

// Run consumes trigger messages until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return c.subscription.Receive(ctx, func(innerCtx context.Context, msg *gcppubsub.Message) {
		if c.process(innerCtx, msg.Data) {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

// process handles one trigger; the return value reports whether the message
// should be redelivered.
func (c *Consumer) process(ctx context.Context, data []byte) bool {
	var trigger TriggerMessage
	if err := json.Unmarshal(data, &trigger); err != nil {
		c.logg.Warn(ctx, "invalid scoring trigger payload")
		return false
	}

	switch {
	case trigger.BorrowerNumber != "":
		logCtx := c.logg.WithBorrower(ctx, trigger.BorrowerNumber)
		_, err := c.service.ScoreBorrower(ctx, trigger.BorrowerNumber, time.Now().UTC())
		return c.judge(logCtx, err, "borrower scoring trigger failed")

	case trigger.CircleID != "":
		logCtx := c.logg.WithCircle(ctx, trigger.CircleID)
		_, err := c.service.ScoreCircle(ctx, trigger.CircleID, time.Now().UTC())
		return c.judge(logCtx, err, "circle scoring trigger failed")

	default:
		c.logg.Warn(ctx, "scoring trigger names no subject")
		return false
	}
}

// judge decides redelivery: retryable upstream errors are nacked, anything
// else is dropped after logging.
func (c *Consumer) judge(ctx context.Context, err error, msg string) bool {
	if err == nil {
		return false
	}
	c.logg.Error(ctx, msg, err)

	if typed := pkgerrors.As(err); typed != nil {
		return pkgerrors.MetadataFor(typed.Code()).Retryable
	}
	return false
}
