package sqs

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"

	"github.com/Dominus-Gray/polaris-analytics/internal/config"
	"github.com/Dominus-Gray/polaris-analytics/internal/domain"
)

// Client relays processed events to an SQS queue so downstream systems can
// subscribe without reading the outbox table.
type Client struct {
	sqs      *sqs.Client
	queueURL string
	log      *zap.Logger
}

// NewClient creates the relay client. A non-empty Endpoint switches to the
// local development path (ElasticMQ) with static dummy credentials.
func NewClient(ctx context.Context, cfg config.SQS, log *zap.Logger) (*Client, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	var clientOpts []func(*sqs.Options)

	if cfg.Endpoint != "" {
		log.Info("Using custom SQS endpoint", zap.String("endpoint", cfg.Endpoint))
		loadOpts = append(loadOpts,
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("dummy", "dummy", "")))
		clientOpts = append(clientOpts, func(o *sqs.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &Client{
		sqs:      sqs.NewFromConfig(awsCfg, clientOpts...),
		queueURL: cfg.QueueURL,
		log:      log,
	}, nil
}

// Publish sends one event envelope, tagged with its type and aggregate so
// consumers can filter on message attributes without parsing the body.
func (c *Client) Publish(ctx context.Context, event domain.Event) error {
	body, err := domain.Encode(event)
	if err != nil {
		return fmt.Errorf("failed to encode event %s: %w", event.EventID(), err)
	}

	_, err = c.sqs.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(c.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"EventType": {
				DataType:    aws.String("String"),
				StringValue: aws.String(event.Type()),
			},
			"AggregateType": {
				DataType:    aws.String("String"),
				StringValue: aws.String(event.AggregateType()),
			},
		},
	})
	if err != nil {
		c.log.Error("Failed to relay event to SQS",
			zap.String("event_id", event.EventID().String()),
			zap.String("event_type", event.Type()),
			zap.Error(err))
		return fmt.Errorf("failed to send message to SQS: %w", err)
	}

	return nil
}
