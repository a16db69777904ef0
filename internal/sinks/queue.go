package sinks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"sales-assistant/internal/domain"
)

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Queue publishes each lead as a JSON message for asynchronous follow-up.
type Queue struct {
	client   sqsAPI
	queueURL string
}

func NewQueue(client sqsAPI, queueURL string) (*Queue, error) {
	if client == nil {
		return nil, errors.New("sinks: sqs client must not be nil")
	}
	if queueURL == "" {
		return nil, errors.New("sinks: queue url must not be empty")
	}
	return &Queue{client: client, queueURL: queueURL}, nil
}

func (q *Queue) Name() string { return "queue" }

func (q *Queue) Deliver(ctx context.Context, lead domain.LeadData) (string, error) {
	body, err := json.Marshal(lead)
	if err != nil {
		return "", fmt.Errorf("sinks: marshal lead: %w", err)
	}
	out, err := q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"source": {DataType: aws.String("String"), StringValue: aws.String(lead.Source)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("sinks: send lead to queue: %w", err)
	}
	return "queued " + aws.ToString(out.MessageId), nil
}
