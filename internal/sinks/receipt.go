package sinks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"sales-assistant/internal/domain"
	"sales-assistant/internal/lead"
)

type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// ReceiptArchive stores the plain-text contact receipt of every lead.
type ReceiptArchive struct {
	client  s3API
	bucket  string
	company lead.Company
}

func NewReceiptArchive(client s3API, bucket string, company lead.Company) (*ReceiptArchive, error) {
	if client == nil {
		return nil, errors.New("sinks: s3 client must not be nil")
	}
	if bucket == "" {
		return nil, errors.New("sinks: receipt bucket must not be empty")
	}
	return &ReceiptArchive{client: client, bucket: bucket, company: company}, nil
}

func (a *ReceiptArchive) Name() string { return "receipt-archive" }

func (a *ReceiptArchive) Deliver(ctx context.Context, l domain.LeadData) (string, error) {
	key := receiptKey(l)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        strings.NewReader(lead.RenderReceipt(l, a.company)),
		ContentType: aws.String("text/plain; charset=utf-8"),
	})
	if err != nil {
		return "", fmt.Errorf("sinks: s3 put %s: %w", key, err)
	}
	return "", nil
}

func receiptKey(l domain.LeadData) string {
	return fmt.Sprintf("receipts/%s/%s.txt", l.Timestamp.UTC().Format("2006-01-02"), l.ID)
}
