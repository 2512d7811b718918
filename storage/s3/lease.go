package s3

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ErrLeaseHeld is returned when another builder already holds the
// lease for a dataset directory.
var ErrLeaseHeld = errors.New("build lease already held")

// DDBClient is the interface for the DynamoDB operations the lease
// needs.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DDBLease coordinates exclusive dataset builds on object storage.
//
// S3 cannot atomically fail a second writer racing for the same
// version directory, so the lease uses a DynamoDB conditional put on
// the directory key: whoever wins the conditional write owns the
// build, everyone else fails fast with ErrLeaseHeld.
//
// Table schema:
//   - Partition key: data_dir (string) - the dataset version directory
//
// Create table with:
//
//	aws dynamodb create-table \
//	  --table-name shardset-builds \
//	  --attribute-definitions AttributeName=data_dir,AttributeType=S \
//	  --key-schema AttributeName=data_dir,KeyType=HASH \
//	  --billing-mode PAY_PER_REQUEST
type DDBLease struct {
	client    DDBClient
	tableName string
	owner     string
}

// NewDDBLease creates a DynamoDB-backed build lease. owner is an
// arbitrary identifier for diagnostics (hostname, job id).
func NewDDBLease(client DDBClient, tableName, owner string) *DDBLease {
	return &DDBLease{
		client:    client,
		tableName: tableName,
		owner:     owner,
	}
}

// Acquire claims the lease for a dataset directory. It fails fast
// with ErrLeaseHeld if another builder holds it.
func (l *DDBLease) Acquire(ctx context.Context, dataDir string) error {
	_, err := l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(l.tableName),
		Item: map[string]types.AttributeValue{
			"data_dir": &types.AttributeValueMemberS{Value: dataDir},
			"owner":    &types.AttributeValueMemberS{Value: l.owner},
		},
		ConditionExpression: aws.String("attribute_not_exists(data_dir)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return fmt.Errorf("%w: %s", ErrLeaseHeld, dataDir)
		}
		return fmt.Errorf("acquire build lease: %w", err)
	}
	return nil
}

// Release gives the lease back. Releasing an unheld lease is not an
// error.
func (l *DDBLease) Release(ctx context.Context, dataDir string) error {
	_, err := l.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(l.tableName),
		Key: map[string]types.AttributeValue{
			"data_dir": &types.AttributeValueMemberS{Value: dataDir},
		},
	})
	if err != nil {
		return fmt.Errorf("release build lease: %w", err)
	}
	return nil
}
