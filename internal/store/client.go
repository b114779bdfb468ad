// Package store persists the extension system's registration records in
// DynamoDB: plugin records carrying each plugin's exposed method listing
// and invoke target, and custom-call alias records.
package store

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
)

// Key prefixes for single-table design
const (
	PKPrefixPlugin     = "PLUGIN#"
	PKPrefixCustomCall = "CUSTOMCALL#"
)

// DynamoDBClient defines the interface for DynamoDB operations
type DynamoDBClient interface {
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// Client wraps DynamoDB operations with OTel tracing
type Client struct {
	ddb       DynamoDBClient
	tableName string
}

// NewClient creates a new DynamoDB client with OTel instrumentation
func NewClient(ctx context.Context, tableName string) (*Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Add OTel instrumentation for X-Ray tracing
	otelaws.AppendMiddlewares(&cfg.APIOptions)

	return NewClientFromConfig(cfg, tableName), nil
}

// NewClientFromConfig creates a client from an already-loaded AWS config
func NewClientFromConfig(cfg aws.Config, tableName string) *Client {
	return &Client{
		ddb:       dynamodb.NewFromConfig(cfg),
		tableName: tableName,
	}
}

// NewClientWithDB creates a client around an existing DynamoDB client.
// This is primarily for testing.
func NewClientWithDB(ddb DynamoDBClient, tableName string) *Client {
	return &Client{ddb: ddb, tableName: tableName}
}

// QueryByPK returns all items in the given partition, following
// pagination until the partition is exhausted.
func (c *Client) QueryByPK(ctx context.Context, pk string) ([]map[string]types.AttributeValue, error) {
	keyCond := expression.Key("pk").Equal(expression.Value(pk))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	var items []map[string]types.AttributeValue
	var startKey map[string]types.AttributeValue
	for {
		output, err := c.ddb.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(c.tableName),
			KeyConditionExpression:    expr.KeyCondition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return nil, err
		}

		items = append(items, output.Items...)
		if output.LastEvaluatedKey == nil {
			break
		}
		startKey = output.LastEvaluatedKey
	}

	return items, nil
}

// putItem marshals and writes a single record
func (c *Client) putItem(ctx context.Context, item map[string]types.AttributeValue) error {
	_, err := c.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item:      item,
	})
	return err
}
