// Package metrics publishes dispatch counters to CloudWatch.
package metrics

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// Metric names published by the gateway.
const (
	MetricDispatched   = "MethodsDispatched"
	MetricFailed       = "MethodsFailed"
	MetricAccessDenied = "AccessDenied"
)

// CloudWatchClient is the interface for CloudWatch operations.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Publisher publishes metrics to CloudWatch. An empty namespace
// disables publishing.
type Publisher struct {
	client    CloudWatchClient
	namespace string
}

// NewPublisher creates a new Publisher.
func NewPublisher(client CloudWatchClient, namespace string) *Publisher {
	return &Publisher{client: client, namespace: namespace}
}

// Count publishes a counter increment, dimensioned by method name.
func (p *Publisher) Count(ctx context.Context, name, method string) error {
	if p.namespace == "" {
		return nil
	}
	_, err := p.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(p.namespace),
		MetricData: []types.MetricDatum{
			{
				MetricName: aws.String(name),
				Value:      aws.Float64(1),
				Unit:       types.StandardUnitCount,
				Dimensions: []types.Dimension{
					{Name: aws.String("Method"), Value: aws.String(method)},
				},
			},
		},
	})
	return err
}
