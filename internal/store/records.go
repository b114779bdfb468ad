package store

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
)

// MethodRecord describes one exposed method in a plugin's registration.
type MethodRecord struct {
	// ImplName is the handler name the plugin expects in the invocation
	// payload. Empty means the registered method name is used as-is.
	ImplName string `dynamodbav:"implName,omitempty"`
	// Args holds the declared parameter type tags; the length bounds the
	// caller-supplied argument count.
	Args   []string `dynamodbav:"args"`
	Return string   `dynamodbav:"return,omitempty"`
	Public bool     `dynamodbav:"public,omitempty"`
	// InvokeTarget is the Lambda function handling this method.
	InvokeTarget string `dynamodbav:"invokeTarget"`
}

// PluginRecord represents a plugin registration
type PluginRecord struct {
	PK           string                  `dynamodbav:"pk"`
	SK           string                  `dynamodbav:"sk"`
	PluginName   string                  `dynamodbav:"pluginName"`
	Methods      map[string]MethodRecord `dynamodbav:"methods"`
	RegisteredAt string                  `dynamodbav:"registeredAt"`
	Version      string                  `dynamodbav:"version"`
}

// CustomCallRecord maps an external call alias to a plugin method
type CustomCallRecord struct {
	PK         string `dynamodbav:"pk"`
	SK         string `dynamodbav:"sk"`
	CallName   string `dynamodbav:"callName"`
	PluginName string `dynamodbav:"pluginName"`
	MethodName string `dynamodbav:"methodName"`
}

// ListPlugins loads all plugin registrations.
func (c *Client) ListPlugins(ctx context.Context) ([]PluginRecord, error) {
	items, err := c.QueryByPK(ctx, PKPrefixPlugin)
	if err != nil {
		return nil, fmt.Errorf("failed to query plugins: %w", err)
	}

	records := make([]PluginRecord, 0, len(items))
	for _, item := range items {
		var record PluginRecord
		if err := attributevalue.UnmarshalMap(item, &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal plugin record: %w", err)
		}
		records = append(records, record)
	}

	return records, nil
}

// ListCustomCalls loads all custom-call alias registrations.
func (c *Client) ListCustomCalls(ctx context.Context) ([]CustomCallRecord, error) {
	items, err := c.QueryByPK(ctx, PKPrefixCustomCall)
	if err != nil {
		return nil, fmt.Errorf("failed to query custom calls: %w", err)
	}

	records := make([]CustomCallRecord, 0, len(items))
	for _, item := range items {
		var record CustomCallRecord
		if err := attributevalue.UnmarshalMap(item, &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal custom call record: %w", err)
		}
		records = append(records, record)
	}

	return records, nil
}

// RegisterPlugin upserts a plugin registration record.
func (c *Client) RegisterPlugin(ctx context.Context, name, version string, methods map[string]MethodRecord) error {
	record := PluginRecord{
		PK:           PKPrefixPlugin,
		SK:           PKPrefixPlugin + name,
		PluginName:   name,
		Methods:      methods,
		RegisteredAt: time.Now().UTC().Format(time.RFC3339),
		Version:      version,
	}

	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("failed to marshal plugin record: %w", err)
	}

	return c.putItem(ctx, item)
}

// RegisterCustomCall upserts a custom-call alias record.
func (c *Client) RegisterCustomCall(ctx context.Context, call, plugin, method string) error {
	record := CustomCallRecord{
		PK:         PKPrefixCustomCall,
		SK:         PKPrefixCustomCall + call,
		CallName:   call,
		PluginName: plugin,
		MethodName: method,
	}

	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("failed to marshal custom call record: %w", err)
	}

	return c.putItem(ctx, item)
}
