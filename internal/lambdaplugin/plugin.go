// Package lambdaplugin implements the dispatcher's plugin collaborator
// contracts on AWS: plugins are registered in the gateway table and
// their methods are invoked as Lambda functions.
package lambdaplugin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"

	"github.com/inkwell-cms/remote-gateway/internal/remote"
	"github.com/inkwell-cms/remote-gateway/internal/store"
	"github.com/inkwell-cms/remote-gateway/pkg/plugincontract"
)

// LambdaClient defines the interface for Lambda operations
type LambdaClient interface {
	Invoke(ctx context.Context, params *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

// CallContext carries per-request data forwarded to plugin handlers.
type CallContext struct {
	RequestID string
	User      string
	Groups    []string
}

type callContextKey struct{}

// WithCallContext attaches the per-request call context.
func WithCallContext(ctx context.Context, cc CallContext) context.Context {
	return context.WithValue(ctx, callContextKey{}, cc)
}

// CallContextFrom extracts the call context, zero-valued when absent.
func CallContextFrom(ctx context.Context) CallContext {
	cc, _ := ctx.Value(callContextKey{}).(CallContext)
	return cc
}

// Plugin exposes one registered plugin's methods as descriptors whose
// handlers invoke the plugin's Lambda function.
type Plugin struct {
	name    string
	methods map[string]store.MethodRecord
	client  LambdaClient
}

// NewPlugin creates a plugin from its registration record.
func NewPlugin(record store.PluginRecord, client LambdaClient) *Plugin {
	return &Plugin{
		name:    record.PluginName,
		methods: record.Methods,
		client:  client,
	}
}

// Methods builds the descriptor map from the registration record.
func (p *Plugin) Methods(ctx context.Context) (map[string]*remote.MethodDescriptor, error) {
	descriptors := make(map[string]*remote.MethodDescriptor, len(p.methods))
	for name, record := range p.methods {
		implName := record.ImplName
		if implName == "" {
			implName = name
		}
		target := record.InvokeTarget
		if target == "" {
			return nil, fmt.Errorf("plugin %s method %s has no invoke target", p.name, name)
		}
		descriptors[name] = &remote.MethodDescriptor{
			ImplName: implName,
			Args:     record.Args,
			Return:   record.Return,
			Public:   record.Public,
			Handler: func(ctx context.Context, args remote.Args) (any, error) {
				return p.invoke(ctx, implName, target, args)
			},
		}
	}
	return descriptors, nil
}

// invoke calls the plugin Lambda and translates its structured failures
// into the dispatcher taxonomy. An argument shortfall reported by the
// plugin surfaces as the same sentinel a local handler would use.
func (p *Plugin) invoke(ctx context.Context, method, target string, args remote.Args) (any, error) {
	cc := CallContextFrom(ctx)
	payload, err := json.Marshal(plugincontract.InvocationRequest{
		RequestID: cc.RequestID,
		Plugin:    p.name,
		Method:    method,
		Args:      args,
		User:      cc.User,
		Groups:    cc.Groups,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	output, err := p.client.Invoke(ctx, &lambda.InvokeInput{
		FunctionName: aws.String(target),
		Payload:      payload,
	})
	if err != nil {
		return nil, fmt.Errorf("lambda invocation failed: %w", err)
	}
	if output.FunctionError != nil {
		return nil, fmt.Errorf("plugin handler failed: %s", *output.FunctionError)
	}

	var response plugincontract.InvocationResponse
	if err := json.Unmarshal(output.Payload, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if response.Error != nil {
		if response.Error.Kind == plugincontract.ErrorKindMissingArgs {
			return nil, fmt.Errorf("%s: %w", response.Error.Message, remote.ErrMissingArgument)
		}
		code := response.Error.Code
		if code == 0 {
			code = remote.CodeInternalError
		}
		return nil, remote.NewRemoteError(code, response.Error.Message)
	}

	return response.Result, nil
}
