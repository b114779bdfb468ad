package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	lambdasvc "github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-lambda-go/otellambda"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-lambda-go/otellambda/xrayconfig"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
	"go.opentelemetry.io/otel"

	"github.com/inkwell-cms/remote-gateway/internal/audit"
	"github.com/inkwell-cms/remote-gateway/internal/config"
	"github.com/inkwell-cms/remote-gateway/internal/corehandlers"
	"github.com/inkwell-cms/remote-gateway/internal/filesign"
	"github.com/inkwell-cms/remote-gateway/internal/identity"
	"github.com/inkwell-cms/remote-gateway/internal/jsonrpc"
	"github.com/inkwell-cms/remote-gateway/internal/lambdaplugin"
	"github.com/inkwell-cms/remote-gateway/internal/logging"
	"github.com/inkwell-cms/remote-gateway/internal/metrics"
	"github.com/inkwell-cms/remote-gateway/internal/remote"
	"github.com/inkwell-cms/remote-gateway/internal/store"
	"github.com/inkwell-cms/remote-gateway/internal/tracing"
)

var logger = logging.New()

// Response is the API Gateway proxy response
type Response struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body"`
}

// PluginSource supplies the dispatcher's plugin collaborators.
type PluginSource interface {
	remote.PluginLoader
	remote.PluginLister
	CustomCalls() remote.CustomCallHook
}

// IdentityResolver resolves the caller from the incoming request.
type IdentityResolver interface {
	FromRequest(ctx context.Context, request events.APIGatewayProxyRequest) (remote.Identity, error)
}

// Auditor records dispatched calls.
type Auditor interface {
	RecordCall(ctx context.Context, method, user string, errorCode int)
}

// MetricsPublisher counts dispatched calls.
type MetricsPublisher interface {
	Count(ctx context.Context, name, method string) error
}

// Dependencies for handler (injectable for testing)
type Dependencies struct {
	Plugins  PluginSource
	Identity IdentityResolver
	Audit    Auditor
	Metrics  MetricsPublisher
	Signer   filesign.FileSigner
	Config   *config.Config
}

var deps *Dependencies

// handler processes one JSON-RPC request over API Gateway. Every request
// gets a fresh dispatch facade so registry caches never outlive the
// request context.
func handler(ctx context.Context, request events.APIGatewayProxyRequest) (Response, error) {
	ctx, span := tracing.StartHandlerSpan(ctx, "RemoteApiHandler",
		tracing.Function("remote-api"),
		tracing.RequestID(request.RequestContext.RequestID),
	)
	defer span.End()

	caller, err := deps.Identity.FromRequest(ctx, request)
	if err != nil {
		logger.WarnContext(ctx, "Failed to resolve caller identity",
			slog.String("request_id", request.RequestContext.RequestID),
			slog.String("error", err.Error()),
		)
		return Response{
			StatusCode: 401,
			Headers:    map[string]string{"Content-Type": "application/json"},
			Body:       `{"error":"Unauthorized","message":"Missing or invalid authentication"}`,
		}, nil
	}
	if caller.User != "" {
		span.SetAttributes(tracing.User(caller.User))
	}

	api := newDispatcher(ctx, caller)

	ctx = lambdaplugin.WithCallContext(ctx, lambdaplugin.CallContext{
		RequestID: request.RequestContext.RequestID,
		User:      caller.User,
		Groups:    caller.Groups,
	})

	body := jsonrpc.Process(ctx, []byte(request.Body), &dispatchCaller{
		api:  api,
		user: caller.User,
	})
	if body == nil {
		return Response{
			StatusCode: 204,
			Headers:    map[string]string{"Content-Type": "application/json"},
		}, nil
	}

	logger.InfoContext(ctx, "Remote request completed",
		slog.String("request_id", request.RequestContext.RequestID),
		slog.String("user", caller.User),
	)

	return Response{
		StatusCode: 200,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}, nil
}

// newDispatcher builds the per-request dispatch facade.
func newDispatcher(ctx context.Context, caller remote.Identity) *remote.Api {
	var registry *remote.Registry
	registry = remote.NewRegistry(func() remote.CoreProvider {
		return corehandlers.NewProvider(deps.Config.Version, registry, caller)
	}, deps.Plugins, deps.Plugins, deps.Plugins.CustomCalls())

	access := remote.NewAccessChecker(deps.Config.Settings(), caller, nil)
	api := remote.New(registry, access)
	api.SetDateTransformation(dateTransform)
	if deps.Signer != nil {
		api.SetFileTransformation(filesign.Transformer(ctx, deps.Signer))
	}
	return api
}

// dispatchCaller adapts the dispatch facade to the wire layer, adding
// the per-call span, audit event and metrics.
type dispatchCaller struct {
	api  *remote.Api
	user string
}

func (c *dispatchCaller) Call(ctx context.Context, method string, args []any) (any, error) {
	ctx, span := tracing.StartDispatchSpan(ctx, method)
	defer span.End()

	result, err := c.api.Call(ctx, method, args)

	errorCode := 0
	if err != nil {
		errorCode = jsonrpc.FromError(err).Code
		tracing.RecordError(span, err)
		logger.WarnContext(ctx, "Dispatch failed",
			slog.String("method", method),
			slog.Int("code", errorCode),
			slog.String("error", err.Error()),
		)
	}

	deps.Audit.RecordCall(ctx, method, c.user, errorCode)
	recordMetrics(ctx, method, err)

	if err != nil {
		return nil, err
	}
	return c.api.ToFile(c.api.ToDate(result)), nil
}

func recordMetrics(ctx context.Context, method string, err error) {
	name := metrics.MetricDispatched
	if err != nil {
		name = metrics.MetricFailed
		var accessErr *remote.AccessDeniedError
		if errors.As(err, &accessErr) {
			name = metrics.MetricAccessDenied
		}
	}
	if metricErr := deps.Metrics.Count(ctx, name, method); metricErr != nil {
		logger.WarnContext(ctx, "Failed to publish metric",
			slog.String("metric", name),
			slog.String("error", metricErr.Error()),
		)
	}
}

// dateTransform renders date-kind values as RFC3339 strings.
func dateTransform(value any) any {
	switch v := value.(type) {
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	default:
		return value
	}
}

// newFileSigner picks the signing backend: CloudFront when a
// distribution is configured, S3 presigning when only a bucket is, nil
// when neither.
func newFileSigner(ctx context.Context, cfg *config.Config, secrets *secretsmanager.Client, s3Client *s3.Client) (filesign.FileSigner, error) {
	if cfg.CloudFrontDomain != "" {
		reader := filesign.NewSecretsManagerReader(secrets)
		privateKey, err := reader.GetPrivateKey(ctx, cfg.SigningKeySecretID)
		if err != nil {
			return nil, err
		}
		return filesign.NewCloudFrontSigner(cfg.CloudFrontDomain, cfg.CloudFrontKeyPairID, privateKey, cfg.SignedURLTTL)
	}
	if cfg.FileBucket != "" {
		return filesign.NewS3Signer(s3.NewPresignClient(s3Client), cfg.FileBucket, cfg.SignedURLTTL), nil
	}
	return nil, nil
}

func main() {
	ctx := context.Background()

	tp, err := tracing.Init(ctx)
	if err != nil {
		logger.Error("FATAL: Failed to initialize tracer provider",
			slog.String("error", err.Error()),
		)
		panic(err)
	}
	otel.SetTracerProvider(tp)

	ctx, coldStartSpan := tracing.StartColdStartSpan(ctx, "remote-api")
	defer coldStartSpan.End()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("FATAL: Failed to load configuration",
			slog.String("error", err.Error()),
		)
		panic(err)
	}
	if err := cfg.ValidateForServe(); err != nil {
		logger.Error("FATAL: Invalid configuration",
			slog.String("error", err.Error()),
		)
		panic(err)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		logger.Error("FATAL: Failed to load AWS config",
			slog.String("error", err.Error()),
		)
		panic(err)
	}
	otelaws.AppendMiddlewares(&awsCfg.APIOptions)

	if err := cfg.ApplyOverrides(ctx, ssm.NewFromConfig(awsCfg)); err != nil {
		logger.Error("FATAL: Failed to apply SSM overrides",
			slog.String("error", err.Error()),
		)
		panic(err)
	}

	storeClient := store.NewClientFromConfig(awsCfg, cfg.TableName)
	loader := lambdaplugin.NewLoader(storeClient, lambdasvc.NewFromConfig(awsCfg))

	signer, err := newFileSigner(ctx, cfg, secretsmanager.NewFromConfig(awsCfg), s3.NewFromConfig(awsCfg))
	if err != nil {
		logger.Error("FATAL: Failed to initialize file signer",
			slog.String("error", err.Error()),
		)
		panic(err)
	}

	deps = &Dependencies{
		Plugins:  loader,
		Identity: identity.NewResolver(cognitoidentityprovider.NewFromConfig(awsCfg), cfg.UserPoolID),
		Audit:    audit.NewPublisher(sqs.NewFromConfig(awsCfg), cfg.AuditQueueURL, logger),
		Metrics:  metrics.NewPublisher(cloudwatch.NewFromConfig(awsCfg), cfg.MetricNamespace),
		Signer:   signer,
		Config:   cfg,
	}

	lambda.Start(otellambda.InstrumentHandler(handler, xrayconfig.WithRecommendedOptions(tp)...))
}
