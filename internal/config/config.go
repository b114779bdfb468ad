// Package config provides gateway configuration loaded from environment
// variables, with optional SSM Parameter Store overrides for the access
// policy so operators can change it without redeploying.
package config

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/kelseyhightower/envconfig"

	"github.com/inkwell-cms/remote-gateway/internal/remote"
)

// Config holds remote-gateway configuration.
type Config struct {
	// Access policy. RemoteUser defaults to the not-set sentinel, which
	// admits anonymous callers to public methods only.
	RemoteEnabled bool   `envconfig:"REMOTE_ENABLED" default:"true"`
	RemoteUser    string `envconfig:"REMOTE_USER" default:"!!not set!!"`
	UseACL        bool   `envconfig:"USE_ACL" default:"true"`

	// Gateway identity
	Version string `envconfig:"GATEWAY_VERSION" default:"dev"`

	// Storage
	TableName string `envconfig:"DYNAMODB_TABLE"`

	// Identity resolution
	UserPoolID string `envconfig:"COGNITO_USER_POOL_ID"`

	// Observability (empty = disabled)
	MetricNamespace string `envconfig:"METRIC_NAMESPACE"`
	AuditQueueURL   string `envconfig:"AUDIT_QUEUE_URL"`

	// File URL signing
	CloudFrontDomain    string        `envconfig:"CLOUDFRONT_DOMAIN"`
	CloudFrontKeyPairID string        `envconfig:"CLOUDFRONT_KEY_PAIR_ID"`
	SigningKeySecretID  string        `envconfig:"SIGNING_KEY_SECRET_ID"`
	FileBucket          string        `envconfig:"FILE_BUCKET"`
	SignedURLTTL        time.Duration `envconfig:"SIGNED_URL_TTL" default:"15m"`

	// SSM prefix for access-policy overrides (empty = no overrides)
	AccessPolicySSMPrefix string `envconfig:"ACCESS_POLICY_SSM_PREFIX"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// ValidateForServe checks required config when running the gateway.
func (c *Config) ValidateForServe() error {
	if c.TableName == "" {
		return fmt.Errorf("DYNAMODB_TABLE is required")
	}
	if c.SignedURLTTL <= 0 {
		return fmt.Errorf("SIGNED_URL_TTL must be positive")
	}
	return nil
}

// Settings returns the access configuration the dispatcher consumes.
func (c *Config) Settings() remote.Settings {
	return remote.Settings{
		RemoteEnabled: c.RemoteEnabled,
		RemoteUser:    c.RemoteUser,
		UseACL:        c.UseACL,
	}
}

// SSMClient is the interface for SSM Parameter Store reads.
type SSMClient interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// ApplyOverrides overlays the access-policy values with the parameters
// stored under the configured SSM prefix. A parameter that does not
// exist keeps the environment value; any other read failure is an error.
func (c *Config) ApplyOverrides(ctx context.Context, client SSMClient) error {
	if c.AccessPolicySSMPrefix == "" {
		return nil
	}

	if value, ok, err := readParameter(ctx, client, c.AccessPolicySSMPrefix+"/remote-enabled"); err != nil {
		return err
	} else if ok {
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid remote-enabled override %q: %w", value, err)
		}
		c.RemoteEnabled = enabled
	}

	if value, ok, err := readParameter(ctx, client, c.AccessPolicySSMPrefix+"/remote-user"); err != nil {
		return err
	} else if ok {
		c.RemoteUser = value
	}

	if value, ok, err := readParameter(ctx, client, c.AccessPolicySSMPrefix+"/use-acl"); err != nil {
		return err
	} else if ok {
		useACL, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid use-acl override %q: %w", value, err)
		}
		c.UseACL = useACL
	}

	return nil
}

// readParameter retrieves one parameter, reporting absence separately
// from failure.
func readParameter(ctx context.Context, client SSMClient, name string) (string, bool, error) {
	result, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name: aws.String(name),
	})
	if err != nil {
		var notFound *types.ParameterNotFound
		if errors.As(err, &notFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read SSM parameter %s: %w", name, err)
	}
	if result.Parameter == nil || result.Parameter.Value == nil {
		return "", false, nil
	}
	return *result.Parameter.Value, true, nil
}
