// Package filesign produces signed download URLs for file values leaving
// the gateway. CloudFront signing is used when a distribution is
// configured; otherwise URLs are presigned directly against S3.
package filesign

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/feature/cloudfront/sign"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/inkwell-cms/remote-gateway/internal/remote"
	"github.com/inkwell-cms/remote-gateway/pkg/plugincontract"
)

// FileSigner turns a storage key into a time-limited download URL.
type FileSigner interface {
	SignFile(ctx context.Context, key string) (string, error)
}

// SecretsClient is the interface for Secrets Manager reads.
type SecretsClient interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsManagerReader reads the signing key from Secrets Manager.
type SecretsManagerReader struct {
	client SecretsClient
}

// NewSecretsManagerReader creates a new SecretsManagerReader.
func NewSecretsManagerReader(client SecretsClient) *SecretsManagerReader {
	return &SecretsManagerReader{client: client}
}

// GetPrivateKey retrieves the PEM-encoded private key.
func (s *SecretsManagerReader) GetPrivateKey(ctx context.Context, secretID string) (string, error) {
	result, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		return "", err
	}
	if result.SecretString == nil {
		return "", fmt.Errorf("secret value is empty")
	}
	return *result.SecretString, nil
}

// CloudFrontSigner implements FileSigner with CloudFront signed URLs.
type CloudFrontSigner struct {
	signer *sign.URLSigner
	domain string
	ttl    time.Duration
	now    func() time.Time
}

// NewCloudFrontSigner creates a signer from a PEM-encoded RSA key.
func NewCloudFrontSigner(domain, keyPairID, privateKeyPEM string, ttl time.Duration) (*CloudFrontSigner, error) {
	block, _ := pem.Decode([]byte(privateKeyPEM))
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}

	// Try PKCS#1 first, then PKCS#8
	privateKey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		var ok bool
		privateKey, ok = key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("private key is not RSA")
		}
	}

	return &CloudFrontSigner{
		signer: sign.NewURLSigner(keyPairID, privateKey),
		domain: domain,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// SignFile generates a signed URL for the given storage key.
func (s *CloudFrontSigner) SignFile(ctx context.Context, key string) (string, error) {
	url := fmt.Sprintf("https://%s/files/%s", s.domain, key)
	signedURL, err := s.signer.Sign(url, s.now().Add(s.ttl))
	if err != nil {
		return "", fmt.Errorf("failed to generate signed URL: %w", err)
	}
	return signedURL, nil
}

// S3Presigner is the interface for S3 presigned GET requests.
type S3Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Signer implements FileSigner with S3 presigned URLs. It is the
// fallback when no CloudFront distribution is configured.
type S3Signer struct {
	presign S3Presigner
	bucket  string
	ttl     time.Duration
}

// NewS3Signer creates a new S3Signer.
func NewS3Signer(presign S3Presigner, bucket string, ttl time.Duration) *S3Signer {
	return &S3Signer{presign: presign, bucket: bucket, ttl: ttl}
}

// SignFile presigns a GET for the given storage key.
func (s *S3Signer) SignFile(ctx context.Context, key string) (string, error) {
	request, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, func(o *s3.PresignOptions) {
		o.Expires = s.ttl
	})
	if err != nil {
		return "", fmt.Errorf("failed to presign object URL: %w", err)
	}
	return request.URL, nil
}

// Transformer builds the file-value transformer installed on the
// dispatch facade. File references are replaced by signed URLs; values
// that are not file references, and references that fail to sign, pass
// through unchanged.
func Transformer(ctx context.Context, signer FileSigner) remote.TransformFunc {
	return func(value any) any {
		key := fileKey(value)
		if key == "" {
			return value
		}
		signedURL, err := signer.SignFile(ctx, key)
		if err != nil {
			return value
		}
		return signedURL
	}
}

// fileKey extracts the storage key from the typed reference or its
// decoded JSON form.
func fileKey(value any) string {
	switch v := value.(type) {
	case plugincontract.FileRef:
		return v.Key
	case *plugincontract.FileRef:
		return v.Key
	case map[string]any:
		key, _ := v["key"].(string)
		return key
	default:
		return ""
	}
}
