package config

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// SecretProvider resolves secret identifiers (SSM paths) to plaintext values.
// Keys that cannot be found are omitted from the result.
type SecretProvider interface {
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}

// EnvVarProvider treats each key as an environment variable name.
type EnvVarProvider struct{}

// NewEnvVarProvider returns a provider backed by the process environment.
func NewEnvVarProvider() *EnvVarProvider { return &EnvVarProvider{} }

// GetParametersBatch reads each key from the environment; unset keys are omitted.
func (p *EnvVarProvider) GetParametersBatch(_ context.Context, keys []string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := os.LookupEnv(k); ok {
			out[k] = v
		}
	}
	return out, nil
}

// GetParameters accepts at most 10 names per call.
const ssmBatchLimit = 10

type ssmAPI interface {
	GetParameters(ctx context.Context, params *ssm.GetParametersInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersOutput, error)
}

// SSMProvider reads SecureString parameters from AWS Systems Manager.
// The SDK client is created on first use.
type SSMProvider struct {
	region string
	api    ssmAPI
}

// NewSSMProvider returns an SSM-backed provider. The AWS client is built on
// first use, so local runs never load AWS credentials.
func NewSSMProvider(region string) *SSMProvider {
	return &SSMProvider{region: region}
}

func (p *SSMProvider) client(ctx context.Context) (ssmAPI, error) {
	if p.api != nil {
		return p.api, nil
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(p.region))
	if err != nil {
		return nil, fmt.Errorf("load aws config (region=%s): %w", p.region, err)
	}
	p.api = ssm.NewFromConfig(cfg)
	return p.api, nil
}

// GetParametersBatch fetches and decrypts the named parameters.
func (p *SSMProvider) GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	api, err := p.client(ctx)
	if err != nil {
		return nil, err
	}

	for start := 0; start < len(keys); start += ssmBatchLimit {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("ssm resolution interrupted: %w", err)
		}
		batch := keys[start:min(start+ssmBatchLimit, len(keys))]

		resp, err := api.GetParameters(ctx, &ssm.GetParametersInput{
			Names:          batch,
			WithDecryption: aws.Bool(true),
		})
		if err != nil {
			return nil, fmt.Errorf("ssm GetParameters: %w", err)
		}
		if len(resp.InvalidParameters) > 0 {
			return nil, fmt.Errorf("ssm parameters not found: %v", resp.InvalidParameters)
		}
		for _, param := range resp.Parameters {
			if param.Name != nil && param.Value != nil {
				out[*param.Name] = *param.Value
			}
		}
	}
	return out, nil
}
