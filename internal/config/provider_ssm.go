package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ssmMaxBatchSize is the GetParameters per-call limit imposed by AWS.
const ssmMaxBatchSize = 10

// SSMAPI is the subset of the SSM client used by SSMProvider.
type SSMAPI interface {
	GetParameters(ctx context.Context, params *ssm.GetParametersInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersOutput, error)
}

// SSMProvider resolves SecureString parameters from AWS SSM Parameter Store.
type SSMProvider struct {
	client SSMAPI
}

// NewSSMProvider creates an SSMProvider from a loaded AWS config.
func NewSSMProvider(awsCfg aws.Config) *SSMProvider {
	return &SSMProvider{client: ssm.NewFromConfig(awsCfg)}
}

// NewSSMProviderWithAPI creates an SSMProvider over a caller-supplied client.
func NewSSMProviderWithAPI(client SSMAPI) *SSMProvider {
	return &SSMProvider{client: client}
}

// GetParametersBatch fetches keys with decryption in chunks of ten. Names
// SSM reports as invalid are left out of the result so the caller can name
// the missing variables.
func (p *SSMProvider) GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error) {
	result := make(map[string]string, len(keys))

	for start := 0; start < len(keys); start += ssmMaxBatchSize {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("SSM parameter retrieval cancelled: %w", err)
		}

		end := min(start+ssmMaxBatchSize, len(keys))
		out, err := p.client.GetParameters(ctx, &ssm.GetParametersInput{
			Names:          keys[start:end],
			WithDecryption: aws.Bool(true),
		})
		if err != nil {
			return nil, fmt.Errorf("SSM GetParameters failed (keys %d-%d of %d): %w", start, end-1, len(keys), err)
		}

		for _, param := range out.Parameters {
			if param.Name != nil && param.Value != nil {
				result[*param.Name] = *param.Value
			}
		}
	}

	return result, nil
}

var _ SecretProvider = (*SSMProvider)(nil)
var _ SecretProvider = (*EnvVarProvider)(nil)
