package mainconfig

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/Yardman-Mzansi/potholematic/internal/app/bootstrap"
	appconfig "github.com/Yardman-Mzansi/potholematic/internal/config"
)

// overriddenServices are routed to AWS_ENDPOINT_OVERRIDE (LocalStack) when set.
var overriddenServices = map[string]bool{
	dynamodb.ServiceID: true,
	s3.ServiceID:       true,
	sqs.ServiceID:      true,
	sesv2.ServiceID:    true,
}

// LoadAWSConfig centralizes AWS SDK initialization so both binaries share the
// same LocalStack/production wiring.
func LoadAWSConfig(ctx context.Context, cfg *appconfig.Config) (aws.Config, error) {
	loaders := []func(*config.LoadOptions) error{config.WithRegion(cfg.AWSRegion)}
	if strings.TrimSpace(cfg.AWSAccessKeyID) != "" && strings.TrimSpace(cfg.AWSSecretAccessKey) != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return aws.Config{}, err
	}

	if endpoint := strings.TrimSpace(cfg.AWSEndpointOverride); endpoint != "" {
		awsCfg.EndpointResolverWithOptions = aws.EndpointResolverWithOptionsFunc(
			func(service, region string, _ ...interface{}) (aws.Endpoint, error) {
				if !overriddenServices[service] {
					return aws.Endpoint{}, &aws.EndpointNotFoundError{}
				}
				return aws.Endpoint{
					URL:               endpoint,
					PartitionID:       "aws",
					SigningRegion:     cfg.AWSRegion,
					HostnameImmutable: true,
				}, nil
			},
		)
	}

	return awsCfg, nil
}

// NewAWSClients builds only the clients the configured backends use.
func NewAWSClients(awsCfg aws.Config, cfg *appconfig.Config) *bootstrap.AWSClients {
	clients := &bootstrap.AWSClients{}
	if cfg.StoreBackend == appconfig.BackendDynamoDB {
		clients.DynamoDB = dynamodb.NewFromConfig(awsCfg)
	}
	if cfg.BlobBackend == appconfig.BlobS3 {
		clients.S3 = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			// LocalStack serves buckets by path, not virtual host.
			o.UsePathStyle = strings.TrimSpace(cfg.AWSEndpointOverride) != ""
		})
	}
	if strings.TrimSpace(cfg.ReportEventsQueueURL) != "" {
		clients.SQS = sqs.NewFromConfig(awsCfg)
	}
	if cfg.EmailProvider == "ses" && strings.TrimSpace(cfg.NotifyEmailTo) != "" {
		clients.SES = sesv2.NewFromConfig(awsCfg)
	}
	return clients
}
