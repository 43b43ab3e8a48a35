package s3

import (
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"gridsync/pkg/config"
)

func CreateS3Client(config *config.S3Config) (*s3.S3, error) {
	httpClient := &http.Client{
		Timeout: time.Duration(config.ReadTimeoutSeconds) * time.Second,
		Transport: &http.Transport{
			ResponseHeaderTimeout: time.Duration(config.ReadTimeoutSeconds) * time.Second,
			ExpectContinueTimeout: 5 * time.Second,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
		},
	}

	retryer := client.DefaultRetryer{
		NumMaxRetries:    config.MaxRetries,
		MinRetryDelay:    time.Duration(config.RetryDelaySeconds) * time.Second,
		MaxRetryDelay:    time.Duration(config.MaxRetryDelaySeconds) * time.Second,
		MinThrottleDelay: time.Duration(config.RetryDelaySeconds) * time.Second,
		MaxThrottleDelay: time.Duration(config.MaxRetryDelaySeconds) * time.Second,
	}

	sess, err := session.NewSession(&aws.Config{
		Region:           aws.String(config.Region),
		Endpoint:         aws.String(config.Endpoint),
		S3ForcePathStyle: aws.Bool(true),
		HTTPClient:       httpClient,
		Retryer:          retryer,
		Credentials: credentials.NewStaticCredentials(
			config.AccessKey,
			config.SecretKey,
			"",
		),
	})
	if err != nil {
		return nil, err
	}

	return s3.New(sess), nil
}
