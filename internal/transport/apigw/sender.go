// Package apigw sends live payloads through the AWS API Gateway
// Management API of a websocket API.
package apigw

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi"
	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi/types"
	"github.com/vedran77/spark/internal/transport"
)

type Config struct {
	// Endpoint is the connection management URL of the stage, e.g.
	// https://{api-id}.execute-api.{region}.amazonaws.com/{stage}.
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// API is the subset of the management client the sender uses.
type API interface {
	PostToConnection(ctx context.Context, params *apigatewaymanagementapi.PostToConnectionInput, optFns ...func(*apigatewaymanagementapi.Options)) (*apigatewaymanagementapi.PostToConnectionOutput, error)
	DeleteConnection(ctx context.Context, params *apigatewaymanagementapi.DeleteConnectionInput, optFns ...func(*apigatewaymanagementapi.Options)) (*apigatewaymanagementapi.DeleteConnectionOutput, error)
}

type Sender struct {
	api API
}

func NewSender(api API) *Sender {
	return &Sender{api: api}
}

// New builds a Sender for the configured stage endpoint.
func New(ctx context.Context, cfg Config) (*Sender, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("apigw: endpoint is required")
	}

	loadOptions := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOptions = append(loadOptions, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOptions...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := apigatewaymanagementapi.NewFromConfig(awsCfg, func(o *apigatewaymanagementapi.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
	})
	return NewSender(client), nil
}

// Send posts data to the connection. GoneException maps to transport.ErrGone.
func (s *Sender) Send(ctx context.Context, connectionID string, data []byte) error {
	_, err := s.api.PostToConnection(ctx, &apigatewaymanagementapi.PostToConnectionInput{
		ConnectionId: aws.String(connectionID),
		Data:         data,
	})
	if err == nil {
		return nil
	}
	var gone *types.GoneException
	if errors.As(err, &gone) {
		return transport.ErrGone
	}
	return fmt.Errorf("posting to connection %s: %w", connectionID, err)
}

// Close forcibly disconnects a connection. An already gone connection is
// not an error.
func (s *Sender) Close(ctx context.Context, connectionID string) error {
	_, err := s.api.DeleteConnection(ctx, &apigatewaymanagementapi.DeleteConnectionInput{
		ConnectionId: aws.String(connectionID),
	})
	var gone *types.GoneException
	if err != nil && !errors.As(err, &gone) {
		return fmt.Errorf("deleting connection %s: %w", connectionID, err)
	}
	return nil
}
