// Package camunda wraps the Zeebe gRPC client. It owns broker
// connection setup, health checks, retry of transient command failures,
// and the job worker registration used by the worker manager.
package camunda

import (
	"context"
	"fmt"
	"strings"
	"time"

	"opposite-match-workers/internal/common/errors"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// Client wraps the Zeebe gRPC client with retry and error translation.
type Client struct {
	client zbc.Client
	config *ClientConfig
}

// ClientConfig holds broker connection settings.
type ClientConfig struct {
	GatewayAddress         string
	UsePlaintextConnection bool
	ConnectionTimeout      time.Duration
	RequestTimeout         time.Duration
	RetryConfig            *RetryConfig
}

// RetryConfig bounds the retry of transient broker failures.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultRetryConfig is used when no retry configuration is supplied.
var DefaultRetryConfig = &RetryConfig{
	MaxRetries: 3,
	BaseDelay:  1 * time.Second,
	MaxDelay:   10 * time.Second,
}

// NewClient connects to the broker at the given address with defaults
// suitable for local development.
func NewClient(address string) (*Client, error) {
	return NewClientWithConfig(&ClientConfig{
		GatewayAddress:         address,
		UsePlaintextConnection: true, // Set to false and configure TLS in production
		ConnectionTimeout:      10 * time.Second,
		RequestTimeout:         30 * time.Second,
		RetryConfig:            DefaultRetryConfig,
	})
}

// NewClientWithConfig connects to the broker using explicit settings.
// A topology request verifies the connection before the client is
// handed out.
func NewClientWithConfig(config *ClientConfig) (*Client, error) {
	if config.RetryConfig == nil {
		config.RetryConfig = DefaultRetryConfig
	}

	zeebeClient, err := zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         config.GatewayAddress,
		UsePlaintextConnection: config.UsePlaintextConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Zeebe client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.ConnectionTimeout)
	defer cancel()

	if _, err := zeebeClient.NewTopologyCommand().Send(ctx); err != nil {
		zeebeClient.Close()
		return nil, fmt.Errorf("failed to connect to Zeebe broker at %s: %w", config.GatewayAddress, err)
	}

	return &Client{client: zeebeClient, config: config}, nil
}

// GetClient returns the raw Zeebe client for job worker registration.
func (c *Client) GetClient() zbc.Client {
	return c.client
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// HealthCheck sends a topology request to confirm the broker answers.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.ConnectionTimeout)
	defer cancel()

	if _, err := c.client.NewTopologyCommand().Send(ctx); err != nil {
		return fmt.Errorf("zeebe health check failed: %w", err)
	}
	return nil
}

// ExecuteWithRetry runs a broker command, retrying transient failures
// with capped exponential backoff. Non-transient failures and exhausted
// retries come back as StandardError values.
func (c *Client) ExecuteWithRetry(
	ctx context.Context,
	commandFunc func(context.Context) (interface{}, error),
	operationName string,
) (interface{}, error) {
	maxRetries := c.config.RetryConfig.MaxRetries

	for attempt := 0; ; attempt++ {
		result, err := commandFunc(ctx)
		if err == nil {
			return result, nil
		}

		if !isRetryableZeebeError(err) || attempt == maxRetries {
			return nil, c.mapZeebeError(err, operationName, attempt)
		}

		select {
		case <-time.After(c.backoffDelay(attempt)):
		case <-ctx.Done():
			return nil, fmt.Errorf("operation %s cancelled after %d attempts: %w", operationName, attempt, ctx.Err())
		}
	}
}

func (c *Client) backoffDelay(attempt int) time.Duration {
	delay := c.config.RetryConfig.BaseDelay * time.Duration(1<<attempt)
	if delay > c.config.RetryConfig.MaxDelay {
		delay = c.config.RetryConfig.MaxDelay
	}
	return delay
}

var retryableZeebePhrases = []string{
	"connection refused",
	"connection reset",
	"timeout",
	"deadline exceeded",
	"unavailable",
	"unreachable",
	"broken pipe",
}

// isRetryableZeebeError reports whether the failure looks transient.
// The Zeebe client surfaces gRPC status text, so this matches on the
// message rather than typed errors.
func isRetryableZeebeError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, phrase := range retryableZeebePhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}

// mapZeebeError translates a broker failure into a StandardError so the
// caller sees the same taxonomy as every other external service.
func (c *Client) mapZeebeError(err error, operation string, attempt int) error {
	msg := err.Error()
	lowerMsg := strings.ToLower(msg)

	detail := fmt.Sprintf("Zeebe operation '%s' failed", operation)
	if attempt > 0 {
		detail += fmt.Sprintf(" after %d attempts", attempt)
	}

	switch {
	case strings.Contains(lowerMsg, "timeout") ||
		strings.Contains(lowerMsg, "deadline exceeded"):
		return errors.NewTimeoutError("zeebe", fmt.Errorf("%s: %s", detail, msg))

	case strings.Contains(lowerMsg, "not found"):
		return errors.NewResourceNotFoundError("zeebe", fmt.Sprintf("%s: %s", detail, msg))

	case strings.Contains(lowerMsg, "already exists"):
		return errors.NewBusinessRuleError(
			fmt.Sprintf("%s: %s", detail, msg),
			"Resource already exists",
		)

	default:
		return errors.NewExternalServiceError("zeebe", fmt.Errorf("%s: %s", detail, msg))
	}
}
