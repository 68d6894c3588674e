package client

import (
	"github.com/agentregistry-dev/promptregistry/internal/client"
)

// Client and its options are re-exported so callers outside this module can
// name them.
type (
	Client      = client.Client
	ListOptions = client.ListOptions
	APIError    = client.APIError
)

const DefaultBaseURL = client.DefaultBaseURL

// Exposing internal client for external use
func NewClientFromEnv() (*Client, error) {
	return client.NewClientFromEnv()
}

func NewClient(baseURL, token string) *Client {
	return client.NewClient(baseURL, token)
}

func IsNotFound(err error) bool {
	return client.IsNotFound(err)
}
