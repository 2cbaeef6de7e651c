package provider

import (
	"fmt"
	"net/url"
)

// Provider is the Url wrapper to the remote
// blockchain node.
//
// The Provider is not responsible for connecting.
// Refer to blockchain/evm/client
type Provider struct {
	Url string `json:"url"`
}

// Validate the url of the provider.
// The JSON-RPC is served over http or websocket.
func (provider Provider) Validate() error {
	if len(provider.Url) == 0 {
		return fmt.Errorf("empty url or its missing")
	}

	u, err := url.ParseRequestURI(provider.Url)
	if err != nil {
		return fmt.Errorf("invalid '%s' provider url: %w", provider.Url, err)
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
		return nil
	default:
		return fmt.Errorf("invalid '%s' provider protocol. Expected 'http', 'https', 'ws' or 'wss'. But given '%s'", provider.Url, u.Scheme)
	}
}
