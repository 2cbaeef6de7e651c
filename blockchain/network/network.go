// The network package keeps the known blockchain networks.
//
// The network is chosen by its id, for example "amoy".
// Then the deployer connects to its first provider and
// checks that the node is on the expected chain.
package network

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/blocklords/authdeploy/blockchain/network/provider"
	"github.com/blocklords/authdeploy/config"
)

var ErrChainMismatch = errors.New("the node is on another chain")

// Returns the list of default networks
const defaultNetworks = `[
	{"id": "amoy", "chain_id": 80002, "providers": [
		{"url": "https://rpc-amoy.polygon.technology"}
	]},
	{"id": "sepolia", "chain_id": 11155111, "providers": [
		{"url": "https://rpc.sepolia.org"}
	]},
	{"id": "localhost", "chain_id": 31337, "providers": [
		{"url": "http://127.0.0.1:8545"}
	]}
]`

// NetworkConfigurations are the default parameters of the networks.
// If DEPLOYER_NETWORK is empty, then DEPLOYER_RPC_URL is used without the chain check.
var NetworkConfigurations = config.DefaultConfig{
	Title: "Network",
	Parameters: map[string]interface{}{
		"DEPLOYER_NETWORK":  "",
		"DEPLOYER_NETWORKS": defaultNetworks,
	},
}

type Network struct {
	Id        string              `json:"id"`
	ChainId   uint64              `json:"chain_id"`
	Providers []provider.Provider `json:"providers"`
}

// Returns the provider url
func (n *Network) GetFirstProviderUrl() (string, error) {
	if len(n.Providers) == 0 {
		return "", fmt.Errorf("there is no providers")
	}
	return n.Providers[0].Url, nil
}

// Check that the chain id reported by the node is the network's chain id
func (n *Network) Check(chainId *big.Int) error {
	if chainId == nil || chainId.Cmp(new(big.Int).SetUint64(n.ChainId)) != 0 {
		return fmt.Errorf("%w: network '%s' has chain id %d, node returned %v", ErrChainMismatch, n.Id, n.ChainId, chainId)
	}
	return nil
}

func (n *Network) validate() error {
	if len(n.Id) == 0 {
		return fmt.Errorf("missing 'id'")
	}
	if n.ChainId == 0 {
		return fmt.Errorf("network '%s': 'chain_id' can not be zero", n.Id)
	}
	if len(n.Providers) == 0 {
		return fmt.Errorf("network '%s': atleast one provider should be given", n.Id)
	}
	for i, p := range n.Providers {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("network '%s' providers[%d]: %w", n.Id, i, err)
		}
	}
	return nil
}

type Networks []*Network

// parses list of JSON objects into the list of Networks
func NewNetworks(raw string) (Networks, error) {
	var networks Networks
	if err := json.Unmarshal([]byte(raw), &networks); err != nil {
		return nil, fmt.Errorf("json.Unmarshal: %w", err)
	}

	for i, network := range networks {
		if network == nil {
			return nil, fmt.Errorf("networks[%d] is null", i)
		}
		if err := network.validate(); err != nil {
			return nil, fmt.Errorf("networks[%d]: %w", i, err)
		}
	}

	return networks, nil
}

// Whether the network with network_id exists in the networks list
func (networks Networks) Exist(networkId string) bool {
	_, err := networks.Get(networkId)
	return err == nil
}

// Ids of the networks in the list order
func (networks Networks) Ids() []string {
	ids := make([]string, len(networks))
	for i, network := range networks {
		ids[i] = network.Id
	}
	return ids
}

// Returns the Network from the list of networks by its id
func (networks Networks) Get(networkId string) (*Network, error) {
	for _, network := range networks {
		if network.Id == networkId {
			return network, nil
		}
	}

	return nil, fmt.Errorf("network '%s' not found", networkId)
}

// Selected network from the configuration.
// Returns nil if the DEPLOYER_NETWORK is not set.
func Selected(appConfig *config.Config) (*Network, error) {
	if !appConfig.Exist("DEPLOYER_NETWORK") {
		return nil, nil
	}

	networks, err := NewNetworks(appConfig.GetString("DEPLOYER_NETWORKS"))
	if err != nil {
		return nil, fmt.Errorf("'DEPLOYER_NETWORKS': %w", err)
	}
	networkId := appConfig.GetString("DEPLOYER_NETWORK")
	if !networks.Exist(networkId) {
		return nil, fmt.Errorf("network '%s' not found, known networks: %s", networkId, strings.Join(networks.Ids(), ", "))
	}
	return networks.Get(networkId)
}
