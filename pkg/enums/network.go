package enums

import "fmt"

// Network identifies the chain a payment proof claims to have settled on.
type Network string

const (
	NetworkSolanaMainnet Network = "mainnet-beta"
	NetworkSolanaDevnet  Network = "devnet"
	NetworkEthMainnet    Network = "mainnet"
	NetworkEthSepolia    Network = "sepolia"
)

// String implements fmt.Stringer.
func (n Network) String() string {
	return string(n)
}

// networksByCurrency maps each currency to the networks acceptable in
// production and outside of it. USDC settles on both chains.
var networksByCurrency = map[Currency]struct {
	prod    []Network
	nonProd []Network
}{
	CurrencySOL: {
		prod:    []Network{NetworkSolanaMainnet},
		nonProd: []Network{NetworkSolanaDevnet},
	},
	CurrencyETH: {
		prod:    []Network{NetworkEthMainnet},
		nonProd: []Network{NetworkEthSepolia},
	},
	CurrencyUSDC: {
		prod:    []Network{NetworkSolanaMainnet, NetworkEthMainnet},
		nonProd: []Network{NetworkSolanaDevnet, NetworkEthSepolia},
	},
}

// AllowedNetworks returns the networks a currency may settle on for the given
// deployment environment.
func AllowedNetworks(c Currency, prod bool) []Network {
	entry, ok := networksByCurrency[c]
	if !ok {
		return nil
	}
	if prod {
		return entry.prod
	}
	return entry.nonProd
}

// NetworkAllowed reports whether the network is acceptable for the currency in
// the given deployment environment.
func NetworkAllowed(c Currency, n Network, prod bool) bool {
	for _, candidate := range AllowedNetworks(c, prod) {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNetwork converts a raw string into a Network.
func ParseNetwork(value string) (Network, error) {
	for _, candidate := range []Network{
		NetworkSolanaMainnet,
		NetworkSolanaDevnet,
		NetworkEthMainnet,
		NetworkEthSepolia,
	} {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid network %q", value)
}
