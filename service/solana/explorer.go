package solana

import "fmt"

// Cluster names understood by the explorers.
const (
	ClusterMainnet = "mainnet-beta"
	ClusterDevnet  = "devnet"
	ClusterTestnet = "testnet"
)

// ExplorerLinks are external block explorer URLs for one transaction.
type ExplorerLinks struct {
	Solscan        string `json:"solscan"`
	SolanaExplorer string `json:"solana_explorer"`
	SolanaFM       string `json:"solana_fm"`
}

// ExplorerLinksFor templates the signature into each explorer's URL.
// Mainnet links carry no cluster parameter.
func ExplorerLinksFor(signature, cluster string) ExplorerLinks {
	suffix := ""
	if cluster != "" && cluster != ClusterMainnet {
		suffix = "?cluster=" + cluster
	}
	fmSuffix := ""
	if cluster != "" && cluster != ClusterMainnet {
		fmSuffix = "?cluster=" + cluster + "-solana"
	}
	return ExplorerLinks{
		Solscan:        fmt.Sprintf("https://solscan.io/tx/%s%s", signature, suffix),
		SolanaExplorer: fmt.Sprintf("https://explorer.solana.com/tx/%s%s", signature, suffix),
		SolanaFM:       fmt.Sprintf("https://solana.fm/tx/%s%s", signature, fmSuffix),
	}
}
