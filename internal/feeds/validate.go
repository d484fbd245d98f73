package feeds

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// NormalizeWallet validates a wallet address at the ingestion boundary and
// returns its canonical lowercased form. Everything past this point can treat
// the address as a well-formed key.
func NormalizeWallet(addr string) (string, error) {
	trimmed := strings.TrimSpace(addr)
	if !common.IsHexAddress(trimmed) {
		return "", Malformed("validate wallet", fmt.Errorf("not a hex address: %q", addr))
	}
	return strings.ToLower(common.HexToAddress(trimmed).Hex()), nil
}
