package domain

// Order side and signature-type constants as encoded in the CTF Exchange
// order struct.
const (
	SideBuy  = 0
	SideSell = 1
)

const (
	// SignatureTypeEOA is a plain externally-owned-account ECDSA signature.
	SignatureTypeEOA = 0
	// SignatureTypeProxy is a Polymarket proxy-wallet signature.
	SignatureTypeProxy = 1
	// SignatureTypeSafe is a Gnosis Safe contract signature.
	SignatureTypeSafe = 2
)

// ZeroAddress is the null taker address, marking an order as open rather than
// directed at a specific counterparty.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// Order is the twelve-field CTF Exchange order struct. Every numeric field is
// carried as a decimal string to preserve precision across the JSON boundary;
// amounts are in the collateral's smallest unit (micro-USDC).
type Order struct {
	Salt          string `json:"salt"`
	Maker         string `json:"maker"`
	Signer        string `json:"signer"`
	Taker         string `json:"taker"`
	TokenID       string `json:"tokenId"`
	MakerAmount   string `json:"makerAmount"`
	TakerAmount   string `json:"takerAmount"`
	Expiration    string `json:"expiration"`
	Nonce         string `json:"nonce"`
	FeeRateBps    string `json:"feeRateBps"`
	Side          int    `json:"side"`
	SignatureType int    `json:"signatureType"`
}

// SignedOrder wraps an Order with the submitting account and its EIP-712
// signature, ready to POST to the CLOB. OrderType is always "FOK": the order
// either fully matches resting liquidity at submission time or is discarded.
type SignedOrder struct {
	Order     Order  `json:"order"`
	Owner     string `json:"owner"`
	Signature string `json:"signature"`
	OrderType string `json:"orderType"`
}
