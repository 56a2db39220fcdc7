package chain

import "context"

// Client is the minimum RPC surface the sponsorship service needs from a
// full node. Implementations must be safe for concurrent use.
type Client interface {
	// GetCoins returns one page of the owner's fee coins, newest cursor last.
	GetCoins(ctx context.Context, owner Address, cursor *string) (*CoinPage, error)

	// MultiGetObjects fetches the current state of the given objects. The
	// result slice is index-aligned with ids; deleted objects are nil.
	MultiGetObjects(ctx context.Context, ids []ObjectID) ([]*Object, error)

	// LatestSystemState returns the current epoch and reference gas price.
	LatestSystemState(ctx context.Context) (*SystemState, error)

	// ExecuteTransaction submits a signed transaction and waits for effects.
	ExecuteTransaction(ctx context.Context, txBytes []byte, signatures []string) (*ExecuteResult, error)
}

// Signer signs transaction bytes on behalf of the sponsor. Sign may be a
// remote or hardware call and must honor the context.
type Signer interface {
	Address() Address
	Sign(ctx context.Context, data []byte) (string, error)
}

// Transaction is a decoded transaction under construction. Setters attach the
// gas data a sponsor contributes; Commands exposes the body for policy checks.
type Transaction interface {
	Commands() []*Command
	SetSender(Address)
	SetGasOwner(Address)
	SetGasPayment([]ObjectRef)
	SetGasPrice(uint64)
	SetGasBudget(uint64)
	GasBudget() uint64
}

// Codec parses and serializes the chain's transaction format. Build performs
// a dry-run against the node and may lower the budget below the configured
// ceiling, so callers re-parse the output to read the final value.
type Codec interface {
	// ParseKind decodes body bytes (operations without gas data).
	ParseKind(body []byte) (Transaction, error)

	// ParseFull decodes complete wire-format transaction bytes.
	ParseFull(txBytes []byte) (Transaction, error)

	// Build serializes the transaction to wire format, dry-running against
	// the node to finalize the gas budget.
	Build(ctx context.Context, tx Transaction, client Client) ([]byte, error)

	// NewGasSplit builds a transaction that splits the implicit gas coin
	// into len(amounts) new coins and transfers them to recipient.
	NewGasSplit(amounts []uint64, recipient Address) Transaction

	// NewGasMerge builds a transaction that merges sources into the
	// implicit gas coin.
	NewGasMerge(sources []ObjectRef) Transaction
}
