package sponsor

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/mantlenetworkio/gas-station/chain"
)

// fakeClient serves canned coin pages and a live-looking system state.
type fakeClient struct {
	pages []*chain.CoinPage
	state *chain.SystemState

	execErr  error
	executed int
}

func (c *fakeClient) GetCoins(_ context.Context, _ chain.Address, cursor *string) (*chain.CoinPage, error) {
	idx := 0
	if cursor != nil {
		idx, _ = strconv.Atoi(*cursor)
	}
	if idx >= len(c.pages) {
		return &chain.CoinPage{}, nil
	}
	page := c.pages[idx]
	if page.HasNextPage && page.NextCursor == nil {
		next := strconv.Itoa(idx + 1)
		page.NextCursor = &next
	}
	return page, nil
}

func (c *fakeClient) MultiGetObjects(_ context.Context, ids []chain.ObjectID) ([]*chain.Object, error) {
	return make([]*chain.Object, len(ids)), nil
}

func (c *fakeClient) LatestSystemState(context.Context) (*chain.SystemState, error) {
	if c.state != nil {
		return c.state, nil
	}
	// An epoch that started just now and runs for a day keeps the price
	// cache clear of its boundary window for the whole test.
	return &chain.SystemState{
		Epoch:             3,
		ReferenceGasPrice: 1000,
		EpochStartMs:      time.Now().UnixMilli(),
		EpochDurationMs:   (24 * time.Hour).Milliseconds(),
	}, nil
}

func (c *fakeClient) ExecuteTransaction(context.Context, []byte, []string) (*chain.ExecuteResult, error) {
	c.executed++
	if c.execErr != nil {
		return nil, c.execErr
	}
	return &chain.ExecuteResult{Digest: "fake-digest", Effects: &chain.Effects{}}, nil
}

// fakeTx records the gas data the sponsor attaches.
type fakeTx struct {
	commands []*chain.Command

	sender, gasOwner chain.Address
	payment          []chain.ObjectRef
	price, budget    uint64
}

func (t *fakeTx) Commands() []*chain.Command       { return t.commands }
func (t *fakeTx) SetSender(a chain.Address)        { t.sender = a }
func (t *fakeTx) SetGasOwner(a chain.Address)      { t.gasOwner = a }
func (t *fakeTx) SetGasPayment(p []chain.ObjectRef) { t.payment = p }
func (t *fakeTx) SetGasPrice(p uint64)             { t.price = p }
func (t *fakeTx) SetGasBudget(b uint64)            { t.budget = b }
func (t *fakeTx) GasBudget() uint64                { return t.budget }

// fakeCodec parses every body into the same canned command list and remembers
// the transaction it built so tests can inspect the attached gas data.
type fakeCodec struct {
	commands []*chain.Command

	parseErr     error
	buildErr     error
	parseFullErr error

	// estimatedBudget, when set, simulates the build step estimating a
	// budget below the requested ceiling.
	estimatedBudget uint64

	lastParsed *fakeTx
	lastBuilt  *fakeTx
}

func (c *fakeCodec) ParseKind([]byte) (chain.Transaction, error) {
	if c.parseErr != nil {
		return nil, c.parseErr
	}
	c.lastParsed = &fakeTx{commands: c.commands}
	return c.lastParsed, nil
}

func (c *fakeCodec) ParseFull([]byte) (chain.Transaction, error) {
	if c.parseFullErr != nil {
		return nil, c.parseFullErr
	}
	if c.lastBuilt == nil {
		return nil, errors.New("nothing built yet")
	}
	return c.lastBuilt, nil
}

func (c *fakeCodec) Build(_ context.Context, tx chain.Transaction, _ chain.Client) ([]byte, error) {
	if c.buildErr != nil {
		return nil, c.buildErr
	}
	if ft, ok := tx.(*fakeTx); ok {
		if c.estimatedBudget > 0 {
			ft.budget = c.estimatedBudget
		}
		c.lastBuilt = ft
	}
	return []byte("built-tx"), nil
}

func (c *fakeCodec) NewGasSplit(amounts []uint64, _ chain.Address) chain.Transaction {
	return &fakeTx{}
}

func (c *fakeCodec) NewGasMerge([]chain.ObjectRef) chain.Transaction {
	return &fakeTx{}
}

// fakeSigner returns a fixed signature.
type fakeSigner struct {
	addr    chain.Address
	signErr error
}

func (s *fakeSigner) Address() chain.Address { return s.addr }

func (s *fakeSigner) Sign(context.Context, []byte) (string, error) {
	if s.signErr != nil {
		return "", s.signErr
	}
	return "fake-signature", nil
}
