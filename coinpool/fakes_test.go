package coinpool

import (
	"context"
	"fmt"
	"strconv"

	"github.com/mantlenetworkio/gas-station/chain"
)

// fakeClient serves canned pages and records the calls the pool makes.
type fakeClient struct {
	pages   []*chain.CoinPage
	state   *chain.SystemState
	objects map[chain.ObjectID]*chain.Object

	multiGetIDs [][]chain.ObjectID
	execResult  *chain.ExecuteResult
	execErr     error
	executed    int
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
	c.multiGetIDs = append(c.multiGetIDs, ids)
	result := make([]*chain.Object, len(ids))
	for i, id := range ids {
		result[i] = c.objects[id]
	}
	return result, nil
}

func (c *fakeClient) LatestSystemState(context.Context) (*chain.SystemState, error) {
	if c.state != nil {
		return c.state, nil
	}
	return &chain.SystemState{Epoch: 1, ReferenceGasPrice: 1000}, nil
}

func (c *fakeClient) ExecuteTransaction(context.Context, []byte, []string) (*chain.ExecuteResult, error) {
	c.executed++
	if c.execErr != nil {
		return nil, c.execErr
	}
	if c.execResult != nil {
		return c.execResult, nil
	}
	return &chain.ExecuteResult{Digest: "fake-digest", Effects: &chain.Effects{}}, nil
}

// fakeTx records the gas data the pool attaches.
type fakeTx struct {
	kind    string
	amounts []uint64
	sources []chain.ObjectRef

	sender, gasOwner chain.Address
	payment          []chain.ObjectRef
	price, budget    uint64
}

func (t *fakeTx) Commands() []*chain.Command         { return nil }
func (t *fakeTx) SetSender(a chain.Address)          { t.sender = a }
func (t *fakeTx) SetGasOwner(a chain.Address)        { t.gasOwner = a }
func (t *fakeTx) SetGasPayment(p []chain.ObjectRef)  { t.payment = p }
func (t *fakeTx) SetGasPrice(p uint64)               { t.price = p }
func (t *fakeTx) SetGasBudget(b uint64)              { t.budget = b }
func (t *fakeTx) GasBudget() uint64                  { return t.budget }

// fakeCodec builds trivially and remembers the last split/merge intents.
type fakeCodec struct {
	buildErr  error
	lastSplit *fakeTx
	lastMerge *fakeTx
}

func (c *fakeCodec) ParseKind([]byte) (chain.Transaction, error) {
	return nil, fmt.Errorf("not used in pool tests")
}

func (c *fakeCodec) ParseFull([]byte) (chain.Transaction, error) {
	return nil, fmt.Errorf("not used in pool tests")
}

func (c *fakeCodec) Build(_ context.Context, tx chain.Transaction, _ chain.Client) ([]byte, error) {
	if c.buildErr != nil {
		return nil, c.buildErr
	}
	_ = tx
	return []byte("built"), nil
}

func (c *fakeCodec) NewGasSplit(amounts []uint64, _ chain.Address) chain.Transaction {
	c.lastSplit = &fakeTx{kind: "split", amounts: amounts}
	return c.lastSplit
}

func (c *fakeCodec) NewGasMerge(sources []chain.ObjectRef) chain.Transaction {
	c.lastMerge = &fakeTx{kind: "merge", sources: sources}
	return c.lastMerge
}

// fakeSigner signs everything the same way.
type fakeSigner struct {
	addr chain.Address
}

func (s *fakeSigner) Address() chain.Address { return s.addr }

func (s *fakeSigner) Sign(context.Context, []byte) (string, error) { return "fake-sig", nil }
