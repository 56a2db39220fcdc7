package chain

import "encoding/json"

// GasUsed is the fee breakdown of one executed transaction. All fields arrive
// as decimal strings; nonRefundableStorageFee is absent on older nodes and
// defaults to zero.
type GasUsed struct {
	ComputationCost         uint64
	StorageCost             uint64
	StorageRebate           uint64
	NonRefundableStorageFee uint64
}

// Consumed returns the net fee taken from the gas coin. The value is signed:
// a transaction that deletes objects can rebate more than it costs.
func (g *GasUsed) Consumed() int64 {
	return int64(g.ComputationCost) + int64(g.StorageCost) - int64(g.StorageRebate) + int64(g.NonRefundableStorageFee)
}

func (g *GasUsed) UnmarshalJSON(data []byte) error {
	var raw struct {
		ComputationCost         decimalU64 `json:"computationCost"`
		StorageCost             decimalU64 `json:"storageCost"`
		StorageRebate           decimalU64 `json:"storageRebate"`
		NonRefundableStorageFee decimalU64 `json:"nonRefundableStorageFee"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	g.ComputationCost = uint64(raw.ComputationCost)
	g.StorageCost = uint64(raw.StorageCost)
	g.StorageRebate = uint64(raw.StorageRebate)
	g.NonRefundableStorageFee = uint64(raw.NonRefundableStorageFee)
	return nil
}

// GasObject carries the gas coin's post-execution reference.
type GasObject struct {
	Reference ObjectRef `json:"reference"`
}

// Effects is the chain's post-execution report. Only the fields the coin pool
// consumes are modeled; the rest of the effects envelope is ignored.
type Effects struct {
	GasObject *GasObject   `json:"gasObject"`
	GasUsed   *GasUsed     `json:"gasUsed"`
	Created   []*CreatedRef `json:"created"`
}

// CreatedRef is one entry of the effects' created-objects list.
type CreatedRef struct {
	Reference ObjectRef `json:"reference"`
}

// ExecuteResult is the response of a transaction submission.
type ExecuteResult struct {
	Digest  string   `json:"digest"`
	Effects *Effects `json:"effects"`
}
