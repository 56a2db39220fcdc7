package chain

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ObjectID is the stable identity of an on-chain object, as 0x-prefixed hex.
type ObjectID string

// ObjectRef pins an object to a point in time. The triple must always be
// read and written together: a stale (version, digest) pair referenced by a
// second transaction locks the object until the end of the epoch.
type ObjectRef struct {
	ObjectID ObjectID `json:"objectId"`
	Version  uint64   `json:"version"`
	Digest   string   `json:"digest"`
}

func (r ObjectRef) String() string {
	return fmt.Sprintf("%s@%d", r.ObjectID, r.Version)
}

// Coin is one fee coin as reported by the coin listing API.
type Coin struct {
	CoinType string
	ObjectID ObjectID
	Version  uint64
	Digest   string
	Balance  uint64
}

// Ref returns the coin's object reference.
func (c *Coin) Ref() ObjectRef {
	return ObjectRef{ObjectID: c.ObjectID, Version: c.Version, Digest: c.Digest}
}

// CoinPage is one page of the paginated coin listing.
type CoinPage struct {
	Data        []*Coin
	NextCursor  *string
	HasNextPage bool
}

// Object is the current on-chain state of an object, fetched by id. A nil
// *Object in a batch response means the object no longer exists.
type Object struct {
	Ref     ObjectRef
	Balance uint64
}

// SystemState is the subset of the chain's system object the service needs:
// the reference gas price and the bounds of the current epoch.
type SystemState struct {
	Epoch           uint64
	ReferenceGasPrice uint64
	EpochStartMs    int64
	EpochDurationMs int64
}

// decimalU64 decodes the chain's JSON convention of encoding integers as
// decimal strings, while tolerating plain numbers.
type decimalU64 uint64

func (d *decimalU64) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("empty integer")
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer %q: %w", s, err)
		}
		*d = decimalU64(v)
		return nil
	}
	var v uint64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*d = decimalU64(v)
	return nil
}

// UnmarshalJSON decodes the suix_getCoins wire shape.
func (c *Coin) UnmarshalJSON(data []byte) error {
	var raw struct {
		CoinType     string     `json:"coinType"`
		CoinObjectID string     `json:"coinObjectId"`
		Version      decimalU64 `json:"version"`
		Digest       string     `json:"digest"`
		Balance      decimalU64 `json:"balance"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.CoinType = raw.CoinType
	c.ObjectID = ObjectID(raw.CoinObjectID)
	c.Version = uint64(raw.Version)
	c.Digest = raw.Digest
	c.Balance = uint64(raw.Balance)
	return nil
}

// UnmarshalJSON tolerates both string and numeric versions in object refs.
func (r *ObjectRef) UnmarshalJSON(data []byte) error {
	var raw struct {
		ObjectID string     `json:"objectId"`
		Version  decimalU64 `json:"version"`
		Digest   string     `json:"digest"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.ObjectID = ObjectID(raw.ObjectID)
	r.Version = uint64(raw.Version)
	r.Digest = raw.Digest
	return nil
}

// UnmarshalJSON decodes the system state summary object.
func (s *SystemState) UnmarshalJSON(data []byte) error {
	var raw struct {
		Epoch             decimalU64 `json:"epoch"`
		ReferenceGasPrice decimalU64 `json:"referenceGasPrice"`
		EpochStartMs      decimalU64 `json:"epochStartTimestampMs"`
		EpochDurationMs   decimalU64 `json:"epochDurationMs"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Epoch = uint64(raw.Epoch)
	s.ReferenceGasPrice = uint64(raw.ReferenceGasPrice)
	s.EpochStartMs = int64(raw.EpochStartMs)
	s.EpochDurationMs = int64(raw.EpochDurationMs)
	return nil
}
