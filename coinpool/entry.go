package coinpool

import (
	"time"

	"github.com/mantlenetworkio/gas-station/chain"
)

// Status is the reservation state of a pool entry.
type Status uint8

const (
	StatusAvailable Status = iota
	StatusReserved
)

func (s Status) String() string {
	if s == StatusReserved {
		return "reserved"
	}
	return "available"
}

// Entry tracks one fee coin. (ObjectID, Version, Digest) form the on-chain
// reference and are always updated together.
type Entry struct {
	ObjectID   chain.ObjectID
	Version    uint64
	Digest     string
	Balance    uint64
	Status     Status
	ReservedAt time.Time // zero unless Status == StatusReserved
}

// Ref returns the entry's object reference.
func (e *Entry) Ref() chain.ObjectRef {
	return chain.ObjectRef{ObjectID: e.ObjectID, Version: e.Version, Digest: e.Digest}
}

// Reservation correlates a sponsorship with the entry it reserved. It is
// opaque to callers beyond passing it back to ReportExecution.
type Reservation struct {
	ObjectID   chain.ObjectID `json:"objectId"`
	ReservedAt int64          `json:"reservedAt"` // unix milliseconds
}

// Stats is a point-in-time summary of the pool.
type Stats struct {
	Total        int    `json:"total"`
	Available    int    `json:"available"`
	Reserved     int    `json:"reserved"`
	TotalBalance uint64 `json:"totalBalance"`
}
