package chainrpc

import (
	"fmt"
	"strconv"
)

// chainUint parses the node's decimal-string integers. An empty string
// decodes as zero, matching fields older nodes omit.
type chainUint uint64

func (u *chainUint) parse(s string) error {
	if s == "" {
		*u = 0
		return nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid integer %q: %w", s, err)
	}
	*u = chainUint(v)
	return nil
}
