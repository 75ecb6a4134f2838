package conncache

import (
	"fmt"

	"github.com/stromnet/strom/rpc/common"
)

// MisroutedError reports a mutating cache call issued on a shard that is not
// authoritative for the node. This is a bug in the caller's routing logic,
// never a transient condition: it must not be retried.
type MisroutedError struct {
	// Op is the rejected operation ("emplace" or "remove")
	Op string
	// Node is the peer the call was about
	Node common.NodeID
	// Expected is the shard that owns the node's connection
	Expected uint64
	// Actual is the shard the call was issued on
	Actual uint64
}

// Error implements the error interface
func (e *MisroutedError) Error() string {
	return fmt.Sprintf("cannot %s node %s, belonging to shard %d, on shard %d",
		e.Op, e.Node, e.Expected, e.Actual)
}
