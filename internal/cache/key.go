package cache

import (
	"fmt"
	"strconv"
)

// Key builds a deterministic decision-cache key from the request's
// action, resource, and resolved username, plus the newest modification
// time observed among the rule files along the walked ancestor chain.
// Folding the mtime into the key means an edit to any rule file —
// including one that previously did not exist — produces a new key
// rather than requiring an explicit cache flush.
func Key(action, resource, username string, newestRuleModUnix int64) string {
	return fmt.Sprintf("accessd:decision:%s:%s:%s:%s",
		action, resource, username, strconv.FormatInt(newestRuleModUnix, 10))
}
