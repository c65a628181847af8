package badger

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/poiesic/vecingest/core"
)

// Key prefixes for different data types
const (
	recordPrefix = "rec"
	metaPrefix   = "meta"
)

// makeRecordKey generates the key for a record.
// Format: rec:<collection>:<namespace>:<id>
func makeRecordKey(collection, namespace string, id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s:%d", recordPrefix, collection, namespace, id))
}

// makeNamespacePrefix generates the scan prefix covering every record of a namespace.
// Format: rec:<collection>:<namespace>:
func makeNamespacePrefix(collection, namespace string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s:", recordPrefix, collection, namespace))
}

// makeDimensionKey generates the key holding a collection's vector length.
// Format: meta:<collection>:dim
func makeDimensionKey(collection string) []byte {
	return []byte(fmt.Sprintf("%s:%s:dim", metaPrefix, collection))
}

// inNamespace reports whether key, found under prefix, belongs to that exact
// namespace. A namespace containing ':' can share a prefix with a shorter one,
// so the remainder must be a bare ID.
func inNamespace(key, prefix []byte) bool {
	rest, ok := bytes.CutPrefix(key, prefix)
	if !ok || len(rest) == 0 {
		return false
	}
	_, err := strconv.ParseUint(string(rest), 10, 64)
	return err == nil
}
