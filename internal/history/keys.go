package history

import (
	"encoding/binary"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// KeyLength is the length of generated entry keys.
const KeyLength = 6

// KeyFunc produces entry keys.
type KeyFunc func() string

// RandomKeys draws base36 keys from random UUID bits.
func RandomKeys() string {
	id := uuid.New()
	s := strconv.FormatUint(binary.BigEndian.Uint64(id[8:]), 36)
	if len(s) < KeyLength {
		s = strings.Repeat("0", KeyLength-len(s)) + s
	}
	return s[len(s)-KeyLength:]
}

// SequentialKeys returns a KeyFunc yielding prefix1, prefix2, ... for
// deterministic tests.
func SequentialKeys(prefix string) KeyFunc {
	var (
		mu sync.Mutex
		n  int
	)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return prefix + strconv.Itoa(n)
	}
}
