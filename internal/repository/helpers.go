package repository

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrNotFound is wrapped by lookups that match no row.
var ErrNotFound = errors.New("not found")

// timeLayout keeps sub-second precision so reports created in the same second
// still order deterministically.
const timeLayout = time.RFC3339Nano

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func intToBool(i int) bool {
	return i != 0
}

// formatChunks stores chunk indices as "0,1,2".
func formatChunks(chunks []int) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = strconv.Itoa(c)
	}
	return strings.Join(parts, ",")
}

func parseChunks(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("parsing chunk list %q: %w", s, err)
		}
		out = append(out, n)
	}
	return out, nil
}
