package devices

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidHardwareAddr = errors.New("invalid hardware address")

// syntheticPrefixes mark non-hardware identifiers (test rigs, virtual
// devices, system senders) that bypass hex validation entirely.
var syntheticPrefixes = []string{"test-", "virtual-", "system-"}

// NormalizeHardwareAddr returns the canonical form of a device hardware
// address: uppercase hex with separators stripped, e.g. "b8:f8:62:f9:cf:b8"
// -> "B8F862F9CFB8". Synthetic identifiers are passed through unchanged.
func NormalizeHardwareAddr(raw string) (string, error) {
	addr := strings.TrimSpace(raw)
	if addr == "" {
		return "", fmt.Errorf("%w: empty address", ErrInvalidHardwareAddr)
	}

	if IsSynthetic(addr) {
		return addr, nil
	}

	var b strings.Builder
	for _, r := range addr {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'a' && r <= 'f':
			b.WriteRune(r - 'a' + 'A')
		case r >= 'A' && r <= 'F':
			b.WriteRune(r)
		case r == ':' || r == '-' || r == '.' || r == ' ':
			// separator, dropped
		default:
			return "", fmt.Errorf("%w: unexpected character %q", ErrInvalidHardwareAddr, r)
		}
	}

	if b.Len() == 0 {
		return "", fmt.Errorf("%w: no hex digits in %q", ErrInvalidHardwareAddr, raw)
	}

	return b.String(), nil
}

// IsSynthetic reports whether the identifier is a non-hardware marker.
func IsSynthetic(addr string) bool {
	lower := strings.ToLower(addr)
	for _, p := range syntheticPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}
