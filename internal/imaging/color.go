package imaging

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidColor is returned for malformed background colors.
var ErrInvalidColor = errors.New("invalid hex color")

// ParseHexColor converts a hex color string (with or without #) to RGB values.
func ParseHexColor(hex string) (uint8, uint8, uint8, error) {
	hex = strings.TrimPrefix(hex, "#")

	if len(hex) != 6 {
		return 0, 0, 0, fmt.Errorf("%w: %q (expected 6 characters)", ErrInvalidColor, hex)
	}

	var r, g, b uint8
	_, err := fmt.Sscanf(hex, "%02x%02x%02x", &r, &g, &b)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("%w: %q: %v", ErrInvalidColor, hex, err)
	}

	return r, g, b, nil
}
