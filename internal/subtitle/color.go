package subtitle

import (
	"strconv"
	"strings"
)

// FallbackASSColor is opaque white, used whenever a color cannot be parsed
const FallbackASSColor = "&H00FFFFFF"

// HexToASSColor converts #RRGGBB (leading # optional) to the ASS/libass
// &HAABBGGRR encoding with an opaque alpha. Malformed input returns
// FallbackASSColor so previously saved configs keep rendering.
func HexToASSColor(hex string) string {
	h := strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(h) != 6 {
		return FallbackASSColor
	}
	if _, err := strconv.ParseUint(h, 16, 32); err != nil {
		return FallbackASSColor
	}

	h = strings.ToUpper(h)
	return "&H00" + h[4:6] + h[2:4] + h[0:2]
}
