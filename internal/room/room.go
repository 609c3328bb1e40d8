// Package room generates identifiers for call rooms and session tokens.
package room

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"time"
)

const suffixLen = 9

// GenerateRoomID produces a globally-unique room identifier:
// "room-" + base36(unix ms) + "-" + random base36 suffix. The time component
// makes collisions require same-millisecond creation AND a suffix collision.
func GenerateRoomID() string {
	return "room-" + base36Now() + "-" + randBase36(suffixLen)
}

// GenerateSessionToken produces a client-facing session token. Not a
// uniqueness anchor (room id is); display and client-side reference only.
func GenerateSessionToken() string {
	return "sess-" + base36Now() + "-" + randBase36(suffixLen)
}

func base36Now() string {
	return strconv.FormatInt(time.Now().UnixMilli(), 36)
}

func randBase36(n int) string {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		b.WriteByte(alphabet[rand.IntN(len(alphabet))])
	}
	return b.String()
}
