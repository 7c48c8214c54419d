package credit

import (
	"fmt"
	"math/rand/v2"
)

// ProtocolGenerator proposes protocol codes. Candidates may collide; the
// intake workflow checks and retries.
type ProtocolGenerator interface {
	Next(year int) string
}

type ProtocolFunc func(year int) string

func (f ProtocolFunc) Next(year int) string { return f(year) }

// RandomProtocols yields the year followed by six random digits, e.g. 2025004217.
func RandomProtocols() ProtocolGenerator {
	return ProtocolFunc(func(year int) string {
		return FormatProtocol(year, rand.IntN(1_000_000))
	})
}

func FormatProtocol(year, serial int) string {
	return fmt.Sprintf("%d%06d", year, serial%1_000_000)
}
