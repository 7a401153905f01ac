package stlink

// DefaultSWDClockDivisor selects 1800 kHz.
const DefaultSWDClockDivisor uint16 = 1

// swdClocks maps SWD clock rates in kHz to firmware divisors, fastest first.
var swdClocks = []struct {
	KHz     int
	Divisor uint16
}{
	{4000, 0},
	{1800, 1},
	{1200, 2},
	{950, 3},
	{480, 7},
	{240, 15},
	{125, 31},
	{100, 40},
	{50, 79},
	{25, 158},
	{15, 265},
	{5, 798},
}

// SWDClockDivisor returns the divisor of the fastest supported rate that does
// not exceed khz, and that rate. Rates below 5 kHz clamp to 5 kHz.
func SWDClockDivisor(khz int) (uint16, int) {
	for _, c := range swdClocks {
		if c.KHz <= khz {
			return c.Divisor, c.KHz
		}
	}
	last := swdClocks[len(swdClocks)-1]
	return last.Divisor, last.KHz
}
