package parser

import "strconv"

// Sentinel unit codes for floors the portal only gives qualitatively.
const (
	UnitHigh = "ZXX"
	UnitMid  = "YXX"
	UnitLow  = "XXX"
)

// EncodeUnit maps the floor token of "12/15층" to a unit code. The portal
// never prints the unit digit, so a numeric floor n becomes "{n}0X".
// Unrecognised tokens fall back to UnitLow.
func EncodeUnit(floor string) string {
	switch floor {
	case "고":
		return UnitHigh
	case "중":
		return UnitMid
	case "저":
		return UnitLow
	}
	n, err := strconv.Atoi(floor)
	if err != nil {
		return UnitLow
	}
	return strconv.Itoa(n) + "0X"
}
