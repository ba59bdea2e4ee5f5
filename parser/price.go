package parser

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	eokUnit = 100000000 // 억
	manUnit = 10000     // 만
)

var (
	// changeSuffix is the "변동상승내역 보기" link text glued to some prices.
	changeSuffix = regexp.MustCompile(`변동.+$`)
	eokAmount    = regexp.MustCompile(`(\d+(?:\.\d+)?)억`)
	manAmount    = regexp.MustCompile(`(\d+(?:\.\d+)?)만`)
	// eokRemainder is the "17억5000" idiom: the tail is in 만 units.
	eokRemainder = regexp.MustCompile(`억(\d+(?:\.\d+)?)`)
	bareAmount   = regexp.MustCompile(`^\d+(?:\.\d+)?$`)
)

// ParsePrice converts the text after "매매"/"전세" into won.
// Examples:
//
//	"18억"            → 1,800,000,000
//	"17억 5,000"      → 1,750,000,000
//	"2억5000만"       → 250,000,000
//	"18억 ~ 20억"     → 1,800,000,000 (first half of a range)
//	"9,500"           → 95,000,000 (bare number, 만 units)
//
// It returns nil when nothing positive can be read.
func ParsePrice(text string) *float64 {
	raw := strings.TrimSpace(text)
	if raw == "" {
		return nil
	}

	if i := strings.Index(raw, rangeSep); i >= 0 {
		raw = strings.TrimSpace(raw[:i])
	}
	raw = changeSuffix.ReplaceAllString(raw, "")
	raw = strings.NewReplacer(",", "", " ", "").Replace(raw)

	var total float64
	hasEok, hasMan := false, false

	if m := eokAmount.FindStringSubmatch(raw); m != nil {
		total += parseAmount(m[1]) * eokUnit
		hasEok = true
	}
	if m := manAmount.FindStringSubmatch(raw); m != nil {
		total += parseAmount(m[1]) * manUnit
		hasMan = true
	}
	if !hasMan {
		if m := eokRemainder.FindStringSubmatch(raw); m != nil {
			total += parseAmount(m[1]) * manUnit
		}
	}
	if !hasEok && !hasMan && bareAmount.MatchString(raw) {
		total = parseAmount(raw) * manUnit
	}

	if total <= 0 {
		return nil
	}
	return &total
}

func parseAmount(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
