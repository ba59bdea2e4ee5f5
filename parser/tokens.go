package parser

import (
	"regexp"
	"strings"
)

var (
	// houseHeader matches "삼익비치타운 216동": cluster name, building number.
	houseHeader = regexp.MustCompile(`^(.+?)\s+(\d+)동$`)
	// floorDescriptor matches "12/15층", "고/15층", "중/15층" or "저/15층".
	floorDescriptor = regexp.MustCompile(`(\d+|고|중|저)/\d+층`)
	// areaInfoLine is an area immediately followed by "(", e.g. "47평 (".
	// Grouping labels such as "40평대" never match it.
	areaInfoLine = regexp.MustCompile(`(?:재건축)?(\d+)(?:평|㎡)\s*\(`)
	// areaFallback is any "N평" on the floor line.
	areaFallback = regexp.MustCompile(`(?:재건축)?(\d+)평`)
	// direction captures the facing appended to the floor text, "36층남서향".
	direction = regexp.MustCompile(`\d+층((?:남서|남동|북서|북동|동|서|남|북)향)`)
	// priceLine matches "매매 18억" or "전세 2억 5,000".
	priceLine = regexp.MustCompile(`^(매매|전세)\s+(.+)$`)
	// multiItemMarker matches "중개사 3곳에서 ...".
	multiItemMarker = regexp.MustCompile(`중개사\s+\d+곳에서`)
	// dateLine matches "집주인확인매물 2026.01.20", "확인매물 ..." or "등록 ...".
	dateLine = regexp.MustCompile(`(?:집주인)?(?:확인매물|등록)\s+(\d{4})\.(\d{2})\.(\d{2})`)
	// floorPrefix marks a floor summary line, never an office name.
	floorPrefix = regexp.MustCompile(`^\d+/\d+층`)
)

// collapseMarker is the toggle printed right above the item list of a
// multi-listing unit.
const collapseMarker = "매물목록 접기"

const (
	quote    = `"`
	rangeSep = "~"
)

var nonOfficePrefixes = []string{"매물", "관심매물", "중개사", "매물목록", "이미지"}

func isHouseHeader(line string) bool {
	return houseHeader.MatchString(line)
}

// isNonOfficeLine reports lines that can follow a date but are never the
// agency name: promotional labels, image captions, floor summaries, headers.
func isNonOfficeLine(line string) bool {
	for _, p := range nonOfficePrefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return strings.Contains(line, "이미지") ||
		floorPrefix.MatchString(line) ||
		isHouseHeader(line)
}

func formatDate(m []string) string {
	return m[1] + "-" + m[2] + "-" + m[3]
}
