package parser

import (
	"math/rand"
	"reflect"
	"strings"
	"testing"

	"boohill-ingest/models"
)

func join(lines ...string) string { return strings.Join(lines, "\n") }

func hasLog(logs []string, substr string) bool {
	for _, l := range logs {
		if strings.Contains(l, substr) {
			return true
		}
	}
	return false
}

func countLogs(logs []string, substr string) int {
	n := 0
	for _, l := range logs {
		if strings.Contains(l, substr) {
			n++
		}
	}
	return n
}

func priceOf(it *models.ParsedItem) float64 {
	if it.Price == nil {
		return -1
	}
	return *it.Price
}

func TestParseSingleHouse(t *testing.T) {
	text := join(
		"삼익비치타운 216동",
		"아파트",
		"12/15층남향 재건축47평 (전용 120㎡)",
		"매매 18억",
		`"바다 조망, 올수리"`,
		"확인매물 2026.01.20",
		"부동산뱅크공인중개사사무소",
	)

	res := Parse(text)
	if len(res.Houses) != 1 {
		t.Fatalf("houses: got %d, want 1\n%s", len(res.Houses), strings.Join(res.Logs, "\n"))
	}
	h := res.Houses[0]

	if h.ClusterName != "삼익비치타운" || h.BuildingNumber != "216" {
		t.Errorf("header: got %q %q", h.ClusterName, h.BuildingNumber)
	}
	if h.UnitNumber != "120X" {
		t.Errorf("unit: got %q, want 120X", h.UnitNumber)
	}
	if h.Area != "47" {
		t.Errorf("area: got %q, want 47", h.Area)
	}
	if h.Direction != "남향" {
		t.Errorf("direction: got %q, want 남향", h.Direction)
	}
	if h.Key != "삼익비치타운|216|120x|47" {
		t.Errorf("key: got %q", h.Key)
	}

	if len(h.Items) != 1 {
		t.Fatalf("items: got %d, want 1", len(h.Items))
	}
	it := h.Items[0]
	if it.TransactionType != models.Sale || priceOf(it) != 1800000000 {
		t.Errorf("item: got %s %v", it.TransactionType, priceOf(it))
	}
	if it.Remark != "바다 조망, 올수리" {
		t.Errorf("remark: got %q", it.Remark)
	}
	if it.LastUpdated != "2026-01-20" {
		t.Errorf("date: got %q", it.LastUpdated)
	}
	if it.Office != "부동산뱅크공인중개사사무소" {
		t.Errorf("office: got %q", it.Office)
	}
	if !hasLog(res.Logs, "Area at line 3: 47평 (info-line)") {
		t.Errorf("missing info-line area trace:\n%s", strings.Join(res.Logs, "\n"))
	}
}

func TestParseEmptyInput(t *testing.T) {
	for _, in := range []string{"", "   ", "\r\n\r\n"} {
		res := Parse(in)
		if len(res.Houses) != 0 || len(res.Logs) != 0 {
			t.Errorf("Parse(%q) = %d houses, %d logs; want none", in, len(res.Houses), len(res.Logs))
		}
	}
}

func TestParseRunHeaderTrace(t *testing.T) {
	res := Parse("a\nb\r\nc")
	want := []string{
		"Raw length: 6, LF count: 2",
		"Total lines: 3",
		"First lines: [1] a | [2] b | [3] c",
	}
	if !reflect.DeepEqual(res.Logs, want) {
		t.Errorf("logs:\n got %q\nwant %q", res.Logs, want)
	}
}

func TestConsecutiveHeadersAreDropped(t *testing.T) {
	res := Parse(join("삼익비치타운 216동", "삼익비치타운 217동"))

	if len(res.Houses) != 0 {
		t.Errorf("houses: got %d, want 0", len(res.Houses))
	}
	if n := countLogs(res.Logs, "Skipped house"); n != 2 {
		t.Errorf("skipped-house lines: got %d, want 2\n%s", n, strings.Join(res.Logs, "\n"))
	}
}

func TestMultiItemSummarySkippedOnce(t *testing.T) {
	text := join(
		"삼익비치타운 216동",
		"고/15층북동향 47평 (156㎡)",
		"중개사 3곳에서 매물 3개",
		"매물목록 접기",
		"매매 18억 ~ 20억",
		"매매 18억",
		"확인매물 2026.01.20",
		"이미지 3",
		"좋은공인중개사",
		"매매 17억 ~ 18억",
		"등록 2026.01.19",
		"한빛공인중개사",
	)

	res := Parse(text)
	if len(res.Houses) != 1 {
		t.Fatalf("houses: got %d, want 1", len(res.Houses))
	}
	h := res.Houses[0]
	if h.UnitNumber != UnitHigh || h.Direction != "북동향" {
		t.Errorf("descriptors: unit %q direction %q", h.UnitNumber, h.Direction)
	}
	if len(h.Items) != 2 {
		t.Fatalf("items: got %d, want 2\n%s", len(h.Items), strings.Join(res.Logs, "\n"))
	}
	if priceOf(h.Items[0]) != 1800000000 || h.Items[0].Office != "좋은공인중개사" {
		t.Errorf("item #1: got %v %q", priceOf(h.Items[0]), h.Items[0].Office)
	}
	// Only the first range line is a summary.
	if priceOf(h.Items[1]) != 1700000000 || h.Items[1].Office != "한빛공인중개사" {
		t.Errorf("item #2: got %v %q", priceOf(h.Items[1]), h.Items[1].Office)
	}
	if n := countLogs(res.Logs, "Skip summary price"); n != 1 {
		t.Errorf("summary skips: got %d, want 1", n)
	}
	if !hasLog(res.Logs, "Items start after line 4") {
		t.Errorf("collapse marker not traced")
	}
}

func TestSingleItemRangePriceIsKept(t *testing.T) {
	res := Parse(join("삼익비치타운 216동", "매매 18억 ~ 20억"))
	if len(res.Houses) != 1 || len(res.Houses[0].Items) != 1 {
		t.Fatalf("want one house with one item, logs:\n%s", strings.Join(res.Logs, "\n"))
	}
	if got := priceOf(res.Houses[0].Items[0]); got != 1800000000 {
		t.Errorf("price: got %v, want 1800000000", got)
	}
}

func TestQuotedRemarkSpansThreeLines(t *testing.T) {
	text := join(
		"삼익비치타운 216동",
		"매매 18억",
		`"바다 조망`,
		"전세 끼고 매매 가능",
		`올수리"`,
		"확인매물 2026.01.20",
		"바다공인중개사",
	)

	res := Parse(text)
	if len(res.Houses) != 1 {
		t.Fatalf("houses: got %d, want 1", len(res.Houses))
	}
	items := res.Houses[0].Items
	if len(items) != 1 {
		t.Fatalf("items: got %d, want 1 (the lease line belongs to the remark)", len(items))
	}
	if items[0].Remark != "바다 조망 전세 끼고 매매 가능 올수리" {
		t.Errorf("remark: got %q", items[0].Remark)
	}
	if !hasLog(res.Logs, "Remark captured through line 5") {
		t.Errorf("scan should resume after the closing line:\n%s", strings.Join(res.Logs, "\n"))
	}
	if items[0].LastUpdated != "2026-01-20" || items[0].Office != "바다공인중개사" {
		t.Errorf("date/office after remark: %q %q", items[0].LastUpdated, items[0].Office)
	}
}

func TestHeaderEndsItemScan(t *testing.T) {
	text := join(
		"삼익비치타운 101동",
		"매매 5억",
		"삼익비치타운 102동",
		"전세 3억",
	)

	res := Parse(text)
	if len(res.Houses) != 2 {
		t.Fatalf("houses: got %d, want 2", len(res.Houses))
	}
	if res.Houses[0].BuildingNumber != "101" || len(res.Houses[0].Items) != 1 {
		t.Errorf("house 101: %s", res.Houses[0].Display())
	}
	if res.Houses[1].Items[0].TransactionType != models.Lease {
		t.Errorf("house 102 item: %s", res.Houses[1].Items[0].Display())
	}
}

func TestInBatchDuplicateItemsDropped(t *testing.T) {
	text := join(
		"삼익비치타운 101동",
		"매매 5억",
		"등록 2026.01.01",
		"가나공인중개사",
		"매매 5억",
		"등록 2026.01.02",
		"가나공인중개사",
	)

	res := Parse(text)
	if len(res.Houses) != 1 || len(res.Houses[0].Items) != 1 {
		t.Fatalf("want one house with one item, logs:\n%s", strings.Join(res.Logs, "\n"))
	}
	if res.Houses[0].Items[0].LastUpdated != "2026-01-01" {
		t.Errorf("first occurrence should win")
	}
	if !hasLog(res.Logs, "Duplicate item skipped") {
		t.Errorf("duplicate not traced")
	}
}

func TestItemWithoutPriceOrOfficeIsNoise(t *testing.T) {
	res := Parse(join("삼익비치타운 101동", "매매 협의"))
	if len(res.Houses) != 0 {
		t.Errorf("houses: got %d, want 0", len(res.Houses))
	}
}

func TestOfficeWithoutPriceIsRetained(t *testing.T) {
	res := Parse(join("삼익비치타운 101동", "매매 협의", "등록 2026.01.01", "가나공인중개사"))
	if len(res.Houses) != 1 {
		t.Fatalf("houses: got %d, want 1", len(res.Houses))
	}
	it := res.Houses[0].Items[0]
	if it.Price != nil || it.Office != "가나공인중개사" {
		t.Errorf("item: %s", it.Display())
	}
}

func TestLineEndingsAndInvisibles(t *testing.T) {
	text := "\uFEFF삼익비치타운 216동\r저/15층 (\r\n매매\u200B 2억5000만\r"

	res := Parse(text)
	if len(res.Houses) != 1 {
		t.Fatalf("houses: got %d, want 1\n%s", len(res.Houses), strings.Join(res.Logs, "\n"))
	}
	h := res.Houses[0]
	if h.BuildingNumber != "216" || h.UnitNumber != UnitLow {
		t.Errorf("house: %s", h.Display())
	}
	if h.Area != "47" {
		t.Errorf("area should stay at the default, got %q", h.Area)
	}
	if got := priceOf(h.Items[0]); got != 250000000 {
		t.Errorf("price: got %v, want 250000000", got)
	}
}

func TestDescriptorWindowBound(t *testing.T) {
	build := func(filler int) string {
		lines := []string{"삼익비치타운 216동"}
		for i := 0; i < filler; i++ {
			lines = append(lines, "안내")
		}
		lines = append(lines, "7/15층 59평", "매매 9억")
		return join(lines...)
	}

	// header + 13 filler puts the floor line at offset 14, the last one probed.
	if h := Parse(build(13)).Houses[0]; h.UnitNumber != "70X" || h.Area != "59" {
		t.Errorf("inside window: unit %q area %q", h.UnitNumber, h.Area)
	}
	// One more filler line pushes it out.
	if h := Parse(build(14)).Houses[0]; h.UnitNumber != "" || h.Area != "47" {
		t.Errorf("outside window: unit %q area %q", h.UnitNumber, h.Area)
	}
	if k := Parse(build(14)).Houses[0].Key; !strings.Contains(k, "<null>") {
		t.Errorf("key without unit should carry <null>: %q", k)
	}
}

func TestFirstFloorLineWins(t *testing.T) {
	text := join(
		"삼익비치타운 216동",
		"3/15층 47평 (",
		"12/15층남향 59평 (",
		"매매 9억",
	)
	h := Parse(text).Houses[0]
	if h.UnitNumber != "30X" || h.Area != "47" || h.Direction != "" {
		t.Errorf("got unit %q area %q direction %q; want 30X 47 and no direction", h.UnitNumber, h.Area, h.Direction)
	}
}

func TestAreaFallbackIgnoresOtherLines(t *testing.T) {
	text := join(
		"삼익비치타운 216동",
		"40평대 인기 매물",
		"8/15층 재건축52평",
		"매매 9억",
	)
	h := Parse(text).Houses[0]
	if h.Area != "52" {
		t.Errorf("area: got %q, want 52", h.Area)
	}
}

func TestParseOptions(t *testing.T) {
	p := New(Options{DefaultArea: "59"})
	if p.opts.HeaderWindow != 15 || p.opts.OfficeLookahead != 4 {
		t.Errorf("zero options should default, got %+v", p.opts)
	}
	h := p.Parse(join("삼익비치타운 216동", "매매 9억")).Houses[0]
	if h.Area != "59" {
		t.Errorf("area: got %q, want configured default 59", h.Area)
	}
}

func TestTraceIsReproducible(t *testing.T) {
	text := join(
		"삼익비치타운 216동",
		"중/15층서향 47평 (",
		"중개사 2곳에서",
		"매물목록 접기",
		"매매 18억 ~ 19억",
		"매매 18억",
		"등록 2026.02.01",
		"가나공인중개사",
	)
	a, b := Parse(text), Parse(text)
	if !reflect.DeepEqual(a.Logs, b.Logs) {
		t.Errorf("trace differs between identical runs")
	}
}

var fuzzVocabulary = []string{
	"", "   ", "삼익비치타운 216동", "삼익비치타운 217동", "매매 18억", "전세 2억 5,000",
	"매매 18억 ~ 20억", "매매 협의", "고/15층남향 47평 (", "12/15층 59평",
	"중개사 3곳에서", "매물목록 접기", `"한 줄 비고"`, `"열린 비고`, `닫힘"`,
	"확인매물 2026.01.20", "등록 2025.12.31", "가나공인중개사", "이미지 3", "매물 2",
}

func TestRandomInputInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 300; round++ {
		n := rng.Intn(40)
		lines := make([]string, n)
		for i := range lines {
			lines[i] = fuzzVocabulary[rng.Intn(len(fuzzVocabulary))]
		}
		text := join(lines...)

		res := Parse(text)
		for _, h := range res.Houses {
			if len(h.Items) == 0 {
				t.Fatalf("round %d: house without items kept: %s", round, h.Display())
			}
			for _, it := range h.Items {
				if !it.Retained() {
					t.Fatalf("round %d: item violates retention rule: %s", round, it.Display())
				}
			}
			again, dropped := DeduplicateItems(h.Items)
			if len(dropped) != 0 || !reflect.DeepEqual(again, h.Items) {
				t.Fatalf("round %d: dedup is not idempotent for %s", round, h.Display())
			}
		}
	}
}

func TestOfficeLookaheadSkipsHouseHeader(t *testing.T) {
	text := join(
		"단지 101동",
		"매매 5억",
		"등록 2026.01.01",
		"단지 102동",
		"가나공인중개사",
		"매매 6억",
	)

	res := Parse(text)
	if len(res.Houses) != 2 {
		t.Fatalf("houses: got %d, want 2\n%s", len(res.Houses), strings.Join(res.Logs, "\n"))
	}
	first := res.Houses[0]
	if first.BuildingNumber != "101" || len(first.Items) != 1 {
		t.Fatalf("house 101: %s", first.Display())
	}
	if got := first.Items[0].Office; got != "가나공인중개사" {
		t.Errorf("office: got %q, want the line past the header", got)
	}
	if !hasLog(res.Logs, "Office at line 5: 가나공인중개사") {
		t.Errorf("office not traced:\n%s", strings.Join(res.Logs, "\n"))
	}

	second := res.Houses[1]
	if second.BuildingNumber != "102" || len(second.Items) != 1 || priceOf(second.Items[0]) != 600000000 {
		t.Errorf("house 102: %s", second.Display())
	}
}
