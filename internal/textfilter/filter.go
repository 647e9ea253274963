// Package textfilter strips OCR boilerplate (page furniture, reader
// comments, scan noise) from converted documents. Input documents are
// mostly Chinese articles; the heuristics lean on CJK character ratios.
package textfilter

import (
	"regexp"
	"strings"
	"unicode"
)

// keyPointsMarker opens the summary section many source documents carry.
// Text inside that section is kept aggressively, text after it is suspect.
const keyPointsMarker = "划重点"

// MinContentChars is the protection threshold: when filtering leaves
// fewer content characters than this, the raw text is kept instead.
const MinContentChars = 4096

var (
	reNumberedPoint = regexp.MustCompile(`^\d+[、．.]`)
	reCNTimestamp   = regexp.MustCompile(`\d{4}年\d{1,2}月\d{1,2}日`)
	rePageNumber    = regexp.MustCompile(`^\s*\d+\s*$`)

	// symbol-heavy character class used for the garbage ratio check
	reUpperAndSyms = regexp.MustCompile("[A-Z\\s.,;:!@#$%^&*()_+=\\-\\[\\]{}|\\\\`~]")

	reUIPatterns = []*regexp.Regexp{
		regexp.MustCompile(`[A-Z]{3,}.*[A-Z]{3,}`), // runs of capitals, OCR mojibake
		regexp.MustCompile(`^\s*[A-Z\s]{10,}$`),
		regexp.MustCompile(`Qtr|DATA|ABIES|AIEEE`),
		regexp.MustCompile(`E\s*制$`),
	}
)

var commentMarkers = []string{
	"我的留言", "用户留言", "最新留言", "最热留言", "只看作者",
	"好的人", "这是前提", "首次发布:", "发布时间:", "写留言",
}

var definiteCommentMarkers = []string{
	"我的留言", "用户留言", "最新留言", "最热留言",
	"只看作者", "评论区", "留言区",
}

// Apply filters text and falls back to the unfiltered input when the
// result drops below the protection threshold.
func Apply(raw string) string {
	filtered := ExtractMainContent(raw)
	if ContentChars(filtered) < MinContentChars {
		return raw
	}
	return filtered
}

// ExtractMainContent picks a strategy: documents carrying the key-points
// marker get precise boundary filtering, everything else a conservative pass.
func ExtractMainContent(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	if strings.Contains(text, keyPointsMarker) {
		return extractWithKeyPointsBoundary(text)
	}
	return extractConservative(text)
}

// ContentChars counts non-whitespace runes, the unit the protection
// threshold is expressed in.
func ContentChars(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}

func extractWithKeyPointsBoundary(text string) string {
	var kept []string
	skipMode := false
	inKeyPoints := false
	keyPointsEnded := false

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.Contains(line, keyPointsMarker) {
			inKeyPoints = true
			keyPointsEnded = false
			kept = append(kept, line)
			continue
		}

		if inKeyPoints && !keyPointsEnded {
			if reNumberedPoint.MatchString(line) {
				kept = append(kept, line)
				continue
			}
			if isContinuationOfKeyPoint(line, kept) {
				kept = append(kept, line)
				continue
			}
			if isGarbage(line) {
				keyPointsEnded = true
				continue
			}
			if isCommentStart(line) {
				keyPointsEnded = true
				skipMode = true
				continue
			}
			if !looksLikeKeyPointContent(line) {
				keyPointsEnded = true
				// fall through: the line itself still has to pass the checks below
			}
		}

		if isCommentStart(line) {
			skipMode = true
			continue
		}
		if skipMode {
			continue
		}
		if isGarbage(line) {
			continue
		}
		if !inKeyPoints || keyPointsEnded {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

func extractConservative(text string) string {
	var kept []string
	skipMode := false

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if isGarbage(line) {
			continue
		}
		if isDefiniteCommentStart(line) {
			skipMode = true
			continue
		}
		if skipMode {
			// recover when clear body text resumes
			if looksLikeMainContent(line) && runeLen(line) > 20 && cjkRatio(line) > 0.6 {
				skipMode = false
			} else {
				continue
			}
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func isContinuationOfKeyPoint(line string, previous []string) bool {
	if len(previous) == 0 {
		return false
	}
	if reNumberedPoint.MatchString(previous[len(previous)-1]) {
		return true
	}
	return cjkRatio(line) > 0.3 && runeLen(line) > 5
}

func looksLikeKeyPointContent(line string) bool {
	n := runeLen(line)
	return cjkRatio(line) > 0.4 && n > 10 && n < 200 && !isGarbage(line)
}

func looksLikeMainContent(line string) bool {
	n := runeLen(line)
	if n < 5 {
		return false
	}
	return cjkRatio(line) > 0.5 && n > 8 && n < 300 && !isGarbage(line)
}

func isCommentStart(line string) bool {
	for _, m := range commentMarkers {
		if strings.Contains(line, m) {
			return true
		}
	}
	return false
}

func isDefiniteCommentStart(line string) bool {
	for _, m := range definiteCommentMarkers {
		if strings.Contains(line, m) {
			return true
		}
	}
	return false
}

func isGarbage(line string) bool {
	n := runeLen(line)

	// symbol/capital dominated lines
	if n > 10 {
		hits := len(reUpperAndSyms.FindAllString(line, -1))
		if float64(hits) > float64(n)*0.7 {
			return true
		}
	}

	if reCNTimestamp.MatchString(line) {
		return true
	}
	if rePageNumber.MatchString(line) {
		return true
	}
	for _, re := range reUIPatterns {
		if re.MatchString(line) {
			return true
		}
	}

	// very short lines of mixed junk
	if n < 5 {
		for _, r := range line {
			if !isWordRune(r) {
				return true
			}
		}
	}
	return false
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Han, r)
}

func cjkRatio(line string) float64 {
	if line == "" {
		return 0
	}
	total, han := 0, 0
	for _, r := range line {
		total++
		if unicode.Is(unicode.Han, r) {
			han++
		}
	}
	return float64(han) / float64(total)
}

func runeLen(s string) int {
	n := 0
	for range s {
		n++
	}
	return n
}
