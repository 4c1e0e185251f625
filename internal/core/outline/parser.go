package outline

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/agenthands/inkwell/internal/core/model"
)

var (
	headingRe = regexp.MustCompile(`(?m)^##[ \t]*Chapter[ \t]+(\d+):[ \t]*(.*)$`)
	// A bolded label at the start of a line, optionally behind a bullet:
	// "**Summary:** text", "* **Key Events:**", "- **Setting**: text".
	labelRe = regexp.MustCompile(`^[ \t]*(?:[*+-][ \t]+)?\*\*([^*\n]+?)(?::\*\*|\*\*:)[ \t]*(.*)$`)
	// The same label anywhere inside a line.
	inlineLabelRe = regexp.MustCompile(`\*\*([^*\n]+?)(?::\*\*|\*\*:)`)
	bulletRe      = regexp.MustCompile(`^(?:[*+-]|\d+[.)])(?:[ \t]+|$)`)
)

const (
	summaryLabel   = "summary"
	keyEventsLabel = "key events"
)

// Parse splits outline text into chapter records ordered by chapter number.
// Text without any "## Chapter N: Title" heading yields an empty slice.
// A heading whose number is zero or does not fit an int still ends the block
// before it but produces no record.
func Parse(text string) []model.Chapter {
	matches := headingRe.FindAllStringSubmatchIndex(text, -1)
	chapters := make([]model.Chapter, 0, len(matches))

	for i, m := range matches {
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}

		num, err := strconv.Atoi(text[m[2]:m[3]])
		if err != nil || num <= 0 {
			continue
		}

		ch := model.Chapter{
			ChapterNumber: num,
			Title:         strings.TrimSpace(text[m[4]:m[5]]),
			RawContent:    text[m[0]:end],
		}

		// The heading line itself never carries a label.
		body := text[m[1]:end]
		sections := splitSections(body)
		if s, ok := sections[summaryLabel]; ok {
			summary := strings.TrimSpace(strings.Join(s, "\n"))
			ch.Summary = &summary
		}
		if s, ok := sections[keyEventsLabel]; ok {
			ch.KeyEvents = bulletLines(s)
		}

		chapters = append(chapters, ch)
	}

	sort.SliceStable(chapters, func(i, j int) bool {
		return chapters[i].ChapterNumber < chapters[j].ChapterNumber
	})
	return chapters
}

// splitSections groups the text of a chapter block under the bolded label that
// precedes it. A label starts a new section wherever it appears in a line.
// Text before the first label is dropped. The first occurrence of a label wins.
func splitSections(body string) map[string][]string {
	sections := make(map[string][]string)
	current := ""
	open := func(label string) {
		label = strings.ToLower(strings.TrimSpace(label))
		if _, seen := sections[label]; seen {
			current = ""
			return
		}
		current = label
		sections[label] = []string{}
	}
	add := func(text string) {
		if current == "" {
			return
		}
		if text = strings.TrimSpace(text); text != "" {
			sections[current] = append(sections[current], text)
		}
	}

	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimRight(line, "\r")
		rest := line
		labelled := false
		if m := labelRe.FindStringSubmatch(line); m != nil {
			open(m[1])
			rest = m[2]
			labelled = true
		}

		locs := inlineLabelRe.FindAllStringSubmatchIndex(rest, -1)
		switch {
		case len(locs) > 0:
			add(rest[:locs[0][0]])
		case labelled:
			add(rest)
		default:
			// Unlabelled lines are kept as-is, blank ones included.
			if current != "" {
				sections[current] = append(sections[current], line)
			}
		}

		for i, loc := range locs {
			open(rest[loc[2]:loc[3]])
			end := len(rest)
			if i+1 < len(locs) {
				end = locs[i+1][0]
			}
			add(rest[loc[1]:end])
		}
	}
	return sections
}

func bulletLines(lines []string) []string {
	events := []string{}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		line = strings.TrimSpace(bulletRe.ReplaceAllString(line, ""))
		if line == "" {
			continue
		}
		events = append(events, line)
	}
	return events
}

// Find returns the chapter with the given number.
func Find(chapters []model.Chapter, number int) (model.Chapter, bool) {
	i := sort.Search(len(chapters), func(i int) bool {
		return chapters[i].ChapterNumber >= number
	})
	if i < len(chapters) && chapters[i].ChapterNumber == number {
		return chapters[i], true
	}
	return model.Chapter{}, false
}
