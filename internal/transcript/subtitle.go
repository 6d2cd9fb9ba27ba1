package transcript

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Cue is one timed subtitle block.
type Cue struct {
	Index int     `json:"index"`
	Start float64 `json:"start"` // seconds
	End   float64 `json:"end"`   // seconds
	Text  string  `json:"text"`
}

var timestampRe = regexp.MustCompile(`(\d{2}:\d{2}:\d{2}[.,]\d{3})\s*-->\s*(\d{2}:\d{2}:\d{2}[.,]\d{3})`)

// FormatSRT renders one SubRip block per word.
func FormatSRT(words []Word) string {
	var sb strings.Builder
	for i, w := range words {
		fmt.Fprintf(&sb, "%d\n", i+1)
		fmt.Fprintf(&sb, "%s --> %s\n", FormatTimestamp(w.Start, ','), FormatTimestamp(w.End, ','))
		sb.WriteString(w.Text)
		sb.WriteString("\n\n")
	}
	return sb.String()
}

// FormatVTT renders a WebVTT document with one cue per word.
func FormatVTT(words []Word) string {
	var sb strings.Builder
	sb.WriteString("WEBVTT\n\n")
	for i, w := range words {
		fmt.Fprintf(&sb, "%d\n", i+1)
		fmt.Fprintf(&sb, "%s --> %s\n", FormatTimestamp(w.Start, '.'), FormatTimestamp(w.End, '.'))
		sb.WriteString(w.Text)
		sb.WriteString("\n\n")
	}
	return sb.String()
}

// ParseVTT parses WebVTT (or SRT) content into cues.
func ParseVTT(content string) []Cue {
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
	var cues []Cue
	var current *Cue
	index := 0

	for _, line := range lines {
		line = strings.TrimSpace(line)

		if line == "WEBVTT" || strings.HasPrefix(line, "WEBVTT ") || line == "" {
			if current != nil && current.Text != "" {
				cues = append(cues, *current)
				current = nil
			}
			continue
		}

		if m := timestampRe.FindStringSubmatch(line); len(m) == 3 {
			if current != nil && current.Text != "" {
				cues = append(cues, *current)
			}
			index++
			current = &Cue{
				Index: index,
				Start: ParseTimestamp(m[1]),
				End:   ParseTimestamp(m[2]),
			}
			continue
		}

		// cue identifiers
		if _, err := strconv.Atoi(line); err == nil && current == nil {
			continue
		}

		if current != nil {
			if current.Text != "" {
				current.Text += "\n"
			}
			current.Text += line
		}
	}

	if current != nil && current.Text != "" {
		cues = append(cues, *current)
	}
	return cues
}

// ParseTimestamp parses HH:MM:SS.mmm or HH:MM:SS,mmm into seconds.
func ParseTimestamp(ts string) float64 {
	ts = strings.Replace(ts, ",", ".", 1)
	var h, m, s, ms int
	fmt.Sscanf(ts, "%d:%d:%d.%d", &h, &m, &s, &ms)
	return float64(h*3600+m*60+s) + float64(ms)/1000.0
}

// FormatTimestamp formats seconds as HH:MM:SS<sep>mmm.
func FormatTimestamp(seconds float64, sep byte) string {
	if seconds < 0 {
		seconds = 0
	}
	totalMs := int64(math.Round(seconds * 1000))
	h := totalMs / 3600000
	totalMs %= 3600000
	m := totalMs / 60000
	totalMs %= 60000
	s := totalMs / 1000
	ms := totalMs % 1000
	return fmt.Sprintf("%02d:%02d:%02d%c%03d", h, m, s, sep, ms)
}
