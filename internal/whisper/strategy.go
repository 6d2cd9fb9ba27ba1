package whisper

import (
	"regexp"
	"strings"

	"github.com/video-stream/transcut/internal/transcript"
)

// Confidence ceilings per strategy. Timings that are derived rather than
// reported by the engine are never presented as more certain than these.
const (
	ceilingWordTimestamps  = 1.0
	ceilingTokenTimestamps = 0.9
	ceilingInlineTags      = 0.8
	ceilingInterpolated    = 0.7
)

// Strategy turns an engine response into timed words.
type Strategy interface {
	Name() string
	Extract(resp *Response) []transcript.Word
}

// DefaultStrategies is the ranked extraction chain, best first.
var DefaultStrategies = []Strategy{
	WordTimestamps{},
	TokenTimestamps{},
	InlineTags{},
	Interpolated{},
}

// ExtractWords runs the strategies in order and returns the first non-empty
// result together with the name of the strategy that produced it.
func ExtractWords(resp *Response, strategies []Strategy) ([]transcript.Word, string) {
	if resp == nil {
		return nil, ""
	}
	for _, s := range strategies {
		if words := s.Extract(resp); len(words) > 0 {
			return words, s.Name()
		}
	}
	return nil, ""
}

// WordTimestamps uses word timings reported by the engine.
type WordTimestamps struct{}

func (WordTimestamps) Name() string { return "word_timestamps" }

func (WordTimestamps) Extract(resp *Response) []transcript.Word {
	timings := resp.Words
	if len(timings) == 0 {
		for _, seg := range resp.Segments {
			timings = append(timings, seg.Words...)
		}
	}
	var out []transcript.Word
	for _, w := range timings {
		conf := w.Probability
		if conf <= 0 {
			conf = ceilingWordTimestamps
		}
		out = appendWord(out, w.Word, w.Start, w.End, conf, ceilingWordTimestamps)
	}
	return out
}

// TokenTimestamps merges timed tokens into words. A token that starts with a
// space begins a new word.
type TokenTimestamps struct{}

func (TokenTimestamps) Name() string { return "token_timestamps" }

func (TokenTimestamps) Extract(resp *Response) []transcript.Word {
	var out []transcript.Word
	for _, seg := range resp.Segments {
		var (
			text       strings.Builder
			start, end float64
			probSum    float64
			count      int
		)
		flush := func() {
			if count > 0 {
				out = appendWord(out, text.String(), start, end, probSum/float64(count), ceilingTokenTimestamps)
			}
			text.Reset()
			probSum, count = 0, 0
		}

		for _, tok := range seg.Tokens {
			if isSpecialToken(tok.Text) {
				continue
			}
			ts, te := tok.times()
			if strings.HasPrefix(tok.Text, " ") || count == 0 {
				flush()
				start = ts
			}
			text.WriteString(tok.Text)
			end = te
			probSum += tok.P
			count++
		}
		flush()
	}
	return out
}

func isSpecialToken(text string) bool {
	return strings.HasPrefix(text, "[_") || strings.HasPrefix(text, "<|")
}

var inlineTagRe = regexp.MustCompile(`<(\d{2}:\d{2}:\d{2}\.\d{3})>`)

// InlineTags reads karaoke-style <HH:MM:SS.mmm> tags that mark word starts,
// either in segment text or in VTT cue text.
type InlineTags struct{}

func (InlineTags) Name() string { return "inline_tags" }

func (InlineTags) Extract(resp *Response) []transcript.Word {
	var out []transcript.Word
	for _, seg := range resp.Segments {
		out = appendTagged(out, seg.Text, seg.Start, seg.End)
	}
	if len(out) == 0 && resp.VTT != "" {
		for _, cue := range transcript.ParseVTT(resp.VTT) {
			out = appendTagged(out, cue.Text, cue.Start, cue.End)
		}
	}
	return out
}

func appendTagged(out []transcript.Word, text string, segStart, segEnd float64) []transcript.Word {
	locs := inlineTagRe.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		return out
	}

	type piece struct {
		start float64
		text  string
	}
	var pieces []piece
	if lead := stripTags(text[:locs[0][0]]); lead != "" {
		pieces = append(pieces, piece{start: segStart, text: lead})
	}
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		pieces = append(pieces, piece{
			start: transcript.ParseTimestamp(text[loc[2]:loc[3]]),
			text:  stripTags(text[loc[1]:end]),
		})
	}

	for i, p := range pieces {
		end := segEnd
		if i+1 < len(pieces) {
			end = pieces[i+1].start
		}
		words := strings.Fields(p.text)
		if len(words) == 0 {
			continue
		}
		step := (end - p.start) / float64(len(words))
		for j, w := range words {
			ws := p.start + float64(j)*step
			out = appendWord(out, w, ws, ws+step, ceilingInlineTags, ceilingInlineTags)
		}
	}
	return out
}

var anyTagRe = regexp.MustCompile(`<[^>]*>`)

func stripTags(s string) string {
	return strings.TrimSpace(anyTagRe.ReplaceAllString(s, ""))
}

// Interpolated spreads each segment's duration evenly across its words.
type Interpolated struct{}

func (Interpolated) Name() string { return "interpolated" }

func (Interpolated) Extract(resp *Response) []transcript.Word {
	var out []transcript.Word
	for _, seg := range resp.Segments {
		conf := ceilingInterpolated * (1 - seg.NoSpeechProb)
		out = appendSpread(out, seg.Text, seg.Start, seg.End, conf)
	}
	if len(out) == 0 && resp.VTT != "" {
		for _, cue := range transcript.ParseVTT(resp.VTT) {
			out = appendSpread(out, stripTags(cue.Text), cue.Start, cue.End, ceilingInterpolated)
		}
	}
	return out
}

func appendSpread(out []transcript.Word, text string, start, end, conf float64) []transcript.Word {
	words := strings.Fields(text)
	if len(words) == 0 || end <= start {
		return out
	}
	step := (end - start) / float64(len(words))
	for i, w := range words {
		ws := start + float64(i)*step
		out = appendWord(out, w, ws, ws+step, conf, ceilingInterpolated)
	}
	return out
}

func appendWord(out []transcript.Word, text string, start, end, conf, ceiling float64) []transcript.Word {
	text = strings.TrimSpace(text)
	if text == "" {
		return out
	}
	if end < start {
		end = start
	}
	if conf > ceiling {
		conf = ceiling
	}
	if conf < 0 {
		conf = 0
	}
	return append(out, transcript.Word{Text: text, Start: start, End: end, Confidence: conf})
}

// offsetWords shifts word times by offset seconds in place.
func offsetWords(words []transcript.Word, offset float64) {
	for i := range words {
		words[i].Start += offset
		words[i].End += offset
	}
}
