package whisper

import "encoding/json"

// Response is the verbose_json body returned by whisper-compatible servers.
// Servers differ in which timing detail they include.
type Response struct {
	Text     string       `json:"text"`
	Language string       `json:"language"`
	Duration float64      `json:"duration"`
	Segments []Segment    `json:"segments"`
	Words    []WordTiming `json:"words"`

	// VTT is set when the server answered with WebVTT instead of JSON.
	VTT string `json:"-"`
}

type Segment struct {
	ID           int          `json:"id"`
	Start        float64      `json:"start"`
	End          float64      `json:"end"`
	Text         string       `json:"text"`
	AvgLogprob   float64      `json:"avg_logprob"`
	NoSpeechProb float64      `json:"no_speech_prob"`
	Words        []WordTiming `json:"words"`
	Tokens       tokenList    `json:"tokens"`
}

type WordTiming struct {
	Word        string  `json:"word"`
	Start       float64 `json:"start"`
	End         float64 `json:"end"`
	Probability float64 `json:"probability"`
}

// Token is a sub-word unit with its own timing. whisper.cpp reports times as
// millisecond offsets.
type Token struct {
	Text    string  `json:"text"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	P       float64 `json:"p"`
	Offsets *struct {
		From int64 `json:"from"`
		To   int64 `json:"to"`
	} `json:"offsets,omitempty"`
}

func (t Token) times() (float64, float64) {
	if t.Offsets != nil {
		return float64(t.Offsets.From) / 1000, float64(t.Offsets.To) / 1000
	}
	return t.Start, t.End
}

// tokenList accepts token objects and ignores plain token id arrays.
type tokenList []Token

func (l *tokenList) UnmarshalJSON(data []byte) error {
	var tokens []Token
	if err := json.Unmarshal(data, &tokens); err != nil {
		*l = nil
		return nil
	}
	*l = tokens
	return nil
}
