package whisper

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/video-stream/transcut/internal/transcript"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func decode(t *testing.T, body string) *Response {
	t.Helper()
	r, err := decodeResponse([]byte(body))
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestWordTimestamps(t *testing.T) {
	r := decode(t, `{"text":"hello world","words":[
		{"word":" hello","start":0,"end":0.4,"probability":0.95},
		{"word":"world","start":0.5,"end":0.9}]}`)

	words, name := ExtractWords(r, DefaultStrategies)
	if name != "word_timestamps" {
		t.Fatalf("strategy = %q", name)
	}
	if len(words) != 2 || words[0].Text != "hello" || words[1].Confidence != 1.0 {
		t.Fatalf("words = %+v", words)
	}
	if !approx(words[0].Confidence, 0.95) {
		t.Errorf("confidence = %v", words[0].Confidence)
	}
}

func TestWordTimestampsFromSegments(t *testing.T) {
	r := decode(t, `{"segments":[{"start":0,"end":2,"text":"a b","words":[
		{"word":"a","start":0,"end":1,"probability":0.5},
		{"word":"b","start":1,"end":2,"probability":0.6}]}]}`)
	words := WordTimestamps{}.Extract(r)
	if len(words) != 2 || words[1].Text != "b" {
		t.Fatalf("words = %+v", words)
	}
}

func TestTokenTimestamps(t *testing.T) {
	r := decode(t, `{"segments":[{"start":0,"end":2,"text":" Hello there","tokens":[
		{"text":"[_BEG_]","p":1},
		{"text":" Hel","p":0.8,"offsets":{"from":0,"to":200}},
		{"text":"lo","p":1.0,"offsets":{"from":200,"to":500}},
		{"text":" there","p":0.6,"offsets":{"from":600,"to":1000}},
		{"text":"<|endoftext|>","p":1}]}]}`)

	words, name := ExtractWords(r, DefaultStrategies)
	if name != "token_timestamps" {
		t.Fatalf("strategy = %q", name)
	}
	if len(words) != 2 {
		t.Fatalf("words = %+v", words)
	}
	if words[0].Text != "Hello" || words[0].Start != 0 || words[0].End != 0.5 {
		t.Errorf("first = %+v", words[0])
	}
	// Mean probability 0.9 sits exactly on the ceiling.
	if !approx(words[0].Confidence, 0.9) {
		t.Errorf("first confidence = %v", words[0].Confidence)
	}
	if words[1].Text != "there" || !approx(words[1].Start, 0.6) || !approx(words[1].Confidence, 0.6) {
		t.Errorf("second = %+v", words[1])
	}
}

func TestTokenIDArraysIgnored(t *testing.T) {
	r := decode(t, `{"segments":[{"start":0,"end":1,"text":"one two","tokens":[50364, 472, 732]}]}`)
	words, name := ExtractWords(r, DefaultStrategies)
	if name != "interpolated" || len(words) != 2 {
		t.Fatalf("%s %+v", name, words)
	}
}

func TestInlineTags(t *testing.T) {
	r := decode(t, `{"segments":[{"start":1,"end":3,"text":"<00:00:01.000>Hi <00:00:02.000>there friend"}]}`)
	words, name := ExtractWords(r, DefaultStrategies)
	if name != "inline_tags" {
		t.Fatalf("strategy = %q", name)
	}
	want := []transcript.Word{
		{Text: "Hi", Start: 1, End: 2, Confidence: 0.8},
		{Text: "there", Start: 2, End: 2.5, Confidence: 0.8},
		{Text: "friend", Start: 2.5, End: 3, Confidence: 0.8},
	}
	if len(words) != len(want) {
		t.Fatalf("words = %+v", words)
	}
	for i := range want {
		if words[i].Text != want[i].Text || !approx(words[i].Start, want[i].Start) ||
			!approx(words[i].End, want[i].End) || !approx(words[i].Confidence, want[i].Confidence) {
			t.Errorf("word %d = %+v, want %+v", i, words[i], want[i])
		}
	}
}

func TestInterpolated(t *testing.T) {
	r := decode(t, `{"segments":[{"start":0,"end":3,"text":" one two three","no_speech_prob":0.5}]}`)
	words, name := ExtractWords(r, DefaultStrategies)
	if name != "interpolated" || len(words) != 3 {
		t.Fatalf("%s %+v", name, words)
	}
	if !approx(words[1].Start, 1) || !approx(words[1].End, 2) {
		t.Errorf("middle = %+v", words[1])
	}
	if !approx(words[0].Confidence, 0.35) {
		t.Errorf("confidence = %v", words[0].Confidence)
	}
}

func TestVTTResponse(t *testing.T) {
	r := decode(t, "WEBVTT\n\n00:00:00.000 --> 00:00:02.000\ngood morning\n")
	if r.VTT == "" {
		t.Fatal("expected VTT body")
	}
	words, name := ExtractWords(r, DefaultStrategies)
	if name != "interpolated" || len(words) != 2 {
		t.Fatalf("%s %+v", name, words)
	}
	if words[1].Text != "morning" || !approx(words[1].Start, 1) || words[1].Confidence != 0.7 {
		t.Errorf("second = %+v", words[1])
	}
}

func TestNoWords(t *testing.T) {
	r := decode(t, `{"text":"","segments":[]}`)
	if words, name := ExtractWords(r, DefaultStrategies); words != nil || name != "" {
		t.Errorf("got %v %q", words, name)
	}
	if words, _ := ExtractWords(nil, DefaultStrategies); words != nil {
		t.Error("nil response")
	}
	if _, err := decodeResponse([]byte("<html>")); err == nil {
		t.Error("expected decode error")
	}
}

func TestOffsetWords(t *testing.T) {
	words := []transcript.Word{{Text: "a", Start: 1, End: 2}}
	offsetWords(words, 600)
	if words[0].Start != 601 || words[0].End != 602 {
		t.Errorf("offset = %+v", words[0])
	}
}

func TestNormalizeLanguage(t *testing.T) {
	cases := map[string]string{"": "", "auto": "", "AUTO": "", "en": "en", "en-US": "en", "pt_BR": "pt", " ko ": "ko"}
	for in, want := range cases {
		if got := NormalizeLanguage(in); got != want {
			t.Errorf("NormalizeLanguage(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestResponseJSONTags(t *testing.T) {
	var r Response
	if err := json.Unmarshal([]byte(`{"language":"english","duration":4.5}`), &r); err != nil {
		t.Fatal(err)
	}
	if r.Language != "english" || r.Duration != 4.5 {
		t.Errorf("r = %+v", r)
	}
}
