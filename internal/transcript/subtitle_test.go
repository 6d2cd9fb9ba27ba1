package transcript

import "testing"

func TestFormatSRTExact(t *testing.T) {
	words := []Word{{Text: "hi", Start: 0, End: 0.5, Confidence: 1}}
	want := "1\n00:00:00,000 --> 00:00:00,500\nhi\n\n"
	if got := FormatSRT(words); got != want {
		t.Errorf("FormatSRT = %q, want %q", got, want)
	}
}

func TestFormatVTTExact(t *testing.T) {
	words := []Word{{Text: "hi", Start: 0, End: 0.5, Confidence: 1}}
	want := "WEBVTT\n\n1\n00:00:00.000 --> 00:00:00.500\nhi\n\n"
	if got := FormatVTT(words); got != want {
		t.Errorf("FormatVTT = %q, want %q", got, want)
	}
}

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		in   float64
		sep  byte
		want string
	}{
		{0, ',', "00:00:00,000"},
		{3723.456, '.', "01:02:03.456"},
		{0.29, ',', "00:00:00,290"},
		{-1, '.', "00:00:00.000"},
	}
	for _, tt := range tests {
		if got := FormatTimestamp(tt.in, tt.sep); got != tt.want {
			t.Errorf("FormatTimestamp(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseVTTRoundTrip(t *testing.T) {
	words := []Word{
		{Text: "one", Start: 0, End: 0.5},
		{Text: "two", Start: 1.25, End: 2},
	}
	cues := ParseVTT(FormatVTT(words))
	if len(cues) != 2 {
		t.Fatalf("got %d cues, want 2", len(cues))
	}
	if cues[1].Text != "two" || cues[1].Start != 1.25 || cues[1].End != 2 {
		t.Errorf("cue = %+v", cues[1])
	}

	srt := ParseVTT(FormatSRT(words))
	if len(srt) != 2 || srt[0].Text != "one" {
		t.Errorf("SRT parse = %+v", srt)
	}
}

func TestParseVTTMultilineCue(t *testing.T) {
	content := "WEBVTT\r\n\r\n00:00:01.000 --> 00:00:02.000\r\nline one\r\nline two\r\n"
	cues := ParseVTT(content)
	if len(cues) != 1 || cues[0].Text != "line one\nline two" {
		t.Errorf("cues = %+v", cues)
	}
}
