package transcript

import (
	"strings"
	"testing"
)

func TestMaskSensitive_Email(t *testing.T) {
	got := MaskSensitive("제 메일은 test@example.com 입니다")
	if !strings.Contains(got, MaskEmail) {
		t.Errorf("expected %s placeholder, got %q", MaskEmail, got)
	}
	if strings.Contains(got, "test@example.com") {
		t.Errorf("email survived masking: %q", got)
	}
}

func TestMaskSensitive_Card(t *testing.T) {
	got := MaskSensitive("카드번호는 1234-5678-9012-3456 이에요")
	if got != "카드번호는 [CARD] 이에요" {
		t.Errorf("unexpected masked text: %q", got)
	}
}

func TestMaskSensitive_Phone(t *testing.T) {
	for _, input := range []string{
		"연락처는 010-1234-5678 입니다",
		"연락처는 01012345678 입니다",
	} {
		got := MaskSensitive(input)
		if !strings.Contains(got, MaskPhone) {
			t.Errorf("expected %s in %q", MaskPhone, got)
		}
	}
}

func TestMaskSensitive_RRN(t *testing.T) {
	got := MaskSensitive("주민번호 901231-1234567 맞으시죠")
	if got != "주민번호 [RRN] 맞으시죠" {
		t.Errorf("unexpected masked text: %q", got)
	}
}

func TestMaskSensitive_Idempotent(t *testing.T) {
	input := "메일 a@b.co 전화 010-1111-2222 주민 901231-1234567 카드 1111 2222 3333 4444"
	once := MaskSensitive(input)
	twice := MaskSensitive(once)
	if once != twice {
		t.Errorf("masking is not idempotent:\nonce:  %q\ntwice: %q", once, twice)
	}
}

func TestMaskResult_AppliesEverywhere(t *testing.T) {
	r := &Result{
		Segments:       []Segment{seg("0", "메일은 test@example.com", 0, 1)},
		Speakers:       []Speaker{{SpeakerID: "0", Text: "메일은 test@example.com"}},
		FullTranscript: "메일은 test@example.com",
	}

	MaskResult(r)

	if strings.Contains(r.Segments[0].Text, "@") {
		t.Errorf("segment text not masked: %q", r.Segments[0].Text)
	}
	if strings.Contains(r.Speakers[0].Text, "@") {
		t.Errorf("speaker text not masked: %q", r.Speakers[0].Text)
	}
	if strings.Contains(r.FullTranscript, "@") {
		t.Errorf("full transcript not masked: %q", r.FullTranscript)
	}
}
