package transcript

import "regexp"

// Placeholder tokens substituted for redacted values. None of them match any
// of the masking patterns, so masking is idempotent.
const (
	MaskEmail = "[EMAIL]"
	MaskPhone = "[PHONE]"
	MaskRRN   = "[RRN]"
	MaskCard  = "[CARD]"
)

type maskRule struct {
	pattern     *regexp.Regexp
	replacement string
}

// Ordered: card before RRN so a 16-digit grouped number is never partially
// consumed by the 13-digit resident-number pattern.
var maskRules = []maskRule{
	{regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`), MaskEmail},
	{regexp.MustCompile(`\b\d{4}[\s\-]\d{4}[\s\-]\d{4}[\s\-]\d{4}\b`), MaskCard},
	{regexp.MustCompile(`\b\d{6}[\s\-]?\d{7}\b`), MaskRRN},
	{regexp.MustCompile(`\b01[016789][\s\-]?\d{3,4}[\s\-]?\d{4}\b`), MaskPhone},
	{regexp.MustCompile(`\b0\d{1,2}[\s\-]\d{3,4}[\s\-]\d{4}\b`), MaskPhone},
}

// MaskSensitive redacts emails, Korean phone numbers, resident registration
// numbers, and card numbers from text, each replaced with a fixed placeholder.
func MaskSensitive(text string) string {
	for _, rule := range maskRules {
		text = rule.pattern.ReplaceAllString(text, rule.replacement)
	}
	return text
}

// MaskResult applies MaskSensitive to every segment text, every speaker
// aggregate text, and the full transcript of r, in place. Called after
// speaker-label mapping and before merging.
func MaskResult(r *Result) {
	for i := range r.Segments {
		r.Segments[i].Text = MaskSensitive(r.Segments[i].Text)
	}
	for i := range r.Speakers {
		r.Speakers[i].Text = MaskSensitive(r.Speakers[i].Text)
	}
	r.FullTranscript = MaskSensitive(r.FullTranscript)
}
