// Package transcript defines the canonical diarized-transcript model every
// vendor payload is normalized into, plus the pure transformations applied to
// it: same-speaker merging, sensitive-data masking, speaker labeling, and
// semantic chunking.
package transcript

import "sort"

// Segment is one continuous span of speech attributed to a single speaker.
// Times are in seconds. Immutable once normalized except for speaker-label
// rewriting and text masking.
type Segment struct {
	SpeakerID string  `json:"speaker_id"`
	Text      string  `json:"text"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Duration  float64 `json:"duration"`
}

// Speaker is the aggregated view of everything one speaker said.
type Speaker struct {
	SpeakerID string  `json:"speaker_id"`
	Text      string  `json:"text"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Duration  float64 `json:"duration"`
}

// Result is the common representation every vendor normalizer produces.
type Result struct {
	Segments       []Segment `json:"segments"`
	Speakers       []Speaker `json:"speakers"`
	FullTranscript string    `json:"full_transcript"`
	Language       string    `json:"language,omitempty"`
	Duration       float64   `json:"duration,omitempty"`
}

// TotalSpeakers returns the number of distinct speakers in the result.
func (r *Result) TotalSpeakers() int { return len(r.Speakers) }

// SpeakerIDs returns the speaker ids in first-appearance order.
func (r *Result) SpeakerIDs() []string {
	ids := make([]string, len(r.Speakers))
	for i, s := range r.Speakers {
		ids[i] = s.SpeakerID
	}
	return ids
}

// DistinctSpeakerIDs returns the distinct speaker ids present in segments, in
// first-appearance order.
func DistinctSpeakerIDs(segments []Segment) []string {
	seen := make(map[string]bool, 4)
	var ids []string
	for _, seg := range segments {
		if !seen[seg.SpeakerID] {
			seen[seg.SpeakerID] = true
			ids = append(ids, seg.SpeakerID)
		}
	}
	return ids
}

// SortSegments orders segments by start time in place.
func SortSegments(segments []Segment) {
	sort.SliceStable(segments, func(i, j int) bool {
		return segments[i].StartTime < segments[j].StartTime
	})
}
