package transcript

import (
	"errors"
	"sort"
	"strings"
)

// ErrNoSegments is returned when a non-empty vendor payload normalizes to
// zero segments. Downstream persistence requires at least one segment, so the
// caller must treat this as a hard failure.
var ErrNoSegments = errors.New("transcript: no segments extracted from vendor response")

// Builder accumulates vendor tokens or utterances into the canonical Result.
// Word-level vendors feed AddWord and the builder flushes a segment whenever
// the speaker changes; utterance-level vendors feed AddUtterance directly.
type Builder struct {
	segments []Segment
	language string

	curSpeaker string
	curStart   float64
	curEnd     float64
	curParts   []string
	active     bool
}

// NewBuilder creates an empty Builder.
func NewBuilder() *Builder { return &Builder{} }

// SetLanguage records the detected or requested language code.
func (b *Builder) SetLanguage(lang string) { b.language = lang }

// AddWord feeds one speaker-tagged token. Whitespace-only tokens are skipped.
func (b *Builder) AddWord(speakerID, word string, start, end float64) {
	if strings.TrimSpace(word) == "" {
		return
	}
	if b.active && speakerID != b.curSpeaker {
		b.flush()
	}
	if !b.active {
		b.curSpeaker = speakerID
		b.curStart = start
		b.active = true
	}
	b.curEnd = end
	b.curParts = append(b.curParts, strings.TrimSpace(word))
}

// AddPunctuation attaches a punctuation token to the current speaker without
// triggering a flush and without a preceding space. Punctuation arriving
// before any word is dropped.
func (b *Builder) AddPunctuation(mark string, end float64) {
	mark = strings.TrimSpace(mark)
	if mark == "" || !b.active || len(b.curParts) == 0 {
		return
	}
	b.curParts[len(b.curParts)-1] += mark
	if end > b.curEnd {
		b.curEnd = end
	}
}

// AddUtterance feeds one provider-delimited, speaker-attributed utterance.
// Empty or whitespace-only utterances are dropped.
func (b *Builder) AddUtterance(speakerID, text string, start, end float64) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	b.flush()
	b.segments = append(b.segments, Segment{
		SpeakerID: speakerID,
		Text:      text,
		StartTime: start,
		EndTime:   end,
		Duration:  end - start,
	})
}

// flush closes the accumulating word buffer into a segment.
func (b *Builder) flush() {
	if !b.active {
		return
	}
	text := strings.TrimSpace(strings.Join(b.curParts, " "))
	if text != "" {
		b.segments = append(b.segments, Segment{
			SpeakerID: b.curSpeaker,
			Text:      text,
			StartTime: b.curStart,
			EndTime:   b.curEnd,
			Duration:  b.curEnd - b.curStart,
		})
	}
	b.curParts = nil
	b.active = false
}

// Result finalizes the builder into the canonical triple. fullTranscript may
// be the vendor-supplied full text; when empty it is derived by space-joining
// segment texts. Returns ErrNoSegments when nothing usable was accumulated.
func (b *Builder) Result(fullTranscript string) (*Result, error) {
	b.flush()
	if len(b.segments) == 0 {
		return nil, ErrNoSegments
	}

	segments := make([]Segment, len(b.segments))
	copy(segments, b.segments)
	SortSegments(segments)

	speakers := aggregateSpeakers(segments)

	fullTranscript = strings.TrimSpace(fullTranscript)
	if fullTranscript == "" {
		parts := make([]string, len(segments))
		for i, seg := range segments {
			parts[i] = seg.Text
		}
		fullTranscript = strings.Join(parts, " ")
	}

	var duration float64
	for _, seg := range segments {
		if seg.EndTime > duration {
			duration = seg.EndTime
		}
	}

	return &Result{
		Segments:       segments,
		Speakers:       speakers,
		FullTranscript: fullTranscript,
		Language:       b.language,
		Duration:       duration,
	}, nil
}

// aggregateSpeakers folds segments into per-speaker aggregates with running
// min/max time bounds and concatenated text, ordered by first-appearance
// start time.
func aggregateSpeakers(segments []Segment) []Speaker {
	byID := make(map[string]*Speaker, 4)
	var order []string

	for _, seg := range segments {
		sp, ok := byID[seg.SpeakerID]
		if !ok {
			byID[seg.SpeakerID] = &Speaker{
				SpeakerID: seg.SpeakerID,
				Text:      seg.Text,
				StartTime: seg.StartTime,
				EndTime:   seg.EndTime,
			}
			order = append(order, seg.SpeakerID)
			continue
		}
		sp.Text += " " + seg.Text
		if seg.StartTime < sp.StartTime {
			sp.StartTime = seg.StartTime
		}
		if seg.EndTime > sp.EndTime {
			sp.EndTime = seg.EndTime
		}
	}

	speakers := make([]Speaker, 0, len(order))
	for _, id := range order {
		sp := byID[id]
		sp.Duration = sp.EndTime - sp.StartTime
		speakers = append(speakers, *sp)
	}
	sort.SliceStable(speakers, func(i, j int) bool {
		return speakers[i].StartTime < speakers[j].StartTime
	})
	return speakers
}
