package transcript

import (
	"fmt"
	"strings"
)

// Stable speaker labels.
const (
	LabelCounselor = "상담사"
	LabelClient    = "내담자"

	// UnlabeledPrefix prefixes raw speaker ids in dialogue rendering when no
	// counselor could be identified.
	UnlabeledPrefix = "발화자 "
)

// BuildSpeakerLabelMap maps raw provider speaker ids to stable human labels.
// The counselor becomes 상담사. With exactly one other speaker that speaker is
// 내담자 with no suffix; with several, they become 내담자 A, 내담자 B, … in
// their original relative order, falling back to numeric suffixes past 26.
// When counselorID is empty or unknown the map is nil and callers render raw
// ids instead.
func BuildSpeakerLabelMap(speakerIDs []string, counselorID string) map[string]string {
	if counselorID == "" {
		return nil
	}
	found := false
	for _, id := range speakerIDs {
		if id == counselorID {
			found = true
			break
		}
	}
	if !found {
		return nil
	}

	labels := make(map[string]string, len(speakerIDs))
	labels[counselorID] = LabelCounselor

	others := 0
	for _, id := range speakerIDs {
		if id != counselorID {
			others++
		}
	}

	idx := 0
	for _, id := range speakerIDs {
		if id == counselorID {
			continue
		}
		if others == 1 {
			labels[id] = LabelClient
		} else {
			labels[id] = LabelClient + " " + clientSuffix(idx)
		}
		idx++
	}
	return labels
}

// clientSuffix yields A..Z for the first 26 non-counselor speakers, then
// numbers.
func clientSuffix(i int) string {
	if i < 26 {
		return string(rune('A' + i))
	}
	return fmt.Sprintf("%d", i+1)
}

// ApplyLabels rewrites speaker ids in r according to labels. Ids without a
// mapping are kept as-is.
func ApplyLabels(r *Result, labels map[string]string) {
	if len(labels) == 0 {
		return
	}
	for i := range r.Segments {
		if label, ok := labels[r.Segments[i].SpeakerID]; ok {
			r.Segments[i].SpeakerID = label
		}
	}
	for i := range r.Speakers {
		if label, ok := labels[r.Speakers[i].SpeakerID]; ok {
			r.Speakers[i].SpeakerID = label
		}
	}
}

// FormatDialogue renders segments as one "speaker: text" line each. When
// labeled is false every line is prefixed with the generic 발화자 marker,
// which distinguishes unlabeled output downstream.
func FormatDialogue(segments []Segment, labeled bool) string {
	lines := make([]string, len(segments))
	for i, seg := range segments {
		if labeled {
			lines[i] = fmt.Sprintf("%s: %s", seg.SpeakerID, seg.Text)
		} else {
			lines[i] = fmt.Sprintf("%s%s: %s", UnlabeledPrefix, seg.SpeakerID, seg.Text)
		}
	}
	return strings.Join(lines, "\n")
}
