package transcript

// DefaultMergeGap is the maximum silence, in seconds, allowed between two
// consecutive segments of the same speaker for them to be coalesced into one
// continuous utterance.
const DefaultMergeGap = 1.5

// MergeSegments walks segments in time order and coalesces a segment into the
// running one when the speaker matches and the gap to the previous end time
// is at most gapSec. The reduction is order-preserving and idempotent:
// merging an already-merged sequence with the same gap yields the same
// result.
func MergeSegments(segments []Segment, gapSec float64) []Segment {
	if len(segments) == 0 {
		return nil
	}

	ordered := make([]Segment, len(segments))
	copy(ordered, segments)
	SortSegments(ordered)

	merged := make([]Segment, 0, len(ordered))
	current := ordered[0]

	for _, seg := range ordered[1:] {
		if seg.SpeakerID == current.SpeakerID && seg.StartTime-current.EndTime <= gapSec {
			current.Text += " " + seg.Text
			if seg.EndTime > current.EndTime {
				current.EndTime = seg.EndTime
			}
			continue
		}
		current.Duration = current.EndTime - current.StartTime
		merged = append(merged, current)
		current = seg
	}
	current.Duration = current.EndTime - current.StartTime
	merged = append(merged, current)

	return merged
}
