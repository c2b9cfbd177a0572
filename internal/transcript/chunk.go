package transcript

import "fmt"

// Chunking parameters. A chunk never exceeds ChunkMaxChars by more than the
// length of a single line, and consecutive chunks share ChunkOverlapLines
// lines of context. Chunk boundaries always fall on segment boundaries.
const (
	ChunkMaxChars     = 1200
	ChunkOverlapLines = 2
)

// BuildSemanticChunks greedily packs formatted "speaker: text" lines into
// bounded chunks for embedding, retaining the last ChunkOverlapLines lines of
// each chunk as leading context for the next.
func BuildSemanticChunks(segments []Segment) []string {
	var chunks []string
	var lines []string
	size := 0

	flush := func() {
		if len(lines) == 0 {
			return
		}
		chunks = append(chunks, joinLines(lines))

		overlap := len(lines) - ChunkOverlapLines
		if overlap < 0 {
			overlap = 0
		}
		carried := lines[overlap:]
		lines = make([]string, len(carried))
		copy(lines, carried)
		size = 0
		for _, l := range lines {
			size += len(l) + 1
		}
	}

	for _, seg := range segments {
		if seg.Text == "" {
			continue
		}
		line := fmt.Sprintf("%s: %s", seg.SpeakerID, seg.Text)
		if size > 0 && size+len(line) > ChunkMaxChars {
			flush()
		}
		lines = append(lines, line)
		size += len(line) + 1
	}

	if len(lines) > 0 {
		chunks = append(chunks, joinLines(lines))
	}
	return chunks
}

func joinLines(lines []string) string {
	out := lines[0]
	for _, l := range lines[1:] {
		out += "\n" + l
	}
	return out
}
