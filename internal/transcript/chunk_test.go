package transcript

import (
	"strings"
	"testing"
)

func longSegments(n int) []Segment {
	segments := make([]Segment, n)
	for i := range segments {
		segments[i] = seg("상담사", strings.Repeat("말 ", 60), float64(i), float64(i+1))
	}
	return segments
}

func TestBuildSemanticChunks_RespectsBudget(t *testing.T) {
	chunks := BuildSemanticChunks(longSegments(40))

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	longestLine := 0
	for _, c := range chunks {
		for _, line := range strings.Split(c, "\n") {
			if len(line) > longestLine {
				longestLine = len(line)
			}
		}
	}
	for i, c := range chunks {
		if len(c) > ChunkMaxChars+longestLine+1 {
			t.Errorf("chunk %d exceeds budget plus one line: %d chars", i, len(c))
		}
	}
}

func TestBuildSemanticChunks_OverlapLines(t *testing.T) {
	chunks := BuildSemanticChunks(longSegments(40))
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	for i := 1; i < len(chunks); i++ {
		prev := strings.Split(chunks[i-1], "\n")
		cur := strings.Split(chunks[i], "\n")
		if len(prev) < ChunkOverlapLines {
			continue
		}
		tail := prev[len(prev)-ChunkOverlapLines:]
		head := cur[:ChunkOverlapLines]
		for j := range tail {
			if tail[j] != head[j] {
				t.Errorf("chunk %d does not start with overlap of chunk %d: %q vs %q", i, i-1, head[j], tail[j])
			}
		}
	}
}

func TestBuildSemanticChunks_BoundariesOnSegments(t *testing.T) {
	segments := []Segment{
		seg("상담사", "요즘 어떻게 지내셨어요", 0, 2),
		seg("내담자", "잠을 잘 못 자요", 2, 4),
	}
	chunks := BuildSemanticChunks(segments)

	if len(chunks) != 1 {
		t.Fatalf("expected a single chunk, got %d", len(chunks))
	}
	want := "상담사: 요즘 어떻게 지내셨어요\n내담자: 잠을 잘 못 자요"
	if chunks[0] != want {
		t.Errorf("unexpected chunk: %q", chunks[0])
	}
}

func TestBuildSemanticChunks_SkipsEmptySegments(t *testing.T) {
	segments := []Segment{
		seg("상담사", "", 0, 1),
	}
	if chunks := BuildSemanticChunks(segments); chunks != nil {
		t.Errorf("expected no chunks for empty segments, got %v", chunks)
	}
}
