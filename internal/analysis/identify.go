// Package analysis holds the LLM-driven enrichment steps: counselor
// identification, first-session chunk indexing and retrieval, client
// profile analysis, and next-session goal generation.
package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/sesimlab/counselvoice/internal/llm"
	"github.com/sesimlab/counselvoice/internal/logger"
	"github.com/sesimlab/counselvoice/internal/transcript"
)

// maxExcerptSegments bounds how much of the session opening is shown to the
// classifier.
const maxExcerptSegments = 5

const identifySystemPrompt = `당신은 상담 녹취록 분석 전문가입니다.
주어진 상담 세션의 첫 부분 발화를 보고 어느 발화자가 상담사인지 판별하세요.
상담사는 보통 인사를 건네고, 질문을 하며, 대화를 이끄는 쪽입니다.
확신할 수 없으면 counselor_speaker_id를 null로 반환하세요.
반드시 다음 JSON 형식으로만 응답하세요:
{"counselor_speaker_id": "<발화자 id 또는 null>", "confidence": <0.0~1.0>}`

type identification struct {
	CounselorSpeakerID *string `json:"counselor_speaker_id"`
	Confidence         float64 `json:"confidence"`
}

// Identifier binds IdentifyCounselor to a provider and logger so the pipeline
// can call it without carrying either.
type Identifier struct {
	llm llm.Provider
	log *logger.Logger
}

func NewIdentifier(p llm.Provider, log *logger.Logger) *Identifier {
	return &Identifier{llm: p, log: log.WithComponent("identify")}
}

func (i *Identifier) IdentifyCounselor(ctx context.Context, segments []transcript.Segment) string {
	return IdentifyCounselor(ctx, i.llm, segments, i.log)
}

// IdentifyCounselor classifies which diarized speaker is the counselor using
// only the opening utterances. It returns the raw speaker id, or "" when
// identification is not possible. Fewer than two distinct speakers short-
// circuits without any model call; model failures and out-of-vocabulary
// answers degrade to "" and never abort the pipeline.
func IdentifyCounselor(ctx context.Context, p llm.Provider, segments []transcript.Segment, log *logger.Logger) string {
	known := transcript.DistinctSpeakerIDs(segments)
	if len(known) < 2 {
		return ""
	}

	merged := transcript.MergeSegments(segments, transcript.DefaultMergeGap)
	if len(merged) == 0 {
		merged = segments
	}

	var lines []string
	for _, seg := range merged {
		if strings.TrimSpace(seg.Text) == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("%d. 발화자 %s: %s", len(lines)+1, seg.SpeakerID, seg.Text))
		if len(lines) == maxExcerptSegments {
			break
		}
	}
	if len(lines) == 0 {
		return ""
	}

	user := fmt.Sprintf("발화자 id 목록: %s\n\n상담 첫 부분:\n%s",
		strings.Join(known, ", "), strings.Join(lines, "\n"))

	var result identification
	if err := llm.CompleteStructured(ctx, p, identifySystemPrompt, user, &result); err != nil {
		log.Warn("counselor identification failed", logger.Fields(logger.FieldError, err.Error()))
		return ""
	}
	if result.CounselorSpeakerID == nil {
		return ""
	}

	answer := strings.TrimSpace(*result.CounselorSpeakerID)
	if answer == "" || strings.EqualFold(answer, "null") {
		return ""
	}
	for _, id := range known {
		if id == answer {
			return answer
		}
	}
	log.Warn("counselor identification returned unknown speaker id", logger.Fields(
		"answer", answer, "known", known))
	return ""
}
