package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/sesimlab/counselvoice/internal/apperrors"
	"github.com/sesimlab/counselvoice/internal/domain"
	"github.com/sesimlab/counselvoice/internal/llm"
	"github.com/sesimlab/counselvoice/internal/logger"
	"github.com/sesimlab/counselvoice/internal/repository"
)

const goalSystemPrompt = `당신은 상담 수퍼바이저입니다.
이번 상담 세션의 대화를 읽고 다음 세션에서 다룰 구체적이고 실행 가능한
목표를 3개에서 5개 사이로 제안하세요. 각 목표는 한 문장의 한국어로 작성하세요.
반드시 다음 JSON 형식으로만 응답하세요:
{"goals": ["...", "..."]}`

type goalPlan struct {
	Goals []string `json:"goals"`
}

// GoalAnalyzer generates next-session goals for follow-up sessions. One goal
// row per voice record; a record that already has one is skipped.
type GoalAnalyzer struct {
	llm   llm.Provider
	goals *repository.GoalRepository
	log   *logger.Logger
}

func NewGoalAnalyzer(p llm.Provider, goals *repository.GoalRepository, log *logger.Logger) *GoalAnalyzer {
	return &GoalAnalyzer{llm: p, goals: goals, log: log.WithComponent("goals")}
}

// GenerateNextSessionGoals derives and persists goals from the record's
// dialogue.
func (a *GoalAnalyzer) GenerateNextSessionGoals(ctx context.Context, rec *domain.VoiceRecord) error {
	exists, err := a.goals.ExistsForRecord(ctx, rec.ID)
	if err != nil {
		return apperrors.Enrichment("next-session goals", err)
	}
	if exists {
		a.log.Debug("goals already generated", logger.Fields(logger.FieldRecordID, rec.ID))
		return nil
	}
	if strings.TrimSpace(rec.Dialogue) == "" {
		return nil
	}

	var plan goalPlan
	if err := llm.CompleteStructured(ctx, a.llm, goalSystemPrompt, rec.Dialogue, &plan); err != nil {
		return apperrors.Enrichment("next-session goals", err)
	}

	var lines []string
	for _, g := range plan.Goals {
		if strings.TrimSpace(g) == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("%d. %s", len(lines)+1, strings.TrimSpace(g)))
	}
	if len(lines) == 0 {
		return apperrors.Enrichment("next-session goals",
			fmt.Errorf("model returned no goals"))
	}

	session := 1
	if rec.SessionNumber != nil {
		session = *rec.SessionNumber
	}
	err = a.goals.Create(ctx, &domain.VoiceRecordGoal{
		VoiceRecordID: rec.ID,
		ClientID:      rec.ClientID,
		SessionNumber: session,
		Goals:         strings.Join(lines, "\n"),
	})
	if err != nil {
		return apperrors.Enrichment("next-session goals", err)
	}

	a.log.Info("next-session goals generated", logger.Fields(
		logger.FieldRecordID, rec.ID, "goals", len(lines)))
	return nil
}
