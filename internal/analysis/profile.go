package analysis

import (
	"context"
	"strings"

	"github.com/sesimlab/counselvoice/internal/apperrors"
	"github.com/sesimlab/counselvoice/internal/domain"
	"github.com/sesimlab/counselvoice/internal/llm"
	"github.com/sesimlab/counselvoice/internal/logger"
	"github.com/sesimlab/counselvoice/internal/repository"
)

// unknownValue is written for profile fields the transcript does not support.
const unknownValue = "확인 불가"

const profileSystemPrompt = `당신은 임상심리 전문가입니다.
첫 상담 세션의 대화 발췌를 읽고 내담자 프로필을 작성하세요.
각 항목은 발췌에 근거한 2~3문장의 서술형 한국어로 작성하고,
발췌만으로 판단할 수 없는 항목에는 "확인 불가"라고만 적으세요.
반드시 다음 JSON 형식으로만 응답하세요:
{"consultation_background": "...", "main_complaint": "...", "current_symptoms": "..."}`

type clientProfile struct {
	ConsultationBackground string `json:"consultation_background"`
	MainComplaint          string `json:"main_complaint"`
	CurrentSymptoms        string `json:"current_symptoms"`
}

// ProfileAnalyzer derives the write-once first-session client profile.
type ProfileAnalyzer struct {
	llm       llm.Provider
	retriever *Retriever
	clients   *repository.ClientRepository
	log       *logger.Logger
}

func NewProfileAnalyzer(p llm.Provider, retriever *Retriever, clients *repository.ClientRepository, log *logger.Logger) *ProfileAnalyzer {
	return &ProfileAnalyzer{llm: p, retriever: retriever, clients: clients, log: log.WithComponent("profile")}
}

// AnalyzeFirstSession fills the client's AI profile fields from a
// first-session record. A client whose analysis already completed is left
// untouched, as is one whose record has no dialogue.
func (a *ProfileAnalyzer) AnalyzeFirstSession(ctx context.Context, client *domain.Client, rec *domain.VoiceRecord) error {
	if client.AIAnalysisCompleted {
		a.log.Debug("client profile already analyzed", logger.Fields(logger.FieldClientID, client.ID))
		return nil
	}

	excerpt := a.retriever.RetrieveContext(ctx, rec.ID, rec.Dialogue)
	if strings.TrimSpace(excerpt) == "" {
		return nil
	}

	var p clientProfile
	if err := llm.CompleteStructured(ctx, a.llm, profileSystemPrompt, excerpt, &p); err != nil {
		return apperrors.Enrichment("client profile", err)
	}
	if strings.TrimSpace(p.ConsultationBackground) == "" {
		p.ConsultationBackground = unknownValue
	}
	if strings.TrimSpace(p.MainComplaint) == "" {
		p.MainComplaint = unknownValue
	}
	if strings.TrimSpace(p.CurrentSymptoms) == "" {
		p.CurrentSymptoms = unknownValue
	}

	applied, err := a.clients.SetAIProfile(ctx, client.ID, repository.AIProfile{
		ConsultationBackground: p.ConsultationBackground,
		MainComplaint:          p.MainComplaint,
		CurrentSymptoms:        p.CurrentSymptoms,
	})
	if err != nil {
		return apperrors.Enrichment("client profile", err)
	}
	if !applied {
		a.log.Info("client profile write skipped, already completed", logger.Fields(
			logger.FieldClientID, client.ID))
		return nil
	}

	a.log.Info("client profile analyzed", logger.Fields(
		logger.FieldClientID, client.ID, logger.FieldRecordID, rec.ID))
	return nil
}
