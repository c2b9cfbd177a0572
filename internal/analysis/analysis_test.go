package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sesimlab/counselvoice/internal/domain"
	"github.com/sesimlab/counselvoice/internal/llm"
	"github.com/sesimlab/counselvoice/internal/logger"
	"github.com/sesimlab/counselvoice/internal/repository"
	"github.com/sesimlab/counselvoice/internal/transcript"
)

type stubLLM struct {
	content string
	err     error
	calls   int
	last    llm.CompletionRequest
}

func (s *stubLLM) Name() string                         { return "stub" }
func (s *stubLLM) IsAvailable(_ context.Context) bool   { return true }
func (s *stubLLM) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	s.calls++
	s.last = req
	if s.err != nil {
		return nil, s.err
	}
	return &llm.CompletionResponse{Content: s.content}, nil
}

type stubEmbedder struct {
	vec   []float32
	err   error
	calls int
	texts [][]string
}

func (s *stubEmbedder) Name() string                       { return "stub-embed" }
func (s *stubEmbedder) IsAvailable(_ context.Context) bool { return true }
func (s *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	s.calls++
	s.texts = append(s.texts, texts)
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = s.vec
	}
	return out, nil
}

func testLog() *logger.Logger { return logger.NewDefault("test") }

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := db.AutoMigrate(domain.AllModels()...); err != nil {
		t.Fatal(err)
	}
	return db
}

func twoSpeakerSegments() []transcript.Segment {
	return []transcript.Segment{
		{SpeakerID: "0", Text: "안녕하세요, 오늘 어떻게 지내셨어요?", StartTime: 0, EndTime: 2, Duration: 2},
		{SpeakerID: "1", Text: "요즘 잠을 잘 못 자요.", StartTime: 3, EndTime: 5, Duration: 2},
		{SpeakerID: "0", Text: "언제부터 그러셨나요?", StartTime: 6, EndTime: 7, Duration: 1},
	}
}

func TestIdentifyCounselor_SingleSpeakerSkipsModel(t *testing.T) {
	s := &stubLLM{content: `{"counselor_speaker_id": "0", "confidence": 0.9}`}
	segments := []transcript.Segment{{SpeakerID: "0", Text: "혼잣말", StartTime: 0, EndTime: 1}}
	if got := IdentifyCounselor(context.Background(), s, segments, testLog()); got != "" {
		t.Errorf("expected empty id, got %q", got)
	}
	if s.calls != 0 {
		t.Errorf("single speaker must not reach the model, got %d calls", s.calls)
	}
}

func TestIdentifyCounselor_ReturnsKnownID(t *testing.T) {
	s := &stubLLM{content: `{"counselor_speaker_id": "0", "confidence": 0.95}`}
	got := IdentifyCounselor(context.Background(), s, twoSpeakerSegments(), testLog())
	if got != "0" {
		t.Fatalf("expected speaker 0, got %q", got)
	}
	if s.calls != 1 {
		t.Fatalf("expected one model call, got %d", s.calls)
	}
	user := s.last.Messages[0].Content
	if !strings.Contains(user, "발화자 0") || !strings.Contains(user, "발화자 1") {
		t.Errorf("excerpt must list both speakers: %q", user)
	}
	if !s.last.JSONMode {
		t.Error("identification must request JSON mode")
	}
}

func TestIdentifyCounselor_UnknownIDDegrades(t *testing.T) {
	s := &stubLLM{content: `{"counselor_speaker_id": "7", "confidence": 0.95}`}
	if got := IdentifyCounselor(context.Background(), s, twoSpeakerSegments(), testLog()); got != "" {
		t.Errorf("unknown speaker id must degrade to empty, got %q", got)
	}
}

func TestIdentifyCounselor_NullAnswer(t *testing.T) {
	s := &stubLLM{content: `{"counselor_speaker_id": null, "confidence": 0.1}`}
	if got := IdentifyCounselor(context.Background(), s, twoSpeakerSegments(), testLog()); got != "" {
		t.Errorf("null answer must yield empty id, got %q", got)
	}
}

func TestIdentifyCounselor_ModelFailureDegrades(t *testing.T) {
	s := &stubLLM{err: errors.New("rate limited")}
	if got := IdentifyCounselor(context.Background(), s, twoSpeakerSegments(), testLog()); got != "" {
		t.Errorf("model failure must degrade to empty, got %q", got)
	}
}

func TestIndexer_StoresChunks(t *testing.T) {
	db := newTestDB(t)
	chunks := repository.NewChunkRepository(db)
	emb := &stubEmbedder{vec: []float32{1, 0, 0}}
	ix := NewIndexer(chunks, emb, testLog())

	rec := &domain.VoiceRecord{ID: 1, ClientID: 5, Segments: twoSpeakerSegments()}
	if err := ix.IndexRecord(context.Background(), rec); err != nil {
		t.Fatal(err)
	}

	count, err := chunks.CountForRecord(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if count == 0 {
		t.Fatal("expected chunks stored")
	}
	if emb.calls != 1 {
		t.Errorf("expected one embed call, got %d", emb.calls)
	}
}

func TestIndexer_EmbedFailure(t *testing.T) {
	db := newTestDB(t)
	emb := &stubEmbedder{err: errors.New("quota")}
	ix := NewIndexer(repository.NewChunkRepository(db), emb, testLog())

	rec := &domain.VoiceRecord{ID: 1, ClientID: 5, Segments: twoSpeakerSegments()}
	if err := ix.IndexRecord(context.Background(), rec); err == nil {
		t.Fatal("expected error when embedding fails")
	}
}

func TestRetriever_FallsBackWithoutChunks(t *testing.T) {
	db := newTestDB(t)
	r := NewRetriever(repository.NewChunkRepository(db), &stubEmbedder{vec: []float32{1, 0, 0}}, testLog())

	got := r.RetrieveContext(context.Background(), 99, "전체 대화")
	if got != "전체 대화" {
		t.Errorf("expected dialogue fallback, got %q", got)
	}
}

func TestRetriever_ReturnsIndexedChunksOnce(t *testing.T) {
	db := newTestDB(t)
	chunks := repository.NewChunkRepository(db)
	err := chunks.Store(context.Background(), []domain.TranscriptChunk{
		{VoiceRecordID: 1, ChunkIndex: 0, Content: "첫 번째 발췌", Embedding: []float32{1, 0, 0}},
		{VoiceRecordID: 1, ChunkIndex: 1, Content: "두 번째 발췌", Embedding: []float32{0.9, 0.1, 0}},
	})
	if err != nil {
		t.Fatal(err)
	}

	r := NewRetriever(chunks, &stubEmbedder{vec: []float32{1, 0, 0}}, testLog())
	got := r.RetrieveContext(context.Background(), 1, "fallback")
	// Every query returns the same chunks; dedupe keeps each once.
	if strings.Count(got, "첫 번째 발췌") != 1 || strings.Count(got, "두 번째 발췌") != 1 {
		t.Errorf("chunks must appear exactly once: %q", got)
	}
}

func TestRetriever_EmbedFailureFallsBack(t *testing.T) {
	db := newTestDB(t)
	r := NewRetriever(repository.NewChunkRepository(db), &stubEmbedder{err: errors.New("down")}, testLog())
	if got := r.RetrieveContext(context.Background(), 1, "fallback"); got != "fallback" {
		t.Errorf("expected fallback on embed failure, got %q", got)
	}
}

func TestProfileAnalyzer_WritesOnce(t *testing.T) {
	db := newTestDB(t)
	clients := repository.NewClientRepository(db)
	if err := db.Create(&domain.Client{ID: 5, UserID: 1, Name: "민수"}).Error; err != nil {
		t.Fatal(err)
	}

	s := &stubLLM{content: `{"consultation_background": "수면 문제로 내원", "main_complaint": "불면", "current_symptoms": ""}`}
	retriever := NewRetriever(repository.NewChunkRepository(db), &stubEmbedder{vec: []float32{1, 0, 0}}, testLog())
	a := NewProfileAnalyzer(s, retriever, clients, testLog())

	rec := &domain.VoiceRecord{ID: 1, ClientID: 5, Dialogue: "상담사: 안녕하세요\n내담자: 잠을 못 자요"}
	client, _ := clients.Get(context.Background(), 5)
	if err := a.AnalyzeFirstSession(context.Background(), client, rec); err != nil {
		t.Fatal(err)
	}

	updated, _ := clients.Get(context.Background(), 5)
	if !updated.AIAnalysisCompleted {
		t.Fatal("analysis flag must be set")
	}
	if updated.AIMainComplaint != "불면" {
		t.Errorf("unexpected complaint: %q", updated.AIMainComplaint)
	}
	// Empty model fields fall back to the unknown marker.
	if updated.AICurrentSymptoms != "확인 불가" {
		t.Errorf("empty field must become 확인 불가: %q", updated.AICurrentSymptoms)
	}

	// A second run for an analyzed client never reaches the model.
	s.calls = 0
	if err := a.AnalyzeFirstSession(context.Background(), updated, rec); err != nil {
		t.Fatal(err)
	}
	if s.calls != 0 {
		t.Errorf("analyzed client must skip the model, got %d calls", s.calls)
	}
	final, _ := clients.Get(context.Background(), 5)
	if final.AIMainComplaint != "불면" {
		t.Errorf("profile must not be overwritten: %q", final.AIMainComplaint)
	}
}

func TestGoalAnalyzer_GeneratesOnce(t *testing.T) {
	db := newTestDB(t)
	goals := repository.NewGoalRepository(db)
	s := &stubLLM{content: `{"goals": ["수면 일지 검토", "불안 유발 상황 탐색", "이완 기법 연습"]}`}
	a := NewGoalAnalyzer(s, goals, testLog())

	two := 2
	rec := &domain.VoiceRecord{ID: 1, ClientID: 5, SessionNumber: &two, Dialogue: "상담사: 지난주는 어떠셨어요"}
	if err := a.GenerateNextSessionGoals(context.Background(), rec); err != nil {
		t.Fatal(err)
	}

	g, err := goals.GetForRecord(context.Background(), 1)
	if err != nil || g == nil {
		t.Fatalf("goal row missing: %v", err)
	}
	if !strings.HasPrefix(g.Goals, "1. 수면 일지 검토") {
		t.Errorf("goals must be numbered: %q", g.Goals)
	}
	if strings.Count(g.Goals, "\n") != 2 {
		t.Errorf("expected 3 goal lines: %q", g.Goals)
	}
	if g.SessionNumber != 2 {
		t.Errorf("session number not carried: %d", g.SessionNumber)
	}

	s.calls = 0
	if err := a.GenerateNextSessionGoals(context.Background(), rec); err != nil {
		t.Fatal(err)
	}
	if s.calls != 0 {
		t.Errorf("existing goals must skip the model, got %d calls", s.calls)
	}
}

func TestGoalAnalyzer_EmptyPlanFails(t *testing.T) {
	db := newTestDB(t)
	s := &stubLLM{content: `{"goals": []}`}
	a := NewGoalAnalyzer(s, repository.NewGoalRepository(db), testLog())

	rec := &domain.VoiceRecord{ID: 1, ClientID: 5, Dialogue: "상담사: 안녕하세요"}
	if err := a.GenerateNextSessionGoals(context.Background(), rec); err == nil {
		t.Fatal("expected error for empty goal plan")
	}
}

func TestEnricher_RoutesBySession(t *testing.T) {
	db := newTestDB(t)
	clients := repository.NewClientRepository(db)
	goals := repository.NewGoalRepository(db)
	chunks := repository.NewChunkRepository(db)
	if err := db.Create(&domain.Client{ID: 5, UserID: 1, Name: "민수"}).Error; err != nil {
		t.Fatal(err)
	}

	s := &stubLLM{content: `{"consultation_background": "배경", "main_complaint": "호소", "current_symptoms": "증상", "goals": ["목표 하나", "목표 둘", "목표 셋"]}`}
	e := NewEnricher(s, &stubEmbedder{vec: []float32{1, 0, 0}}, clients, goals, chunks, testLog())

	one := 1
	first := &domain.VoiceRecord{ID: 1, ClientID: 5, SessionNumber: &one,
		Segments: twoSpeakerSegments(), Dialogue: "상담사: 안녕하세요\n내담자: 잠을 못 자요"}
	if err := e.Enrich(context.Background(), first); err != nil {
		t.Fatal(err)
	}
	c, _ := clients.Get(context.Background(), 5)
	if !c.AIAnalysisCompleted {
		t.Error("first session must complete the client profile")
	}
	if count, _ := chunks.CountForRecord(context.Background(), 1); count == 0 {
		t.Error("first session must index chunks")
	}
	if g, _ := goals.GetForRecord(context.Background(), 1); g != nil {
		t.Error("first session must not generate goals")
	}

	three := 3
	later := &domain.VoiceRecord{ID: 2, ClientID: 5, SessionNumber: &three,
		Dialogue: "상담사: 지난주는 어떠셨어요"}
	if err := e.Enrich(context.Background(), later); err != nil {
		t.Fatal(err)
	}
	if g, _ := goals.GetForRecord(context.Background(), 2); g == nil {
		t.Error("later session must generate goals")
	}

	// Re-running the first session is a no-op once the profile exists.
	s.calls = 0
	if err := e.Enrich(context.Background(), first); err != nil {
		t.Fatal(err)
	}
	if s.calls != 0 {
		t.Errorf("analyzed client must short-circuit, got %d calls", s.calls)
	}
}
