package ai

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/open-sun/software/internal/apperr"
	"github.com/open-sun/software/internal/auth"
	"github.com/open-sun/software/internal/httpx"
	"github.com/open-sun/software/internal/models"
)

const (
	SystemPrompt = "你是一个海洋牧场管理养殖专家，会为使用者提供建议。"
	ImagePrompt  = "请描述这个图片中鱼的种类大约长度和重量"
	FilePrompt   = "请阅读以下文件内容，总结要点，并从海洋牧场管理养殖的角度给出分析和建议：\n\n"

	defaultConversation = "default"
	maxUploadSize       = 20 << 20

	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// HistoryStore records recognition results.
type HistoryStore interface {
	InsertAnalysis(ctx context.Context, a *models.Analysis) error
	ListAnalyses(ctx context.Context, kind string, limit int64) ([]models.Analysis, error)
}

// Handler holds the AI tool HTTP handlers.
type Handler struct {
	model   Model
	memory  Memory
	history HistoryStore
	logger  *zap.Logger
}

func NewHandler(model Model, memory Memory, history HistoryStore, logger *zap.Logger) *Handler {
	return &Handler{model: model, memory: memory, history: history, logger: logger}
}

// conversationID picks the body's id, then the session, then a shared default.
func conversationID(r *http.Request, fromBody string) string {
	if id := strings.TrimSpace(fromBody); id != "" {
		return id
	}
	if c, err := r.Cookie(auth.SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	return defaultConversation
}

// Chat answers one user turn using the conversation's history.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	if strings.TrimSpace(req.Input) == "" {
		httpx.WriteError(w, h.logger, apperr.New(apperr.Validation, "missing input field"))
		return
	}
	conv := conversationID(r, req.ConversationID)

	msgs, err := h.memory.Load(r.Context(), conv)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	turn := Message{Role: RoleUser, Content: req.Input}
	answer, err := h.model.Complete(r.Context(), SystemPrompt, append(msgs, turn))
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	if err := h.memory.Append(r.Context(), conv, turn, Message{Role: RoleAssistant, Content: answer}); err != nil {
		h.logger.Warn("save chat memory", zap.String("conversation_id", conv), zap.Error(err))
	}

	h.record(r.Context(), &models.Analysis{
		Kind: models.AnalysisChat, ConversationID: conv,
		Prompt: req.Input, Result: answer, Model: h.model.ChatModel(),
	})
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"response": answer})
}

func (h *Handler) ResetChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConversationID string `json:"conversation_id"`
	}
	if err := httpx.DecodeOptionalJSON(r, &req); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	conv := conversationID(r, req.ConversationID)
	if err := h.memory.Reset(r.Context(), conv); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "conversation_id": conv})
}

func readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		return "", nil, apperr.Wrap(apperr.Validation, "missing file field", err)
	}
	defer file.Close()
	if header.Filename == "" {
		return "", nil, apperr.New(apperr.Validation, "no selected file")
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return "", nil, apperr.Wrap(apperr.Validation, "read upload", err)
	}
	return filepath.Base(header.Filename), data, nil
}

// RecognizeImage asks the vision model to describe the fish in an image.
func (h *Handler) RecognizeImage(w http.ResponseWriter, r *http.Request) {
	name, data, err := readUpload(w, r)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	if len(data) == 0 {
		httpx.WriteError(w, h.logger, apperr.New(apperr.Validation, "uploaded file is empty"))
		return
	}

	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		mime = "image/jpeg"
	}
	dataURL := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)

	result, err := h.model.Describe(r.Context(), dataURL, ImagePrompt)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	h.record(r.Context(), &models.Analysis{
		Kind: models.AnalysisImage, Filename: name,
		Prompt: ImagePrompt, Result: result, Model: h.model.VisionModel(),
	})
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"result": result})
}

// RecognizeFile summarises an uploaded document.
func (h *Handler) RecognizeFile(w http.ResponseWriter, r *http.Request) {
	name, data, err := readUpload(w, r)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	text, err := ExtractText(name, data)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	result, err := h.model.Complete(r.Context(), SystemPrompt, []Message{{Role: RoleUser, Content: FilePrompt + text}})
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	h.record(r.Context(), &models.Analysis{
		Kind: models.AnalysisFile, Filename: name,
		Prompt: FilePrompt, Result: result, Model: h.model.ChatModel(),
	})
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"result": result})
}

// History lists recent recognition records.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("kind")
	switch kind {
	case "", models.AnalysisChat, models.AnalysisImage, models.AnalysisFile:
	default:
		httpx.WriteError(w, h.logger, apperr.New(apperr.Validation, "kind must be chat, image or file"))
		return
	}
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxHistoryLimit {
			httpx.WriteError(w, h.logger, apperr.New(apperr.Validation, "limit must be between 1 and 100"))
			return
		}
		limit = n
	}

	records, err := h.history.ListAnalyses(r.Context(), kind, int64(limit))
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	if records == nil {
		records = []models.Analysis{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"records": records})
}

// record stores a result in history. A failure only logs; the caller
// already has its answer.
func (h *Handler) record(ctx context.Context, a *models.Analysis) {
	if h.history == nil {
		return
	}
	a.CreatedAt = time.Now()
	if err := h.history.InsertAnalysis(ctx, a); err != nil {
		h.logger.Warn("record analysis", zap.String("kind", a.Kind), zap.Error(err))
	}
}
