package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"vidgenius/internal/config"
	"vidgenius/internal/models"
)

// ErrNotConfigured is returned by every call when no API credential was provided.
var ErrNotConfigured = errors.New("remote analysis is not configured: set GOOGLE_API_KEY")

const systemPrompt = "You are VidGenius, a professional video editing assistant. " +
	"Use the web_search tool only when outside knowledge about platforms or formats helps. " +
	"Use markdown to format your answers."

// fileService is the subset of the genai Files API the service needs.
type fileService interface {
	UploadFromPath(ctx context.Context, path string, config *genai.UploadFileConfig) (*genai.File, error)
	Get(ctx context.Context, name string, config *genai.GetFileConfig) (*genai.File, error)
	Delete(ctx context.Context, name string, config *genai.DeleteFileConfig) (*genai.DeleteFileResponse, error)
}

type generateFunc func(ctx context.Context, input []*schema.Message) (*schema.Message, error)

// Service talks to Gemini: media goes through the Files API, the completion
// through an eino react agent that may call the web_search tool.
type Service struct {
	files    fileService
	generate generateFunc
	model    string
	logger   *zap.Logger
}

// NewService builds the Gemini client, chat model and agent once at startup.
func NewService(ctx context.Context, prov config.ProviderConfig, webSearch bool, search config.SearchConfig, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "ai"))
	if strings.TrimSpace(prov.APIKey) == "" {
		return nil, ErrNotConfigured
	}
	if prov.Model == "" {
		prov.Model = config.DefaultModel
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  prov.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if prov.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: prov.BaseURL}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	chatModel, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client: client,
		Model:  prov.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini chat model: %w", err)
	}

	generate := func(ctx context.Context, input []*schema.Message) (*schema.Message, error) {
		return chatModel.Generate(ctx, input)
	}

	tools := InitToolsChain(webSearch, search, logger)
	if len(tools) > 0 {
		agent, err := react.NewAgent(ctx, &react.AgentConfig{
			ToolCallingModel: chatModel,
			ToolsConfig: compose.ToolsNodeConfig{
				Tools: tools,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("init react agent: %w", err)
		}
		generate = func(ctx context.Context, input []*schema.Message) (*schema.Message, error) {
			return agent.Generate(ctx, input)
		}
	}

	logger.Info("gemini analysis ready", zap.String("model", prov.Model), zap.Int("tools", len(tools)))
	return newService(client.Files, generate, prov.Model, logger), nil
}

func newService(files fileService, generate generateFunc, model string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{files: files, generate: generate, model: model, logger: logger}
}

// Upload sends the temp file to the Files API.
func (s *Service) Upload(ctx context.Context, media *models.TempMedia) (*models.RemoteHandle, error) {
	if media == nil {
		return nil, errors.New("media is required")
	}
	file, err := s.files.UploadFromPath(ctx, media.Path, &genai.UploadFileConfig{
		MIMEType:    media.MIMEType,
		DisplayName: media.FileName,
	})
	if err != nil {
		return nil, err
	}
	h := toHandle(file, media.MIMEType)
	s.logger.Debug("file uploaded", zap.String("remote_id", h.ID), zap.String("state", string(h.State)))
	return h, nil
}

// FetchState re-reads the remote file by name.
func (s *Service) FetchState(ctx context.Context, id string) (*models.RemoteHandle, error) {
	file, err := s.files.Get(ctx, id, nil)
	if err != nil {
		return nil, err
	}
	return toHandle(file, ""), nil
}

// Complete sends the prompt together with the ready media handles.
func (s *Service) Complete(ctx context.Context, prompt string, handles ...*models.RemoteHandle) (string, error) {
	s.logger.Debug("generating suggestions", zap.String("model", s.model), zap.Int("media", len(handles)))
	resp, err := s.generate(ctx, buildMessages(prompt, handles))
	if err != nil {
		return "", err
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return "", errors.New("model returned an empty response")
	}
	return resp.Content, nil
}

// Discard deletes the remote copy.
func (s *Service) Discard(ctx context.Context, id string) error {
	_, err := s.files.Delete(ctx, id, nil)
	return err
}

func buildMessages(prompt string, handles []*models.RemoteHandle) []*schema.Message {
	parts := make([]schema.ChatMessagePart, 0, len(handles)+1)
	for _, h := range handles {
		if h == nil || h.URI == "" {
			continue
		}
		parts = append(parts, schema.ChatMessagePart{
			Type: schema.ChatMessagePartTypeVideoURL,
			VideoURL: &schema.ChatMessageVideoURL{
				URL:      h.URI,
				URI:      h.URI,
				MIMEType: h.MIMEType,
			},
		})
	}
	parts = append(parts, schema.ChatMessagePart{
		Type: schema.ChatMessagePartTypeText,
		Text: prompt,
	})
	return []*schema.Message{
		schema.SystemMessage(systemPrompt),
		{
			Role:         schema.User,
			MultiContent: parts,
		},
	}
}

func toHandle(file *genai.File, fallbackMIME string) *models.RemoteHandle {
	h := &models.RemoteHandle{
		ID:       file.Name,
		URI:      file.URI,
		MIMEType: file.MIMEType,
		State:    toState(file.State),
	}
	if h.MIMEType == "" {
		h.MIMEType = fallbackMIME
	}
	if file.Error != nil {
		h.Error = file.Error.Message
	}
	return h
}

func toState(state genai.FileState) models.ProcessingState {
	switch state {
	case genai.FileStateActive:
		return models.StateReady
	case genai.FileStateFailed:
		return models.StateFailed
	case genai.FileStateProcessing:
		return models.StateProcessing
	default:
		return models.StatePending
	}
}

// Unconfigured stands in for Service when no credential is available, so the
// page still loads and each attempt reports why it cannot run.
type Unconfigured struct{}

func (Unconfigured) Upload(context.Context, *models.TempMedia) (*models.RemoteHandle, error) {
	return nil, ErrNotConfigured
}

func (Unconfigured) FetchState(context.Context, string) (*models.RemoteHandle, error) {
	return nil, ErrNotConfigured
}

func (Unconfigured) Complete(context.Context, string, ...*models.RemoteHandle) (string, error) {
	return "", ErrNotConfigured
}

func (Unconfigured) Discard(context.Context, string) error {
	return ErrNotConfigured
}
