package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/SaiNageswarS/chat-boot/llm"
	"github.com/SaiNageswarS/chat-boot/memory"
	"github.com/SaiNageswarS/chat-boot/prompts"
	"github.com/SaiNageswarS/chat-boot/session"
	"github.com/SaiNageswarS/go-api-boot/logger"
	"github.com/SaiNageswarS/go-collection-boot/async"
	"go.uber.org/zap"
)

var ErrEmptyMessage = errors.New("message is empty")

type ChatService struct {
	client      llm.LLMClient
	unavailable error
	limits      session.Limits
	tokens      *prompts.TokenCounter
	now         func() time.Time
}

// ProvideChatService wires the completion client into the chat round trip.
// clientErr is the error the client constructor failed with, if any; while it
// is set every chat operation is refused with it.
func ProvideChatService(client llm.LLMClient, clientErr error, limits session.Limits, tokens *prompts.TokenCounter) *ChatService {
	if client == nil && clientErr == nil {
		clientErr = llm.ErrMissingCredential
	}

	return &ChatService{
		client:      client,
		unavailable: clientErr,
		limits:      limits,
		tokens:      tokens,
		now:         time.Now,
	}
}

// Ready reports why chatting is impossible, or nil.
func (s *ChatService) Ready() error {
	return s.unavailable
}

func (s *ChatService) Limits() session.Limits {
	return s.limits
}

// Submit runs one round trip: the user text and the reply are appended to the
// session history only when the completion succeeds. On failure the history is
// left as it was and the error is recorded on the session for display.
func (s *ChatService) Submit(ctx context.Context, sess *session.Session, settings session.Settings, text string) (llm.Message, error) {
	if err := s.Ready(); err != nil {
		return llm.Message{}, err
	}

	if strings.TrimSpace(text) == "" {
		return llm.Message{}, ErrEmptyMessage
	}

	if err := s.limits.Validate(settings); err != nil {
		return llm.Message{}, err
	}

	history, err := sess.Begin(settings, s.now())
	if err != nil {
		return llm.Message{}, err
	}

	payload := prompts.AssemblePrompt(settings.SystemPrompt, history, text)

	start := s.now()
	reply, err := async.Await(prompts.GenerateReply(ctx, s.client, payload,
		llm.WithLLMModel(settings.Model),
		llm.WithTemperature(settings.Temperature),
		llm.WithMaxTokens(settings.MaxTokens),
	))
	if err != nil {
		logger.Error("Completion failed",
			zap.String("session", sess.ID),
			zap.String("model", settings.Model),
			zap.Error(err))
		sess.Fail(UserFacingError(err), s.now())
		return llm.Message{}, err
	}

	sess.Commit(text, reply, s.now())
	logger.Info("Completion succeeded",
		zap.String("session", sess.ID),
		zap.String("model", settings.Model),
		zap.Int("history", len(history)+2),
		zap.Duration("latency", s.now().Sub(start)))

	return llm.AssistantMessage(reply), nil
}

func (s *ChatService) Reset(sess *session.Session) error {
	if err := s.Ready(); err != nil {
		return err
	}

	if err := sess.Reset(s.now()); err != nil {
		return err
	}

	logger.Info("Session history cleared", zap.String("session", sess.ID))
	return nil
}

func (s *ChatService) Export(sess *session.Session) ([]byte, error) {
	if err := s.Ready(); err != nil {
		return nil, err
	}

	return memory.ExportJSON(sess.History())
}

// ContextTokens estimates the prompt size the next message will build on:
// the system instruction plus the stored history.
func (s *ChatService) ContextTokens(sess *session.Session) int {
	settings := sess.Settings()
	payload := prompts.AssemblePrompt(settings.SystemPrompt, sess.History(), "")
	return s.tokens.CountMessages(payload[:len(payload)-1])
}

// UserFacingError renders an error the way it is shown inline in the chat.
func UserFacingError(err error) string {
	switch {
	case errors.Is(err, ErrEmptyMessage):
		return "Type a message first."
	case errors.Is(err, session.ErrBusy):
		return "Please wait for the current reply to finish."
	case errors.Is(err, session.ErrInvalidSettings):
		return err.Error()
	}
	return fmt.Sprintf("Model error: %v", err)
}

// MissingCredentialNotice is the single fatal notice shown when the API key is absent.
func MissingCredentialNotice(envName string) string {
	if envName == "" {
		return "The completion service is not configured."
	}
	return fmt.Sprintf("Missing %s. Add it to your .env or deployment secrets.", envName)
}
