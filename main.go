package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SaiNageswarS/chat-boot/appconfig"
	"github.com/SaiNageswarS/chat-boot/handlers"
	"github.com/SaiNageswarS/chat-boot/llm"
	"github.com/SaiNageswarS/chat-boot/prompts"
	"github.com/SaiNageswarS/chat-boot/services"
	"github.com/SaiNageswarS/chat-boot/session"
	"github.com/SaiNageswarS/go-api-boot/config"
	"github.com/SaiNageswarS/go-api-boot/dotenv"
	"github.com/SaiNageswarS/go-api-boot/logger"
	"go.uber.org/zap"
)

func main() {
	dotenv.LoadEnv()

	// load config file
	ccfgg := &appconfig.AppConfig{}
	err := config.LoadConfig("config.ini", ccfgg)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}
	ccfgg.ApplyDefaults()

	systemPrompt, err := prompts.RenderDefaultSystemPrompt(ccfgg.Audience)
	if err != nil {
		logger.Fatal("Failed to render system prompt", zap.Error(err))
	}

	client, clientErr := llm.ProvideClient(ccfgg.LLMProvider, ccfgg.DefaultModel, ccfgg.LLMBaseURL)
	notice := ""
	if clientErr != nil {
		if !errors.Is(clientErr, llm.ErrMissingCredential) {
			logger.Fatal("Failed to create LLM client", zap.Error(clientErr))
		}
		notice = services.MissingCredentialNotice(llm.CredentialEnv(ccfgg.LLMProvider))
		logger.Error("Chat disabled", zap.String("provider", ccfgg.LLMProvider), zap.Error(clientErr))
	}

	go prompts.DefaultTokenCounter.Warm()

	limits := ccfgg.Limits(systemPrompt)
	registry := session.NewRegistry(limits, ccfgg.SessionIdleTTL())
	svc := services.ProvideChatService(client, clientErr, limits, prompts.DefaultTokenCounter)

	handler, err := handlers.ProvideChatHandler(svc, registry, handlers.Options{
		Title:            ccfgg.Title,
		CredentialNotice: notice,
		TypewriterChunk:  ccfgg.TypewriterChunk,
		TypewriterDelay:  ccfgg.TypewriterDelay(),
	})
	if err != nil {
		logger.Fatal("Failed to build handlers", zap.Error(err))
	}

	ctx := getCancellableContext()
	go registry.Run(ctx, time.Minute)

	srv := &http.Server{
		Addr:              ccfgg.ListenAddr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("Serving chat", zap.String("addr", ccfgg.ListenAddr), zap.String("provider", ccfgg.LLMProvider))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

func getCancellableContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sig
		cancel()
	}()

	return ctx
}
