package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/SaiNageswarS/chat-boot/llm"
	"github.com/SaiNageswarS/chat-boot/memory"
	"github.com/SaiNageswarS/chat-boot/prompts"
	"github.com/SaiNageswarS/chat-boot/services"
	"github.com/SaiNageswarS/chat-boot/session"
	"github.com/gorilla/websocket"
	"github.com/pkoukk/tiktoken-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLimits = session.Limits{
	Models:              []string{"llama-3.1-8b-instant", "groq/compound", "openai/gpt-oss-120b"},
	DefaultModel:        "groq/compound",
	MinTemperature:      0.1,
	MaxTemperature:      0.9,
	DefaultTemperature:  0.4,
	MinMaxTokens:        100,
	MaxMaxTokens:        400,
	DefaultMaxTokens:    350,
	DefaultSystemPrompt: "You are a friendly tutor.",
}

const notice = "Missing GROQ_API_KEY. Add it to your .env or deployment secrets."

// fakeClient replies with a fixed text, or fails when err is set.
type fakeClient struct {
	mu    sync.Mutex
	reply string
	err   error
	calls int
}

func (f *fakeClient) GenerateInference(ctx context.Context, messages []llm.Message, callback func(chunk string) error, opts ...llm.LLMOption) error {
	f.mu.Lock()
	f.calls++
	reply, err := f.reply, f.err
	f.mu.Unlock()

	if err != nil {
		return err
	}
	return callback(reply)
}

func (f *fakeClient) GetModel() string {
	return "groq/compound"
}

func (f *fakeClient) set(reply string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reply, f.err = reply, err
}

type harness struct {
	server   *httptest.Server
	client   *http.Client
	registry *session.Registry
}

func newHarness(t *testing.T, client llm.LLMClient, clientErr error) *harness {
	t.Helper()

	counter := prompts.NewTokenCounter(func() (*tiktoken.Tiktoken, error) {
		return nil, errors.New("offline")
	})
	svc := services.ProvideChatService(client, clientErr, testLimits, counter)
	registry := session.NewRegistry(testLimits, time.Hour)

	h, err := ProvideChatHandler(svc, registry, Options{
		Title:            "EDUCATION ASSISTANT",
		CredentialNotice: notice,
		TypewriterChunk:  4,
	})
	require.NoError(t, err)

	server := httptest.NewServer(h.Routes())
	t.Cleanup(server.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &harness{
		server:   server,
		client:   &http.Client{Jar: jar},
		registry: registry,
	}
}

func (hs *harness) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	resp, err := hs.client.Get(hs.server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func (hs *harness) post(t *testing.T, path string, form url.Values) (*http.Response, string) {
	t.Helper()
	resp, err := hs.client.PostForm(hs.server.URL+path, form)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func (hs *harness) session(t *testing.T) *session.Session {
	t.Helper()
	u, _ := url.Parse(hs.server.URL)
	for _, c := range hs.client.Jar.Cookies(u) {
		if c.Name == sessionCookie {
			sess, ok := hs.registry.Get(c.Value)
			require.True(t, ok)
			return sess
		}
	}
	t.Fatal("no session cookie")
	return nil
}

func chatForm(text string) url.Values {
	return url.Values{
		"text":          {text},
		"model":         {"groq/compound"},
		"temperature":   {"0.4"},
		"max_tokens":    {"350"},
		"system_prompt": {"You are a friendly tutor."},
	}
}

func TestIndex_NewSession(t *testing.T) {
	hs := newHarness(t, &fakeClient{reply: "hi"}, nil)

	resp, body := hs.get(t, "/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "<title>EDUCATION ASSISTANT</title>")
	assert.Contains(t, body, `<option value="groq/compound" selected>`)
	assert.Contains(t, body, "You are a friendly tutor.")
	assert.Contains(t, body, `id="export" href="/export" download="chat_history.json" hidden`)
	assert.Empty(t, resp.Cookies())

	// page views alone never register sessions
	for i := 0; i < 5; i++ {
		hs.get(t, "/")
	}
	hs.get(t, "/export")
	assert.Equal(t, 0, hs.registry.Len())
}

func TestChat_CreatesSessionOnce(t *testing.T) {
	hs := newHarness(t, &fakeClient{reply: "hi"}, nil)

	hs.post(t, "/chat", chatForm("one"))
	sess := hs.session(t)
	assert.Equal(t, 1, hs.registry.Len())

	// the cookie keeps the same session
	hs.post(t, "/chat", chatForm("two"))
	hs.get(t, "/")
	assert.Equal(t, 1, hs.registry.Len())
	assert.Same(t, sess, hs.session(t))
	assert.Len(t, sess.History(), 4)
}

func TestChat_FormRoundTrip(t *testing.T) {
	hs := newHarness(t, &fakeClient{reply: "Photosynthesis turns **light** into energy."}, nil)

	resp, body := hs.post(t, "/chat", chatForm("What is photosynthesis?"))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/", resp.Request.URL.Path)

	assert.Contains(t, body, `<div class="msg user">What is photosynthesis?</div>`)
	assert.Contains(t, body, "<strong>light</strong>")
	assert.NotContains(t, body, `download="chat_history.json" hidden`)

	assert.Equal(t, []llm.Message{
		llm.UserMessage("What is photosynthesis?"),
		llm.AssistantMessage("Photosynthesis turns **light** into energy."),
	}, hs.session(t).History())
}

func TestChat_FormUsesSubmittedSettings(t *testing.T) {
	hs := newHarness(t, &fakeClient{reply: "ok"}, nil)

	form := chatForm("hello")
	form.Set("model", "llama-3.1-8b-instant")
	form.Set("temperature", "0.75")
	form.Set("max_tokens", "120")
	form.Set("system_prompt", "Answer like a pirate.")
	_, body := hs.post(t, "/chat", form)

	assert.Equal(t, session.Settings{
		Model:        "llama-3.1-8b-instant",
		Temperature:  0.75,
		MaxTokens:    120,
		SystemPrompt: "Answer like a pirate.",
	}, hs.session(t).Settings())
	assert.Contains(t, body, `<option value="llama-3.1-8b-instant" selected>`)
	assert.Contains(t, body, "Answer like a pirate.")
}

func TestChat_FailureShowsErrorOnce(t *testing.T) {
	fake := &fakeClient{reply: "first answer"}
	hs := newHarness(t, fake, nil)

	hs.post(t, "/chat", chatForm("first"))
	before := hs.session(t).History()

	fake.set("", &llm.CompletionError{Kind: llm.KindTransport, Provider: "groq", Err: errors.New("connection refused")})
	_, body := hs.post(t, "/chat", chatForm("second"))

	assert.Contains(t, body, "Model error: groq: transport error: connection refused")
	assert.NotContains(t, body, "second")
	assert.Equal(t, before, hs.session(t).History())

	_, body = hs.get(t, "/")
	assert.NotContains(t, body, "Model error")
	assert.Contains(t, body, "first answer")
}

func TestChat_RejectsBadInput(t *testing.T) {
	tests := []struct {
		name    string
		form    url.Values
		message string
	}{
		{name: "empty text", form: chatForm("   "), message: "Type a message first."},
		{
			name: "unknown model",
			form: func() url.Values {
				f := chatForm("hi")
				f.Set("model", "gpt-2")
				return f
			}(),
			message: "unknown model",
		},
		{
			name: "temperature not a number",
			form: func() url.Values {
				f := chatForm("hi")
				f.Set("temperature", "warm")
				return f
			}(),
			message: "temperature",
		},
		{
			name: "temperature NaN",
			form: func() url.Values {
				f := chatForm("hi")
				f.Set("temperature", "NaN")
				return f
			}(),
			message: "temperature",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeClient{reply: "never"}
			hs := newHarness(t, fake, nil)

			_, body := hs.post(t, "/chat", tt.form)
			assert.Contains(t, body, tt.message)
			assert.Empty(t, hs.session(t).History())
			assert.Equal(t, 0, fake.calls)
		})
	}
}

func TestReset_ClearsHistory(t *testing.T) {
	hs := newHarness(t, &fakeClient{reply: "answer"}, nil)

	for i := 0; i < 3; i++ {
		hs.post(t, "/chat", chatForm(fmt.Sprintf("q%d", i)))
	}
	require.Len(t, hs.session(t).History(), 6)

	resp, body := hs.post(t, "/reset", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, hs.session(t).History())
	assert.NotContains(t, body, "q0")
}

func TestExport_Download(t *testing.T) {
	hs := newHarness(t, &fakeClient{reply: "Ça va très bien <3"}, nil)

	hs.post(t, "/chat", chatForm("Comment ça va?"))

	resp, body := hs.get(t, "/export")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Equal(t, `attachment; filename="chat_history.json"`, resp.Header.Get("Content-Disposition"))
	assert.Contains(t, body, "Ça va très bien <3")

	parsed, err := memory.ParseExport([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, hs.session(t).History(), parsed)
}

func TestExport_EmptyHistory(t *testing.T) {
	hs := newHarness(t, &fakeClient{}, nil)

	resp, body := hs.get(t, "/export")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, "[]", body)
}

func TestMissingCredential_BlocksChat(t *testing.T) {
	missing := fmt.Errorf("GROQ_API_KEY: %w", llm.ErrMissingCredential)
	hs := newHarness(t, nil, missing)

	resp, body := hs.get(t, "/")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, 1, strings.Count(body, notice))
	assert.NotContains(t, body, `id="chat-form"`)

	for _, path := range []string{"/chat", "/reset"} {
		resp, body := hs.post(t, path, chatForm("hi"))
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode, path)
		assert.Contains(t, body, notice)
	}

	resp, _ = hs.get(t, "/export")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, body = hs.get(t, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.JSONEq(t, `{"status":"unconfigured"}`, body)

	wsURL := "ws" + strings.TrimPrefix(hs.server.URL, "http") + "/ws"
	_, wsResp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, wsResp)
	assert.Equal(t, http.StatusServiceUnavailable, wsResp.StatusCode)

	assert.Equal(t, 0, hs.registry.Len())
}

func TestHealthz(t *testing.T) {
	hs := newHarness(t, &fakeClient{}, nil)

	resp, body := hs.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, body)
}

func TestParseSettings(t *testing.T) {
	current := testLimits.Defaults()

	tests := []struct {
		name    string
		form    url.Values
		want    session.Settings
		wantErr bool
	}{
		{name: "nothing submitted keeps current", form: url.Values{}, want: current},
		{
			name: "all fields",
			form: url.Values{"model": {"x"}, "temperature": {" 0.3 "}, "max_tokens": {"200"}, "system_prompt": {""}},
			want: session.Settings{Model: "x", Temperature: 0.3, MaxTokens: 200, SystemPrompt: ""},
		},
		{name: "bad temperature", form: url.Values{"temperature": {"hot"}}, want: current, wantErr: true},
		{name: "bad max tokens", form: url.Values{"max_tokens": {"1e3"}}, want: current, wantErr: true},
		{name: "NaN temperature", form: url.Values{"temperature": {"NaN"}}, want: current, wantErr: true},
		{name: "infinite temperature", form: url.Values{"temperature": {"-Inf"}}, want: current, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSettings(tt.form, current)
			if tt.wantErr {
				assert.ErrorIs(t, err, session.ErrInvalidSettings)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
