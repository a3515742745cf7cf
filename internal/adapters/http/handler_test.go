package httpadapter_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/selkane/auxilium/internal/adapters/http"
	"github.com/selkane/auxilium/internal/adapters/llm"
	"github.com/selkane/auxilium/internal/app/attachments"
	"github.com/selkane/auxilium/internal/app/conversation"
	"github.com/selkane/auxilium/internal/app/voice"
	"github.com/selkane/auxilium/internal/audio/output"
	"github.com/selkane/auxilium/internal/domain"
)

type failingLLM struct{}

func (failingLLM) Generate(context.Context, domain.CompletionRequest) (*domain.CompletionResponse, error) {
	return nil, errors.New("quota exceeded")
}

type testEnv struct {
	handler http.Handler
	svc     *conversation.Service
	out     *output.Memory
}

type failingSpeech struct{}

func (failingSpeech) Synthesize(context.Context, string) (string, error) {
	return "", errors.New("tts unavailable")
}

func newTestServer(t *testing.T, client domain.CompletionClient) *testEnv {
	t.Helper()
	return newTestServerWithSpeech(t, client, nil)
}

func newTestServerWithSpeech(t *testing.T, client domain.CompletionClient, speech domain.SpeechClient) *testEnv {
	t.Helper()

	mock := llm.NewMockClient()
	if client == nil {
		client = mock
	}
	if speech == nil {
		speech = mock
	}
	svc := conversation.NewSession(domain.NewSessionID(), domain.LanguageAuto, client, nil, nil)
	ingestor := attachments.NewIngestor(svc.Pending())

	out := output.NewMemory()
	player := voice.NewPlayer(speech, func() (output.Output, error) { return out, nil }, nil)

	return &testEnv{
		handler: httpadapter.NewServer(svc, ingestor, player),
		svc:     svc,
		out:     out,
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, r)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func TestHealthz(t *testing.T) {
	env := newTestServer(t, nil)
	w := env.do(t, http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestGetStateStartsWithGreeting(t *testing.T) {
	env := newTestServer(t, nil)
	w := env.do(t, http.MethodGet, "/state", "")
	require.Equal(t, http.StatusOK, w.Code)

	var st struct {
		Module    string            `json:"module"`
		Messages  []*domain.Message `json:"messages"`
		IsLoading bool              `json:"is_loading"`
		CanSend   bool              `json:"can_send"`
	}
	decode(t, w, &st)
	require.Len(t, st.Messages, 1)
	assert.Equal(t, domain.GreetingID, st.Messages[0].ID)
	assert.Equal(t, "KNOWLEDGE", st.Module)
	assert.False(t, st.CanSend)
}

func TestSendMessage(t *testing.T) {
	env := newTestServer(t, nil)

	w := env.do(t, http.MethodPost, "/messages", `{"text":"Hello","module":"writing"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		UserMessage  *domain.Message `json:"user_message"`
		ModelMessage *domain.Message `json:"model_message"`
	}
	decode(t, w, &resp)
	assert.Equal(t, "Hello", resp.UserMessage.Content)
	assert.Equal(t, domain.ModuleWriting, resp.ModelMessage.ModuleID)
	assert.Len(t, env.svc.Store().State().Messages, 3)

	w = env.do(t, http.MethodGet, "/stats", "")
	var stats struct {
		Requests int `json:"requests"`
	}
	decode(t, w, &stats)
	assert.Equal(t, 1, stats.Requests)
}

func TestSendEmptyMessageIsBadRequest(t *testing.T) {
	env := newTestServer(t, nil)
	w := env.do(t, http.MethodPost, "/messages", `{"text":"  "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Len(t, env.svc.Store().State().Messages, 1)
}

func TestSendUnknownModuleIsBadRequest(t *testing.T) {
	env := newTestServer(t, nil)
	w := env.do(t, http.MethodPost, "/messages", `{"text":"hi","module":"poetry"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSendFailureAndDismiss(t *testing.T) {
	env := newTestServer(t, failingLLM{})

	w := env.do(t, http.MethodPost, "/messages", `{"text":"Hello"}`)
	require.Equal(t, http.StatusBadGateway, w.Code)
	var resp struct {
		Error string `json:"error"`
	}
	decode(t, w, &resp)
	assert.Equal(t, "quota exceeded", resp.Error)

	st := env.svc.Store().State()
	require.NotNil(t, st.Error)
	assert.Len(t, st.Messages, 2)

	w = env.do(t, http.MethodPost, "/error/dismiss", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, env.svc.Store().State().Error)
}

func TestUploadAndRemoveAttachments(t *testing.T) {
	env := newTestServer(t, nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range []struct{ name, ctype, data string }{
		{"notes.txt", "text/plain", "hello"},
		{"scan.bmp", "image/bmp", "BM"},
		{"photo.png", "image/png", "\x89PNG"},
	} {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="files"; filename="`+f.name+`"`)
		h.Set("Content-Type", f.ctype)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write([]byte(f.data))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	r := httptest.NewRequest(http.MethodPost, "/attachments", &body)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var pending []domain.Attachment
	decode(t, w, &pending)
	require.Len(t, pending, 2)

	w = env.do(t, http.MethodDelete, "/attachments/5", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodDelete, "/attachments/x", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodDelete, "/attachments/0", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, env.svc.Pending().Len())
}

func TestSetLanguageResetsGreeting(t *testing.T) {
	env := newTestServer(t, nil)

	w := env.do(t, http.MethodPut, "/language", `{"language":"ar"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var st struct {
		Language string            `json:"language"`
		RTL      bool              `json:"rtl"`
		Messages []*domain.Message `json:"messages"`
	}
	decode(t, w, &st)
	assert.Equal(t, "ar", st.Language)
	assert.True(t, st.RTL)
	assert.Equal(t, conversation.DefaultGreetings().Welcome("ar"), st.Messages[0].Content)
}

func TestSetModule(t *testing.T) {
	env := newTestServer(t, nil)

	w := env.do(t, http.MethodPut, "/module", `{"module":"tech"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.ModuleTech, env.svc.Module())

	w = env.do(t, http.MethodPut, "/module", `{"module":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVoice(t *testing.T) {
	env := newTestServer(t, nil)

	w := env.do(t, http.MethodPost, "/messages/unknown/voice", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPost, "/messages/init-1/voice", "")
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.Len(t, env.out.Played(), 1)

	var st struct {
		Playing string `json:"playing"`
	}
	decode(t, env.do(t, http.MethodGet, "/state", ""), &st)
	assert.Equal(t, "init-1", st.Playing)

	env.out.Finish()
	var after struct {
		Playing string `json:"playing"`
	}
	decode(t, env.do(t, http.MethodGet, "/state", ""), &after)
	assert.Empty(t, after.Playing)
}

func TestVoiceSynthesisFailureIsSilent(t *testing.T) {
	env := newTestServerWithSpeech(t, nil, failingSpeech{})

	w := env.do(t, http.MethodPost, "/messages/init-1/voice", "")
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var resp struct {
		State string `json:"state"`
	}
	decode(t, w, &resp)
	assert.Equal(t, "idle", resp.State)
	assert.Empty(t, env.out.Played())
	assert.Nil(t, env.svc.Store().State().Error)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestServer(t, nil)
	w := env.do(t, http.MethodOptions, "/messages", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
