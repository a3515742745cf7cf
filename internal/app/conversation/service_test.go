package conversation_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/selkane/auxilium/internal/adapters/llm"
	"github.com/selkane/auxilium/internal/adapters/storage/memory"
	"github.com/selkane/auxilium/internal/app/conversation"
	"github.com/selkane/auxilium/internal/domain"
)

type fakeLLM struct {
	mu    sync.Mutex
	reqs  []domain.CompletionRequest
	reply string
	err   error

	started chan struct{}
	release chan struct{}
}

func (f *fakeLLM) Generate(ctx context.Context, req domain.CompletionRequest) (*domain.CompletionResponse, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	return &domain.CompletionResponse{Text: f.reply}, nil
}

func (f *fakeLLM) last() domain.CompletionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reqs[len(f.reqs)-1]
}

func (f *fakeLLM) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reqs)
}

func newSession(client domain.CompletionClient) *conversation.Service {
	return conversation.NewSession("sess-test", domain.LanguageAuto, client, nil, nil)
}

func TestStartSessionAndSendMessage(t *testing.T) {
	ctx := context.Background()

	svc := newSession(llm.NewMockClient())

	svc.SetDraft("Hola Auxilium")
	reply, err := svc.Submit(ctx)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if reply.ModelMessage == nil || reply.ModelMessage.Content == "" {
		t.Fatalf("expected non-empty model reply")
	}
}

func TestSendSuccessAppendsUserThenModel(t *testing.T) {
	fake := &fakeLLM{reply: strings.Repeat("x", 40)}
	svc := newSession(fake)

	out, err := svc.Send(context.Background(), conversation.SendInput{
		Text:     "Hello",
		Module:   domain.ModuleWriting,
		Language: domain.LanguageAuto,
	})
	require.NoError(t, err)

	st := svc.Store().State()
	require.Len(t, st.Messages, 3)
	assert.False(t, st.IsLoading)
	assert.Nil(t, st.Error)

	user, model := st.Messages[1], st.Messages[2]
	assert.Equal(t, domain.RoleUser, user.Role)
	assert.Equal(t, "Hello", user.Content)
	assert.Equal(t, domain.ModuleWriting, user.ModuleID)
	assert.Equal(t, domain.RoleModel, model.Role)
	assert.Equal(t, domain.ModuleWriting, model.ModuleID)
	assert.NotEqual(t, user.ID, model.ID)
	assert.Equal(t, out.ModelMessage.ID, model.ID)

	req := fake.last()
	assert.Equal(t, "Hello", req.Prompt)
	assert.Equal(t, domain.ModuleWriting, req.Module)

	stats := svc.Stats()
	assert.Equal(t, 10, stats.Tokens)
	assert.Equal(t, 1, stats.Requests)
}

func TestSendFailureKeepsUserMessage(t *testing.T) {
	fake := &fakeLLM{err: errors.New("quota exceeded")}
	svc := newSession(fake)

	out, err := svc.Send(context.Background(), conversation.SendInput{Text: "Hello"})

	var reqErr *conversation.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, "quota exceeded", reqErr.Message)
	require.NotNil(t, out)
	assert.Nil(t, out.ModelMessage)

	st := svc.Store().State()
	require.Len(t, st.Messages, 2)
	assert.Equal(t, domain.RoleUser, st.Messages[1].Role)
	assert.False(t, st.IsLoading)
	require.NotNil(t, st.Error)
	assert.Equal(t, "quota exceeded", *st.Error)
}

func TestSendFailureWithoutMessageUsesFallback(t *testing.T) {
	svc := newSession(&fakeLLM{err: errors.New("")})

	_, err := svc.Send(context.Background(), conversation.SendInput{Text: "Hello"})
	require.Error(t, err)

	st := svc.Store().State()
	require.NotNil(t, st.Error)
	assert.Equal(t, "CRITICAL CORE ERROR.", *st.Error)
}

func TestSendEmptyInputIsNoop(t *testing.T) {
	fake := &fakeLLM{reply: "ok"}
	svc := newSession(fake)
	before := svc.Store().State()

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := svc.Send(context.Background(), conversation.SendInput{Text: text})
		assert.ErrorIs(t, err, conversation.ErrEmptyInput)
	}

	assert.Equal(t, before, svc.Store().State())
	assert.Equal(t, 0, fake.calls())
	assert.False(t, svc.CanSend())
}

func TestSendAttachmentsOnly(t *testing.T) {
	fake := &fakeLLM{reply: "I see a cat"}
	svc := newSession(fake)
	svc.Pending().Add(domain.Attachment{MIMEType: "image/png", Data: "AAAA", Name: "cat.png"})
	assert.True(t, svc.CanSend())

	_, err := svc.Send(context.Background(), conversation.SendInput{Text: ""})
	require.NoError(t, err)

	req := fake.last()
	require.Len(t, req.Attachments, 1)
	assert.Equal(t, "cat.png", req.Attachments[0].Name)

	st := svc.Store().State()
	require.Len(t, st.Messages[1].Attachments, 1)
	assert.Equal(t, 0, svc.Pending().Len())
}

func TestSendWhileLoadingIsNoop(t *testing.T) {
	fake := &fakeLLM{
		reply:   "done",
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	svc := newSession(fake)

	errc := make(chan error, 1)
	go func() {
		_, err := svc.Send(context.Background(), conversation.SendInput{Text: "first"})
		errc <- err
	}()

	select {
	case <-fake.started:
	case <-time.After(2 * time.Second):
		t.Fatal("first request never reached the model")
	}

	svc.Pending().Add(domain.Attachment{Name: "late.txt", MIMEType: "text/plain"})
	before := svc.Store().State()
	require.True(t, before.IsLoading)

	_, err := svc.Send(context.Background(), conversation.SendInput{Text: "second"})
	assert.ErrorIs(t, err, conversation.ErrRequestInFlight)
	assert.Equal(t, before, svc.Store().State())
	assert.Equal(t, 1, svc.Pending().Len())
	assert.False(t, svc.CanSend())

	close(fake.release)
	require.NoError(t, <-errc)
	assert.Equal(t, 1, fake.calls())
	assert.Len(t, svc.Store().State().Messages, 3)
}

func TestConcurrentEmptySendsShareOneAttachment(t *testing.T) {
	for round := 0; round < 200; round++ {
		svc := newSession(&fakeLLM{reply: "ok"})
		svc.Pending().Add(domain.Attachment{Name: "a.txt", MIMEType: "text/plain", Data: "YQ=="})

		var wg sync.WaitGroup
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = svc.Send(context.Background(), conversation.SendInput{Text: ""})
			}()
		}
		wg.Wait()

		for _, m := range svc.Store().State().Messages {
			if m.Role == domain.RoleUser {
				require.NotEmpty(t, m.Attachments, "round %d sent an empty user message", round)
			}
		}
	}
}

func TestSendDarijaDirectiveIsTransportOnly(t *testing.T) {
	fake := &fakeLLM{reply: "labas"}
	svc := newSession(fake)

	_, err := svc.Send(context.Background(), conversation.SendInput{
		Text:     "Salam, kidayr?",
		Language: domain.LanguageDarija,
	})
	require.NoError(t, err)

	prompt := fake.last().Prompt
	assert.True(t, strings.HasPrefix(prompt, "[PRIORITY_LANGUAGE: MOROCCAN_DARIJA]"))
	assert.Equal(t, domain.LanguageDarija.Directive()+"\n\nSalam, kidayr?", prompt)

	user := svc.Store().State().Messages[1]
	assert.Equal(t, "Salam, kidayr?", user.Content)
	assert.NotContains(t, user.Content, "PRIORITY_LANGUAGE")
}

func TestSendExplicitLanguageDirective(t *testing.T) {
	fake := &fakeLLM{reply: "ok"}
	svc := newSession(fake)

	_, err := svc.Send(context.Background(), conversation.SendInput{Text: "Bonjour", Language: "en"})
	require.NoError(t, err)
	assert.Equal(t, "[PRIORITY_LANGUAGE: EN]\n\nBonjour", fake.last().Prompt)
	assert.Equal(t, "Bonjour", svc.Store().State().Messages[1].Content)
}

func TestSendHistoryWindow(t *testing.T) {
	fake := &fakeLLM{reply: "ok"}
	svc := newSession(fake)

	for i := 0; i < 6; i++ {
		_, err := svc.Send(context.Background(), conversation.SendInput{Text: "turn"})
		require.NoError(t, err)
	}
	// greeting + 12 messages so far
	_, err := svc.Send(context.Background(), conversation.SendInput{Text: "latest"})
	require.NoError(t, err)

	req := fake.last()
	require.Len(t, req.History, 10)
	for _, m := range req.History {
		assert.NotEqual(t, "latest", m.Content)
	}
	all := svc.Store().State().Messages
	assert.Equal(t, all[len(all)-3].ID, req.History[9].ID)
}

func TestSubmitClearsDraftAndPending(t *testing.T) {
	fake := &fakeLLM{reply: "ok"}
	svc := newSession(fake)
	require.NoError(t, svc.SelectModule(domain.ModuleTech))
	svc.SetLanguage("es")
	svc.SetDraft("hola")
	svc.Pending().Add(domain.Attachment{Name: "a.txt", MIMEType: "text/plain", Data: "YQ=="})

	_, err := svc.Submit(context.Background())
	require.NoError(t, err)

	assert.Empty(t, svc.Draft())
	assert.Equal(t, 0, svc.Pending().Len())
	req := fake.last()
	assert.Equal(t, domain.ModuleTech, req.Module)
	assert.Equal(t, "[PRIORITY_LANGUAGE: ES]\n\nhola", req.Prompt)
}

func TestSetLanguageResetsGreetingOnlyBeforeExchange(t *testing.T) {
	svc := newSession(&fakeLLM{reply: "ok"})
	greetings := conversation.DefaultGreetings()

	svc.SetLanguage("en")
	st := svc.Store().State()
	require.Len(t, st.Messages, 1)
	assert.Equal(t, greetings.Welcome("en"), st.Messages[0].Content)

	_, err := svc.Send(context.Background(), conversation.SendInput{Text: "hi"})
	require.NoError(t, err)

	svc.SetLanguage("ar")
	assert.Equal(t, greetings.Welcome("en"), svc.Store().State().Messages[0].Content)
	assert.Equal(t, domain.Language("ar"), svc.Language())
}

func TestSelectModuleRejectsUnknown(t *testing.T) {
	svc := newSession(&fakeLLM{})
	assert.Error(t, svc.SelectModule("SAVOIR"))
	assert.Equal(t, domain.ModuleKnowledge, svc.Module())
}

func TestTranscriptIsPersistedAndResumed(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewTranscriptStore()

	svc := conversation.NewSession("sess-persist", domain.LanguageAuto, &fakeLLM{reply: "ok"}, repo, nil)
	require.NoError(t, svc.SelectModule(domain.ModuleStrategy))
	_, err := svc.Send(ctx, conversation.SendInput{Text: "plan", Module: domain.ModuleStrategy})
	require.NoError(t, err)

	saved, err := repo.LoadTranscript(ctx, "sess-persist")
	require.NoError(t, err)
	assert.Len(t, saved.Messages, 3)

	resumed := conversation.NewSession("sess-persist", domain.LanguageAuto, &fakeLLM{reply: "ok"}, repo, nil)
	require.NoError(t, resumed.Resume(ctx))
	assert.Len(t, resumed.Store().State().Messages, 3)
	assert.Equal(t, domain.ModuleStrategy, resumed.Module())
}
