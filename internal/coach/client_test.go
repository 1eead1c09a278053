package coach

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"talkcoach/internal/transcript"
)

func writeArtifact(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture.wav")
	if err := os.WriteFile(path, []byte("RIFFfake-audio"), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	return path
}

func TestTranscribe(t *testing.T) {
	var gotField string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transcribe" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
		} else {
			gotField = header.Filename
			_ = file.Close()
		}
		_, _ = w.Write([]byte(`{"text": "I finished the migration early"}`))
	}))
	defer srv.Close()

	client := New(srv.URL, time.Second)
	text, err := client.Transcribe(context.Background(), writeArtifact(t))
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if text != "I finished the migration early" {
		t.Fatalf("unexpected text %q", text)
	}
	if gotField != "capture.wav" {
		t.Fatalf("expected uploaded filename capture.wav, got %q", gotField)
	}
}

func TestTranscribeEmptyTextIsValid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"text": ""}`))
	}))
	defer srv.Close()

	client := New(srv.URL, time.Second)
	text, err := client.Transcribe(context.Background(), writeArtifact(t))
	if err != nil {
		t.Fatalf("empty transcription must not error: %v", err)
	}
	if text != "" {
		t.Fatalf("expected empty text, got %q", text)
	}
}

func TestRemoteErrorCarriesTruncatedBody(t *testing.T) {
	long := strings.Repeat("x", 500)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, long, http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := New(srv.URL, time.Second)
	_, err := client.Reply(context.Background(), "hello", SessionContext{})

	var remoteErr *RemoteError
	if !errors.As(err, &remoteErr) {
		t.Fatalf("expected RemoteError, got %v", err)
	}
	if remoteErr.Status != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", remoteErr.Status)
	}
	if len(remoteErr.Body) != maxErrorBody {
		t.Fatalf("expected body truncated to %d bytes, got %d", maxErrorBody, len(remoteErr.Body))
	}
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := New(srv.URL, time.Second)
	_, err := client.Reply(context.Background(), "hello", SessionContext{})

	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if transportErr.Op != "chat" {
		t.Fatalf("expected op chat, got %q", transportErr.Op)
	}
}

func TestTransportErrorOnTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	client := New(srv.URL, 50*time.Millisecond)
	_, err := client.Reply(context.Background(), "hello", SessionContext{})

	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected TransportError on timeout, got %v", err)
	}
}

func TestMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json at all`))
	}))
	defer srv.Close()

	client := New(srv.URL, time.Second)
	_, err := client.Reply(context.Background(), "hello", SessionContext{})
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestReplySendsSessionContext(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := make([]byte, r.ContentLength)
		_, _ = r.Body.Read(raw)
		gotBody = string(raw)
		_, _ = w.Write([]byte(`{"reply": "Great, let's talk about how you prioritized."}`))
	}))
	defer srv.Close()

	client := New(srv.URL, time.Second)
	sc := SessionContext{
		Conversation: "appraisal",
		Feeling:      "nervous",
		Focus:        []string{"Key achievements and contributions"},
	}
	reply, err := client.Reply(context.Background(), "I finished the migration early", sc)
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if reply != "Great, let's talk about how you prioritized." {
		t.Fatalf("unexpected reply %q", reply)
	}

	for _, want := range []string{`"user_text"`, `"conversation":"appraisal"`, `"feeling":"nervous"`, `"focus"`} {
		if !strings.Contains(gotBody, want) {
			t.Fatalf("request body missing %s: %s", want, gotBody)
		}
	}
}

func TestReplyMissingContentIsValidEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := New(srv.URL, time.Second)
	reply, err := client.Reply(context.Background(), "hello", SessionContext{})
	if err != nil {
		t.Fatalf("missing reply must not error: %v", err)
	}
	if reply != "" {
		t.Fatalf("expected empty reply, got %q", reply)
	}
}

func TestSynthesizeResolvesRelativeURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"url": "static/tts/abc.wav"}`))
	}))
	defer srv.Close()

	client := New(srv.URL, time.Second)
	locator, err := client.Synthesize(context.Background(), "hello")
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if locator != srv.URL+"/static/tts/abc.wav" {
		t.Fatalf("expected resolved locator, got %q", locator)
	}
}

func TestSynthesizeKeepsAbsoluteURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"url": "https://cdn.example.com/tts/abc.wav"}`))
	}))
	defer srv.Close()

	client := New(srv.URL, time.Second)
	locator, err := client.Synthesize(context.Background(), "hello")
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if locator != "https://cdn.example.com/tts/abc.wav" {
		t.Fatalf("expected absolute locator kept, got %q", locator)
	}
}

func TestSynthesizeMissingURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := New(srv.URL, time.Second)
	if _, err := client.Synthesize(context.Background(), "hello"); !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestSynthesizeRejectsBlankText(t *testing.T) {
	client := New("http://127.0.0.1:1", time.Second)
	if _, err := client.Synthesize(context.Background(), "   "); err == nil {
		t.Fatal("expected error for blank tts text")
	}
}

func TestAnalyzePassesReportThrough(t *testing.T) {
	report := `{"scores":{"clarity":7},"summary":"Solid opening."}`
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := make([]byte, r.ContentLength)
		_, _ = r.Body.Read(raw)
		gotBody = string(raw)
		_, _ = w.Write([]byte(report))
	}))
	defer srv.Close()

	client := New(srv.URL, time.Second)
	turns := []transcript.Turn{
		{Role: transcript.RoleAssistant, Text: "hello"},
		{Role: transcript.RoleUser, Text: "hi"},
	}
	got, err := client.Analyze(context.Background(), SessionContext{Conversation: "appraisal"}, turns)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if string(got) != report {
		t.Fatalf("report was not passed through unmodified: %s", got)
	}
	if !strings.Contains(gotBody, `"turns":[{"role":"assistant","text":"hello"},{"role":"user","text":"hi"}]`) {
		t.Fatalf("request body missing ordered turns: %s", gotBody)
	}
}

func TestAnalyzeRejectsNonObjectBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[1, 2, 3]`))
	}))
	defer srv.Close()

	client := New(srv.URL, time.Second)
	if _, err := client.Analyze(context.Background(), SessionContext{}, nil); !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}
