package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"youkb/internal/domain"
	"youkb/internal/ingest"
	"youkb/internal/kbstore/memory"
)

type stubChatter struct {
	answer    string
	citations []domain.Citation
	err       error
}

func (s *stubChatter) Ask(ctx context.Context, kbName, query string) (string, []domain.Citation, error) {
	return s.answer, s.citations, s.err
}

type stubDigester struct {
	report ingest.Report
	err    error
}

func (s *stubDigester) Digest(ctx context.Context, kbName string, roots []string) (ingest.Report, error) {
	return s.report, s.err
}

func newTestServer(t *testing.T, chatter Chatter, digester Digester) (*Server, *memory.Store) {
	t.Helper()
	store := memory.New()
	srv := New(Config{Addr: ":0", AllowedOrigins: []string{"*"}}, store, chatter, digester, nil)
	return srv, store
}

func TestCreateAndListKBs(t *testing.T) {
	srv, _ := newTestServer(t, &stubChatter{}, &stubDigester{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/kbs", strings.NewReader(`{"name":"kb"}`)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body)
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/kbs", strings.NewReader(`{"name":"kb"}`)))
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate create status = %d, want 409", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/kbs", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var names []string
	if err := json.Unmarshal(rec.Body.Bytes(), &names); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(names) != 1 || names[0] != "kb" {
		t.Errorf("unexpected names: %v", names)
	}
}

func TestStatsNotFound(t *testing.T) {
	srv, _ := newTestServer(t, &stubChatter{}, &stubDigester{})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/kbs/missing/stats", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("stats status = %d, want 404", rec.Code)
	}
}

func TestChatResponseShape(t *testing.T) {
	chatter := &stubChatter{
		answer: "grounded answer [1]",
		citations: []domain.Citation{
			{Ref: 1, VideoID: "dQw4w9WgXcQ", Seconds: 42, Locator: "https://youtu.be/dQw4w9WgXcQ?t=42"},
		},
	}
	srv, _ := newTestServer(t, chatter, &stubDigester{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"kb_name":"kb","query":"what?"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("chat status = %d, body %s", rec.Code, rec.Body)
	}
	var resp struct {
		Response  string            `json:"response"`
		Citations []domain.Citation `json:"citations"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode chat response: %v", err)
	}
	if resp.Response != "grounded answer [1]" {
		t.Errorf("unexpected response: %q", resp.Response)
	}
	if len(resp.Citations) != 1 || resp.Citations[0].Locator != "https://youtu.be/dQw4w9WgXcQ?t=42" {
		t.Errorf("unexpected citations: %+v", resp.Citations)
	}
}

func TestChatValidation(t *testing.T) {
	srv, _ := newTestServer(t, &stubChatter{}, &stubDigester{})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"query":"no kb"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("chat without kb_name status = %d, want 400", rec.Code)
	}
}

func TestDigestEndpoint(t *testing.T) {
	digester := &stubDigester{report: ingest.Report{Processed: 2, Skipped: 1, Chunks: 7}}
	srv, _ := newTestServer(t, &stubChatter{}, digester)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/digest", strings.NewReader(`{"kb_name":"kb","roots":["downloads"]}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("digest status = %d, body %s", rec.Code, rec.Body)
	}
	var report ingest.Report
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report != digester.report {
		t.Errorf("report = %+v, want %+v", report, digester.report)
	}
}

func TestDropKB(t *testing.T) {
	srv, store := newTestServer(t, &stubChatter{}, &stubDigester{})
	if err := store.Create(context.Background(), "kb"); err != nil {
		t.Fatal(err)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/kbs/kb", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("drop status = %d", rec.Code)
	}
	if ok, _ := store.Exists(context.Background(), "kb"); ok {
		t.Error("kb still exists after drop")
	}
}
