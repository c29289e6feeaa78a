package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/gin-gonic/gin"

	"pdf-translator/internal/types"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubRunner struct {
	outputs []string
	batch   *types.BatchResult
	err     error
	gotIn   []string
	gotOut  []string
}

func (s *stubRunner) Run(ctx context.Context, inputs, outputs []string) ([]string, error) {
	s.gotIn, s.gotOut = inputs, outputs
	return s.outputs, s.err
}

func (s *stubRunner) RunDetailed(ctx context.Context, inputs, outputs []string) (*types.BatchResult, error) {
	s.gotIn, s.gotOut = inputs, outputs
	return s.batch, s.err
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	w := do(t, New(&stubRunner{}, nil).Handler(), http.MethodGet, "/api/health", "")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		name       string
		runner     *stubRunner
		body       string
		wantStatus int
		wantKey    string
	}{
		{
			name:       "success",
			runner:     &stubRunner{outputs: []string{"a_out.pdf"}},
			body:       `{"pdf_paths":["a.pdf"],"output_paths":["a_out.pdf"]}`,
			wantStatus: http.StatusOK,
			wantKey:    "outputs",
		},
		{
			name:       "validation error",
			runner:     &stubRunner{err: types.NewAppError(types.ErrValidation, "the number of input and output paths must be identical", nil)},
			body:       `{"pdf_paths":["a.pdf"],"output_paths":[]}`,
			wantStatus: http.StatusBadRequest,
			wantKey:    "error",
		},
		{
			name:       "job error",
			runner:     &stubRunner{err: types.NewAppError(types.ErrConfigKeyMissing, "TRANSLATE_TO not found in store", nil)},
			body:       `{"pdf_paths":["a.pdf"],"output_paths":["a_out.pdf"]}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantKey:    "error",
		},
		{
			name:       "malformed body",
			runner:     &stubRunner{},
			body:       `{"pdf_paths":`,
			wantStatus: http.StatusBadRequest,
			wantKey:    "error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, New(tt.runner, nil).Handler(), http.MethodPost, "/api/translate", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.wantStatus, w.Body.String())
			}
			var resp map[string]interface{}
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			if _, ok := resp[tt.wantKey]; !ok {
				t.Errorf("response missing %q: %v", tt.wantKey, resp)
			}
		})
	}
}

func TestTranslate_PassesPaths(t *testing.T) {
	runner := &stubRunner{outputs: []string{"x"}}
	do(t, New(runner, nil).Handler(), http.MethodPost, "/api/translate",
		`{"pdf_paths":["a.pdf","b.pdf"],"output_paths":["a_out.pdf","b_out.pdf"]}`)

	if !reflect.DeepEqual(runner.gotIn, []string{"a.pdf", "b.pdf"}) || !reflect.DeepEqual(runner.gotOut, []string{"a_out.pdf", "b_out.pdf"}) {
		t.Errorf("runner got %v / %v", runner.gotIn, runner.gotOut)
	}
}

func TestTranslateDetailed(t *testing.T) {
	batch := &types.BatchResult{
		BatchID: "b-1",
		Results: []types.PipelineResult{
			{Index: 0, InputPath: "a.pdf", OutputPath: "a_out.pdf"},
			{Index: 1, InputPath: "b.pdf", OutputPath: "b_out.pdf", Error: "failed", Code: "EXTRACT_ERROR"},
		},
		Succeeded: 1,
		Failed:    1,
	}
	w := do(t, New(&stubRunner{batch: batch}, nil).Handler(), http.MethodPost, "/api/translate/detailed",
		`{"pdf_paths":["a.pdf","b.pdf"],"output_paths":["a_out.pdf","b_out.pdf"]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var got types.BatchResult
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(&got, batch) {
		t.Errorf("got %+v, want %+v", got, batch)
	}
}

func TestInspect(t *testing.T) {
	inspector := func(path string) (*types.PDFInfo, error) {
		if path == "missing.pdf" {
			return nil, errors.New("no such file")
		}
		return &types.PDFInfo{Path: path, PageCount: 3, Valid: true}, nil
	}
	h := New(&stubRunner{}, inspector).Handler()

	if w := do(t, h, http.MethodPost, "/api/inspect", `{"path":"a.pdf"}`); w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if w := do(t, h, http.MethodPost, "/api/inspect", `{"path":"missing.pdf"}`); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	if w := do(t, h, http.MethodPost, "/api/inspect", `{}`); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}

	if w := do(t, New(&stubRunner{}, nil).Handler(), http.MethodPost, "/api/inspect", `{"path":"a.pdf"}`); w.Code != http.StatusNotFound {
		t.Errorf("inspect without inspector: status = %d, want 404", w.Code)
	}
}

func TestListenAndServe_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(&stubRunner{}, nil).ListenAndServe(ctx, "127.0.0.1:0") }()
	cancel()
	if err := <-done; err != nil {
		t.Errorf("ListenAndServe returned %v", err)
	}
}
