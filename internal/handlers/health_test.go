package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/mock/gomock"

	"slidedeck-ai/internal/vectorstore/mocks"
)

type fakePinger struct {
	err error
}

func (p fakePinger) PingContext(context.Context) error { return p.err }

func TestHealthHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		mockSetup   func(*mocks.MockVectorStore)
		pingErr     error
		wantStatus  int
		wantStatusS string
		wantChecks  map[string]string
	}{
		{
			name:   "healthy",
			method: http.MethodGet,
			mockSetup: func(m *mocks.MockVectorStore) {
				m.EXPECT().CollectionExists(gomock.Any(), "chunks").Return(true, nil)
			},
			wantStatus:  http.StatusOK,
			wantStatusS: "healthy",
			wantChecks:  map[string]string{"vector_store": "ok", "database": "ok"},
		},
		{
			name:   "nothing indexed yet",
			method: http.MethodGet,
			mockSetup: func(m *mocks.MockVectorStore) {
				m.EXPECT().CollectionExists(gomock.Any(), "chunks").Return(false, nil)
			},
			wantStatus:  http.StatusOK,
			wantStatusS: "healthy",
			wantChecks:  map[string]string{"vector_store": "empty", "database": "ok"},
		},
		{
			name:   "vector store down",
			method: http.MethodGet,
			mockSetup: func(m *mocks.MockVectorStore) {
				m.EXPECT().CollectionExists(gomock.Any(), "chunks").Return(false, errors.New("connection refused"))
			},
			wantStatus:  http.StatusServiceUnavailable,
			wantStatusS: "unhealthy",
			wantChecks:  map[string]string{"vector_store": "error", "database": "ok"},
		},
		{
			name:   "database down",
			method: http.MethodGet,
			mockSetup: func(m *mocks.MockVectorStore) {
				m.EXPECT().CollectionExists(gomock.Any(), "chunks").Return(true, nil)
			},
			pingErr:     errors.New("database is closed"),
			wantStatus:  http.StatusServiceUnavailable,
			wantStatusS: "unhealthy",
			wantChecks:  map[string]string{"vector_store": "ok", "database": "error"},
		},
		{
			name:       "method not allowed",
			method:     http.MethodPost,
			mockSetup:  func(*mocks.MockVectorStore) {},
			wantStatus: http.StatusMethodNotAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			store := mocks.NewMockVectorStore(ctrl)
			tt.mockSetup(store)
			h := NewHealthHandler(store, fakePinger{err: tt.pingErr}, "chunks")

			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(tt.method, "/api/health", nil))

			if w.Code != tt.wantStatus {
				t.Fatalf("ServeHTTP() status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantChecks == nil {
				return
			}
			var resp HealthResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatal(err)
			}
			if resp.Status != tt.wantStatusS {
				t.Errorf("status = %q, want %q", resp.Status, tt.wantStatusS)
			}
			for k, v := range tt.wantChecks {
				if resp.Checks[k] != v {
					t.Errorf("checks[%s] = %q, want %q", k, resp.Checks[k], v)
				}
			}
			if (tt.wantStatus == http.StatusOK) != (len(resp.Issues) == 0) {
				t.Errorf("issues = %v", resp.Issues)
			}
		})
	}
}
