package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/zk-Lokomotive/zkl-sui-sol/internal/api/generated"
)

func TestRequestLogger_LevelByStatus(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "INFO"},
		{http.StatusNotFound, "WARN"},
		{http.StatusRequestEntityTooLarge, "WARN"},
		{http.StatusConflict, "INFO"},
		{http.StatusInternalServerError, "ERROR"},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))
		handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			_, _ = w.Write([]byte("abc"))
		}))
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/x", strings.NewReader("{}")))

		var entry map[string]any
		if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
			t.Fatalf("разбор записи лога: %v", err)
		}
		if entry["level"] != tt.level {
			t.Errorf("статус %d: ожидался уровень %s, получен %v", tt.status, tt.level, entry["level"])
		}
		if entry["bytes"] != float64(3) {
			t.Errorf("ожидалось bytes=3, получено %v", entry["bytes"])
		}
		if entry["request_bytes"] != float64(2) {
			t.Errorf("ожидалось request_bytes=2, получено %v", entry["request_bytes"])
		}
		if entry["route"] != "unmatched" {
			t.Errorf("ожидался route=unmatched вне chi, получено %v", entry["route"])
		}
	}
}

func TestMetricsMiddleware_RoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(MetricsMiddleware())
	r.Get("/api/v1/transfers/{recipient}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/transfers/{recipient}", "404"))
	for _, addr := range []string{"a", "b"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/transfers/"+addr, nil))
	}
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/transfers/{recipient}", "404"))

	if after-before != 2 {
		t.Errorf("ожидалось +2 запроса по шаблону маршрута, получено %v", after-before)
	}
}

func newTestValidator(t *testing.T) *RequestValidator {
	t.Helper()
	doc, err := generated.GetSwagger()
	if err != nil {
		t.Fatalf("загрузка OpenAPI: %v", err)
	}
	v, err := NewRequestValidator(doc, testLogger())
	if err != nil {
		t.Fatalf("NewRequestValidator: %v", err)
	}
	return v
}

func TestRequestValidator(t *testing.T) {
	v := newTestValidator(t)
	reached := false
	handler := v.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	}))

	addr := "11111111111111111111111111111111"
	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"валидная инструкция", http.MethodPost, "/api/v1/instructions",
			`{"data":"CQ==","accounts":[{"address":"` + addr + `","is_signer":true}]}`, http.StatusOK},
		{"пустой список аккаунтов", http.MethodPost, "/api/v1/instructions",
			`{"data":"CQ==","accounts":[]}`, http.StatusBadRequest},
		{"нет data", http.MethodPost, "/api/v1/instructions",
			`{"accounts":[{"address":"` + addr + `"}]}`, http.StatusBadRequest},
		{"не base58 адрес", http.MethodGet, "/api/v1/transfers/0OIl", "", http.StatusBadRequest},
		{"неизвестный namespace", http.MethodGet, "/api/v1/addresses/other/" + addr, "", http.StatusBadRequest},
		{"нулевой airdrop", http.MethodPost, "/api/v1/accounts/" + addr + "/airdrop",
			`{"lamports":0}`, http.StatusBadRequest},
		{"data на пределе длины", http.MethodPost, "/api/v1/instructions",
			`{"data":"` + strings.Repeat("A", 788) + `","accounts":[{"address":"` + addr + `"}]}`, http.StatusOK},
		{"слишком длинный data", http.MethodPost, "/api/v1/instructions",
			`{"data":"` + strings.Repeat("A", 792) + `","accounts":[{"address":"` + addr + `"}]}`, http.StatusBadRequest},
		{"слишком длинный envelope", http.MethodPost, "/api/v1/messages",
			`{"envelope":"` + strings.Repeat("A", 2772) + `","accounts":[{"address":"` + addr + `"}]}`, http.StatusBadRequest},
		{"вне контракта", http.MethodGet, "/unknown", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reached = false
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if tt.body != "" {
				req.Header.Set("Content-Type", "application/json")
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("ожидался статус %d, получен %d, тело: %s", tt.want, rec.Code, rec.Body.String())
			}
			if (tt.want == http.StatusOK) != reached {
				t.Errorf("handler вызван=%v, ожидалось %v", reached, tt.want == http.StatusOK)
			}
			if tt.want == http.StatusBadRequest && !strings.Contains(rec.Body.String(), "VALIDATION_ERROR") {
				t.Errorf("ожидался код VALIDATION_ERROR, тело: %s", rec.Body.String())
			}
		})
	}
}

func TestBodyLimit_ContentLength(t *testing.T) {
	reached := false
	handler := BodyLimit(64)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/instructions", strings.NewReader(strings.Repeat("x", 65)))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("ожидался статус 413, получен %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "PAYLOAD_TOO_LARGE") {
		t.Errorf("ожидался код PAYLOAD_TOO_LARGE, тело: %s", rec.Body.String())
	}
	if reached {
		t.Error("handler не должен вызываться для слишком большого тела")
	}

	// Ровно на пределе запрос проходит.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/instructions", strings.NewReader(strings.Repeat("x", 64)))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !reached {
		t.Errorf("тело на пределе должно проходить: статус %d, handler вызван=%v", rec.Code, reached)
	}
}

func TestBodyLimit_UnknownLength(t *testing.T) {
	var readErr error
	handler := BodyLimit(64)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/instructions", strings.NewReader(strings.Repeat("x", 1024)))
	req.ContentLength = -1
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if !IsBodyTooLarge(readErr) {
		t.Errorf("чтение за пределом должно вернуть MaxBytesError, получено %v", readErr)
	}
}

func TestBodyLimit_BeforeValidator(t *testing.T) {
	v := newTestValidator(t)
	reached := false
	handler := BodyLimit(128)(v.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	})))

	body := `{"data":"` + strings.Repeat("A", 400) + `","accounts":[{"address":"11111111111111111111111111111111"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/instructions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.ContentLength = -1
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("ожидался статус 413, получен %d, тело: %s", rec.Code, rec.Body.String())
	}
	if reached {
		t.Error("handler не должен вызываться")
	}
}
