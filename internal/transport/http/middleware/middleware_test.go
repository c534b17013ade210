package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pribylovaa/books-auth/internal/metrics"
	"github.com/pribylovaa/books-auth/internal/models"
	"github.com/pribylovaa/books-auth/internal/pkg/log"
	"github.com/pribylovaa/books-auth/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

// capHandler — тестовый slog.Handler, который:
//   - аккумулирует базовые attrs, приходящие через Logger.With(...);
//   - собирает attrs из каждой записи в map[string]any;
//   - не создаёт реальных I/O.
type capHandler struct {
	base    []slog.Attr
	lastMsg string
	lastLvl slog.Level
	attrs   map[string]any
	count   int
}

func (h *capHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *capHandler) Handle(_ context.Context, r slog.Record) error {
	out := make(map[string]any, len(h.base)+8)

	for _, a := range h.base {
		out[a.Key] = a.Value.Any()
	}

	r.Attrs(func(a slog.Attr) bool {
		out[a.Key] = a.Value.Any()
		return true
	})

	h.count++
	h.lastMsg = r.Message
	h.lastLvl = r.Level
	h.attrs = out

	return nil
}

func (h *capHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) > 0 {
		h.base = append(h.base, attrs...)
	}

	return h
}

func (h *capHandler) WithGroup(string) slog.Handler { return h }

func makeReq(target string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.RemoteAddr = (&net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 12345}).String()
	return req
}

type apiError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

type errEnvelope struct {
	Error apiError `json:"error"`
}

// stubAuthorizer принимает только токен "good".
type stubAuthorizer struct {
	claims *models.Claims
	calls  int
}

func (s *stubAuthorizer) Authorize(_ context.Context, raw string) (*models.Claims, error) {
	s.calls++
	if raw != "good" {
		return nil, service.ErrRevoked
	}
	return s.claims, nil
}

func TestChain_Order(t *testing.T) {
	order := []string{}

	m1 := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "m1-begin")
			next.ServeHTTP(w, r)
			order = append(order, "m1-end")
		})
	}

	m2 := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "m2-begin")
			next.ServeHTTP(w, r)
			order = append(order, "m2-end")
		})
	}

	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
		w.WriteHeader(http.StatusTeapot)
	})

	chain := Chain(final, m1, m2)
	rr := httptest.NewRecorder()
	chain.ServeHTTP(rr, makeReq("/chain"))

	require.Equal(t, []string{"m1-begin", "m2-begin", "handler", "m2-end", "m1-end"}, order)
	require.Equal(t, http.StatusTeapot, rr.Code)
}

func TestRequestID_GenerateAndPropagate(t *testing.T) {
	var seenID string
	var seenCtxID string

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID = r.Header.Get("X-Request-Id")
		seenCtxID = RequestIDFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	chain := Chain(h, RequestID())
	rr := httptest.NewRecorder()
	chain.ServeHTTP(rr, makeReq("/rid"))

	respID := rr.Header().Get("X-Request-Id")
	_, err := uuid.Parse(respID)
	require.NoError(t, err)

	require.Equal(t, respID, seenID)
	require.Equal(t, respID, seenCtxID)
}

func TestRequestID_UseExisting(t *testing.T) {
	const given = "abc123-existing-id"
	var seenCtxID string

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenCtxID = RequestIDFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	chain := Chain(h, RequestID())
	rr := httptest.NewRecorder()
	req := makeReq("/rid2")
	req.Header.Set("X-Request-Id", given)
	chain.ServeHTTP(rr, req)

	require.Equal(t, given, rr.Header().Get("X-Request-Id"))
	require.Equal(t, given, seenCtxID)
}

func TestRequestID_ReplacesUnsafe(t *testing.T) {
	tests := []struct {
		name  string
		given string
	}{
		{name: "newline", given: "rid\nforged=1"},
		{name: "space", given: "rid with space"},
		{name: "too_long", given: strings.Repeat("a", maxRequestIDLen+1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seenCtxID string
			h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seenCtxID = RequestIDFrom(r.Context())
			})

			req := makeReq("/rid3")
			req.Header.Set("X-Request-Id", tt.given)
			rr := httptest.NewRecorder()
			Chain(h, RequestID()).ServeHTTP(rr, req)

			respID := rr.Header().Get("X-Request-Id")
			require.NotEqual(t, tt.given, respID)
			_, err := uuid.Parse(respID)
			require.NoError(t, err)
			require.Equal(t, respID, seenCtxID)
		})
	}
}

func TestAuthBearer_PopulatesContext_WhenBearerPresent(t *testing.T) {
	var token string

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, _ = TokenFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	chain := Chain(h, AuthBearer())
	req := makeReq("/auth")
	req.Header.Set("Authorization", "Bearer test-token-123")
	chain.ServeHTTP(httptest.NewRecorder(), req)

	require.Equal(t, "test-token-123", token)

	req = makeReq("/auth")
	req.Header.Set("Authorization", "bearer lower-case")
	chain.ServeHTTP(httptest.NewRecorder(), req)

	require.Equal(t, "lower-case", token)
}

func TestAuthBearer_IgnoresInvalidHeader(t *testing.T) {
	var found bool

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, found = TokenFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	chain := Chain(h, AuthBearer())

	for _, header := range []string{"", "Basic aaa", "Bearer ", "Bearer    "} {
		req := makeReq("/auth")
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		chain.ServeHTTP(httptest.NewRecorder(), req)
		require.False(t, found, "header %q", header)
	}
}

func TestAuthenticate_AcceptsValidToken(t *testing.T) {
	uid := uuid.New()
	auth := &stubAuthorizer{claims: &models.Claims{Subject: uid, Username: "alice", Kind: models.KindAccess}}

	var got *models.Claims
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = ClaimsFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	capH := &capHandler{}
	chain := Chain(h, Logging(slog.New(capH), nil), AuthBearer(), Authenticate(auth))

	req := makeReq("/profile/alice")
	req.Header.Set("Authorization", "Bearer good")
	rr := httptest.NewRecorder()
	chain.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, got)
	require.Equal(t, uid, got.Subject)

	require.Equal(t, uid.String(), capH.attrs["user_id"])
	require.Equal(t, "alice", capH.attrs["username"])
	_, anon := capH.attrs["user"]
	require.False(t, anon)
}

func TestAuthenticate_Rejects(t *testing.T) {
	auth := &stubAuthorizer{}

	called := false
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	capH := &capHandler{}
	chain := Chain(h, Logging(slog.New(capH), nil), AuthBearer(), Authenticate(auth))

	tests := []struct {
		name   string
		header string
	}{
		{name: "no_token", header: ""},
		{name: "rejected_token", header: "Bearer bad"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := makeReq("/profile/alice")
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			chain.ServeHTTP(rr, req)

			require.Equal(t, http.StatusUnauthorized, rr.Code)
			require.False(t, called)

			var env errEnvelope
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
			require.Equal(t, "unauthorized", env.Error.Code)

			require.Equal(t, "anonymous", capH.attrs["user"])
		})
	}

	require.Equal(t, 1, auth.calls, "authorizer is not called without a token")
}

func TestTimeout_SetsDeadline_WhenAbsent(t *testing.T) {
	var hasDeadline bool
	var left time.Duration

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dl, ok := r.Context().Deadline()
		hasDeadline = ok
		if ok {
			left = time.Until(dl)
		}
		w.WriteHeader(http.StatusOK)
	})

	chain := Chain(h, Timeout(50*time.Millisecond))
	chain.ServeHTTP(httptest.NewRecorder(), makeReq("/timeout"))

	require.True(t, hasDeadline)
	require.Greater(t, left, time.Duration(0))
}

func TestTimeout_DoesNotOverrideExistingDeadline(t *testing.T) {
	var childDL time.Time

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dl, _ := r.Context().Deadline()
		childDL = dl
		w.WriteHeader(http.StatusOK)
	})

	parent, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	req := makeReq("/timeout2").WithContext(parent)

	chain := Chain(h, Timeout(1*time.Second))
	chain.ServeHTTP(httptest.NewRecorder(), req)

	parentDL, _ := parent.Deadline()
	require.WithinDuration(t, parentDL, childDL, time.Millisecond)
}

func TestTimeout_LogsExceededDeadline(t *testing.T) {
	h := &capHandler{}
	logger := slog.New(h)

	r := chi.NewRouter()
	r.Use(Timeout(10 * time.Millisecond))
	r.Get("/profile/{username}", func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
		w.WriteHeader(http.StatusGatewayTimeout)
	})

	req := makeReq("/profile/alice")
	req = req.WithContext(log.Into(req.Context(), logger))
	r.ServeHTTP(httptest.NewRecorder(), req)

	require.Equal(t, "request_timeout", h.lastMsg)
	require.Equal(t, slog.LevelWarn, h.lastLvl)
	require.Equal(t, "/profile/{username}", h.attrs["route"])
	require.Equal(t, 10*time.Millisecond, h.attrs["timeout"])
}

func TestTimeout_NoLogWhenInTime(t *testing.T) {
	h := &capHandler{}
	logger := slog.New(h)

	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := makeReq("/fast")
	req = req.WithContext(log.Into(req.Context(), logger))
	Chain(ok, Timeout(time.Second)).ServeHTTP(httptest.NewRecorder(), req)

	require.Zero(t, h.count)
}

func TestRecover_ConvertsPanicTo500(t *testing.T) {
	panicHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	chain := Chain(panicHandler, RequestID(), Recover())
	rr := httptest.NewRecorder()
	chain.ServeHTTP(rr, makeReq("/panic"))

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var env errEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	require.Equal(t, "internal", env.Error.Code)
	require.NotEmpty(t, env.Error.Message)
	require.Equal(t, rr.Header().Get("X-Request-Id"), env.Error.RequestID)
}

func TestRecover_LogsRequestAndStack(t *testing.T) {
	h := &capHandler{}
	logger := slog.New(h)

	panicHandler := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})

	req := makeReq("/panic")
	req.Header.Set("X-Request-Id", "rid-panic")
	req = req.WithContext(log.Into(req.Context(), logger))
	Chain(panicHandler, RequestID(), Recover()).ServeHTTP(httptest.NewRecorder(), req)

	require.Equal(t, "panic", h.lastMsg)
	require.Equal(t, slog.LevelError, h.lastLvl)
	require.Equal(t, "rid-panic", h.attrs["request_id"])
	require.Equal(t, "boom", h.attrs["reason"])
	require.Contains(t, h.attrs["stack"], "goroutine")
}

func TestRecover_RepanicsAbortHandler(t *testing.T) {
	abort := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	})

	require.PanicsWithValue(t, http.ErrAbortHandler, func() {
		Chain(abort, Recover()).ServeHTTP(httptest.NewRecorder(), makeReq("/abort"))
	})
}

func TestLogging_WritesRecord_WithStatusDurBytesAndRequestID(t *testing.T) {
	h := &capHandler{}
	logger := slog.New(h)

	const rid = "rid-456"
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Не вызываем WriteHeader — статус должен стать 200 после Write.
		_, _ = w.Write([]byte("0123456789"))
	})

	handler := Chain(final, RequestID(), Logging(logger, nil))

	rr := httptest.NewRecorder()
	req := makeReq("/log")
	req.Header.Set("X-Request-Id", rid)
	req.Header.Set("User-Agent", "unit-test")

	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, 1, h.count)
	require.Equal(t, "http", h.lastMsg)

	status, _ := h.attrs["status"].(int64) // slog хранит числа как int64
	bytes, _ := h.attrs["bytes"].(int64)

	require.Equal(t, http.MethodGet, h.attrs["method"])
	require.Equal(t, "/log", h.attrs["path"])
	require.Equal(t, "unmatched", h.attrs["route"])
	require.EqualValues(t, http.StatusOK, status)
	require.EqualValues(t, 10, bytes)
	require.Equal(t, rid, h.attrs["request_id"])
	require.Equal(t, "127.0.0.1", h.attrs["ip"])
	require.Equal(t, "unit-test", h.attrs["user_agent"])
	require.Equal(t, "anonymous", h.attrs["user"])

	_, hasDur := h.attrs["dur"]
	require.True(t, hasDur)
}

// TestLogging_RoutePatternMetrics — метрики размечаются шаблоном маршрута chi,
// а не фактическим путём.
func TestLogging_RoutePatternMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	r := chi.NewRouter()
	r.Use(Logging(slog.New(&capHandler{}), m))
	r.Get("/profile/{username}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	for _, name := range []string{"alice", "bob"} {
		r.ServeHTTP(httptest.NewRecorder(), makeReq("/profile/"+name))
	}

	n, err := testutil.GatherAndCount(reg, "books_auth_http_request_duration_seconds")
	require.NoError(t, err)
	require.Equal(t, 1, n, "one series for both paths")
}

func TestStatusWriter_CountsBytes_AndDefaultStatus200(t *testing.T) {
	rr := httptest.NewRecorder()
	sw := newStatusWriter(rr)

	_, _ = sw.Write([]byte("abcd"))

	require.Equal(t, http.StatusOK, sw.status)
	require.Equal(t, 4, sw.count)
}
