package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ceacwatch/ceacwatch/pkg/checker"
)

type stubCore struct {
	manualFn func(ctx context.Context, req checker.CheckRequest) (*checker.ManualCheck, error)
	resumeFn func(ctx context.Context, sessionID, answer string) (*checker.StatusResult, error)
	autoFn   func(ctx context.Context, req checker.CheckRequest) (*checker.StatusResult, error)
	cancelFn func(ctx context.Context, sessionID string) error
	sessions []checker.SessionInfo
}

func (s *stubCore) CheckManual(ctx context.Context, req checker.CheckRequest) (*checker.ManualCheck, error) {
	if s.manualFn == nil {
		return &checker.ManualCheck{SessionID: "sess-1", CaptchaImage: []byte("img")}, nil
	}
	return s.manualFn(ctx, req)
}

func (s *stubCore) Resume(ctx context.Context, sessionID, answer string) (*checker.StatusResult, error) {
	if s.resumeFn == nil {
		return &checker.StatusResult{Success: true, Status: &checker.CaseStatus{Status: "Issued"}}, nil
	}
	return s.resumeFn(ctx, sessionID, answer)
}

func (s *stubCore) CheckAuto(ctx context.Context, req checker.CheckRequest) (*checker.StatusResult, error) {
	if s.autoFn == nil {
		return &checker.StatusResult{Success: true, Status: &checker.CaseStatus{Status: "Issued"}}, nil
	}
	return s.autoFn(ctx, req)
}

func (s *stubCore) Cancel(ctx context.Context, sessionID string) error {
	if s.cancelFn == nil {
		return nil
	}
	return s.cancelFn(ctx, sessionID)
}

func (s *stubCore) ListSessions() []checker.SessionInfo {
	return s.sessions
}

func doRequest(t *testing.T, core Core, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	New(":0", core, nil).Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func validStart() startRequest {
	return startRequest{
		Location:       "NEPAL",
		ApplicationID:  "AA00EILA2X",
		PassportNumber: "PA123456",
		Surname:        "SHARMA",
	}
}

func TestHealth(t *testing.T) {
	rec := doRequest(t, &stubCore{}, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, "healthy", body["status"])
	require.Equal(t, float64(0), body["active_sessions"])
}

func TestStartReturnsSessionAndImage(t *testing.T) {
	rec := doRequest(t, &stubCore{}, http.MethodPost, "/api/visa-status/start", validStart())
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	require.Equal(t, true, body["success"])
	require.Equal(t, "sess-1", body["session_id"])
	require.Equal(t, base64.StdEncoding.EncodeToString([]byte("img")), body["captcha_image"])
}

func TestStartRejectsMissingFields(t *testing.T) {
	core := &stubCore{
		manualFn: func(context.Context, checker.CheckRequest) (*checker.ManualCheck, error) {
			t.Fatal("core should not be reached on invalid input")
			return nil, nil
		},
	}
	rec := doRequest(t, core, http.MethodPost, "/api/visa-status/start", startRequest{Location: "NEPAL"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, decodeBody(t, rec)["error"], "missing required fields")
}

func TestStartRejectsInvalidJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/visa-status/start", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	New(":0", &stubCore{}, nil).Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitSuccess(t *testing.T) {
	var gotID, gotAnswer string
	core := &stubCore{
		resumeFn: func(_ context.Context, id, answer string) (*checker.StatusResult, error) {
			gotID, gotAnswer = id, answer
			return &checker.StatusResult{
				Success:    true,
				Status:     &checker.CaseStatus{Status: "Application Received", CaseNumber: "AA00EILA2X"},
				Screenshot: []byte("shot"),
			}, nil
		},
	}

	rec := doRequest(t, core, http.MethodPost, "/api/visa-status/submit",
		submitRequest{SessionID: "sess-1", CaptchaAnswer: "X7K2P"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "sess-1", gotID)
	require.Equal(t, "X7K2P", gotAnswer)

	body := decodeBody(t, rec)
	require.Equal(t, true, body["success"])
	status := body["status"].(map[string]any)
	require.Equal(t, "Application Received", status["status"])
	require.NotEmpty(t, body["screenshot"])
}

func TestSubmitRequiresArguments(t *testing.T) {
	rec := doRequest(t, &stubCore{}, http.MethodPost, "/api/visa-status/submit",
		submitRequest{SessionID: "sess-1"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitUnknownSession(t *testing.T) {
	core := &stubCore{
		resumeFn: func(context.Context, string, string) (*checker.StatusResult, error) {
			return nil, checker.NewError(checker.KindNotFound, "session nope not found")
		},
	}
	rec := doRequest(t, core, http.MethodPost, "/api/visa-status/submit",
		submitRequest{SessionID: "nope", CaptchaAnswer: "X"})
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "not_found", decodeBody(t, rec)["kind"])
}

func TestSubmitBusySessionConflicts(t *testing.T) {
	core := &stubCore{
		resumeFn: func(context.Context, string, string) (*checker.StatusResult, error) {
			return nil, checker.NewError(checker.KindSessionBusy, "session busy")
		},
	}
	rec := doRequest(t, core, http.MethodPost, "/api/visa-status/submit",
		submitRequest{SessionID: "sess-1", CaptchaAnswer: "X"})
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestSubmitCaptchaRejectedCarriesImage(t *testing.T) {
	core := &stubCore{
		resumeFn: func(context.Context, string, string) (*checker.StatusResult, error) {
			return &checker.StatusResult{
				Err: checker.NewError(checker.KindCaptchaRejected,
					"the site rejected the challenge answer"),
				CaptchaImage: []byte("img2"),
			}, nil
		},
	}
	rec := doRequest(t, core, http.MethodPost, "/api/visa-status/submit",
		submitRequest{SessionID: "sess-1", CaptchaAnswer: "WRONG"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeBody(t, rec)
	require.Equal(t, false, body["success"])
	require.Equal(t, "captcha_rejected", body["kind"])
	require.Equal(t, base64.StdEncoding.EncodeToString([]byte("img2")), body["captcha_image"])
}

func TestCancel(t *testing.T) {
	var cancelled string
	core := &stubCore{
		cancelFn: func(_ context.Context, id string) error {
			cancelled = id
			return nil
		},
	}
	rec := doRequest(t, core, http.MethodPost, "/api/visa-status/cancel",
		submitRequest{SessionID: "sess-1"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "sess-1", cancelled)
}

func TestSessions(t *testing.T) {
	core := &stubCore{
		sessions: []checker.SessionInfo{
			{ID: "a", CreatedAt: time.Now(), Phase: "awaiting_answer"},
			{ID: "b", CreatedAt: time.Now(), Phase: "awaiting_answer", Expired: true},
		},
	}
	rec := doRequest(t, core, http.MethodGet, "/api/visa-status/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	require.Equal(t, float64(2), body["count"])
	require.Len(t, body["sessions"], 2)
}

func TestCheckComposesStartAndSubmit(t *testing.T) {
	var resumedID string
	core := &stubCore{
		manualFn: func(context.Context, checker.CheckRequest) (*checker.ManualCheck, error) {
			return &checker.ManualCheck{SessionID: "sess-9", CaptchaImage: []byte("img")}, nil
		},
		resumeFn: func(_ context.Context, id, answer string) (*checker.StatusResult, error) {
			resumedID = id
			return &checker.StatusResult{Success: true, Status: &checker.CaseStatus{Status: "Issued"}}, nil
		},
	}

	rec := doRequest(t, core, http.MethodPost, "/api/visa-status/check",
		checkRequest{startRequest: validStart(), CaptchaAnswer: "X7K2P"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "sess-9", resumedID)
}

func TestCheckWithoutAnswerParksSession(t *testing.T) {
	resumed := false
	core := &stubCore{
		resumeFn: func(context.Context, string, string) (*checker.StatusResult, error) {
			resumed = true
			return nil, nil
		},
	}
	rec := doRequest(t, core, http.MethodPost, "/api/visa-status/check",
		checkRequest{startRequest: validStart()})
	require.Equal(t, http.StatusOK, rec.Code)
	require.False(t, resumed)

	body := decodeBody(t, rec)
	require.Equal(t, "sess-1", body["session_id"])
	require.NotEmpty(t, body["captcha_image"])
}

func TestCheckAuto(t *testing.T) {
	var gotRetries int
	core := &stubCore{
		autoFn: func(_ context.Context, req checker.CheckRequest) (*checker.StatusResult, error) {
			gotRetries = req.MaxRetries
			return &checker.StatusResult{Success: true, Status: &checker.CaseStatus{Status: "Issued"}}, nil
		},
	}
	rec := doRequest(t, core, http.MethodPost, "/api/visa-status/check-auto",
		checkRequest{startRequest: validStart(), MaxRetries: 2})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 2, gotRetries)
}

func TestCheckAutoWithoutSolver(t *testing.T) {
	core := &stubCore{
		autoFn: func(context.Context, checker.CheckRequest) (*checker.StatusResult, error) {
			return nil, checker.NewError(checker.KindCapabilityUnavailable,
				"automatic challenge solving is not available")
		},
	}
	rec := doRequest(t, core, http.MethodPost, "/api/visa-status/check-auto",
		checkRequest{startRequest: validStart()})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "capability_unavailable", decodeBody(t, rec)["kind"])
}

func TestCheckAutoRetryBudgetExhaustedIncludesImage(t *testing.T) {
	core := &stubCore{
		autoFn: func(context.Context, checker.CheckRequest) (*checker.StatusResult, error) {
			return &checker.StatusResult{
				Err: checker.NewError(checker.KindFatal,
					"challenge rejected on every attempt, retry budget exhausted"),
				CaptchaImage: []byte("last"),
			}, nil
		},
	}
	rec := doRequest(t, core, http.MethodPost, "/api/visa-status/check-auto",
		checkRequest{startRequest: validStart()})
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotEmpty(t, decodeBody(t, rec)["captcha_image"])
}
