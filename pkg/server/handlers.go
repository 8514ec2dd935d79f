package server

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/ceacwatch/ceacwatch/pkg/checker"
)

type startRequest struct {
	Location       string `json:"location"`
	ApplicationID  string `json:"application_id"`
	PassportNumber string `json:"passport_number"`
	Surname        string `json:"surname"`
}

func (r startRequest) fields() checker.FormFields {
	return checker.FormFields{
		Location:       r.Location,
		ApplicationID:  r.ApplicationID,
		PassportNumber: r.PassportNumber,
		Surname:        r.Surname,
	}
}

type submitRequest struct {
	SessionID     string `json:"session_id"`
	CaptchaAnswer string `json:"captcha_answer"`
}

type checkRequest struct {
	startRequest
	CaptchaAnswer string `json:"captcha_answer"`
	MaxRetries    int    `json:"max_retries"`
}

type errorResponse struct {
	Success      bool   `json:"success"`
	Error        string `json:"error"`
	Kind         string `json:"kind,omitempty"`
	Suggestion   string `json:"suggestion,omitempty"`
	CaptchaImage string `json:"captcha_image,omitempty"`
	Screenshot   string `json:"screenshot,omitempty"`
}

type startResponse struct {
	Success      bool   `json:"success"`
	SessionID    string `json:"session_id"`
	CaptchaImage string `json:"captcha_image"`
	Message      string `json:"message"`
}

type statusResponse struct {
	Success    bool                `json:"success"`
	Status     *checker.CaseStatus `json:"status"`
	Screenshot string              `json:"screenshot,omitempty"`
}

type sessionsResponse struct {
	Success  bool                  `json:"success"`
	Sessions []checker.SessionInfo `json:"sessions"`
	Count    int                   `json:"count"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "healthy",
		"service":         "visa-status-checker",
		"active_sessions": len(s.core.ListSessions()),
	})
}

// handleStart begins a manual check: it parks a session and hands the
// challenge image back for the caller to solve.
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if !s.decode(w, r, &req) {
		return
	}

	if err := req.fields().Validate(); err != nil {
		s.badRequest(w, err)
		return
	}

	check, err := s.core.CheckManual(r.Context(), checker.CheckRequest{Fields: req.fields()})
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, startResponse{
		Success:      true,
		SessionID:    check.SessionID,
		CaptchaImage: encodeImage(check.CaptchaImage),
		Message:      "solve the captcha and submit the answer",
	})
}

// handleSubmit finishes a parked session with the caller's answer.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.SessionID == "" || req.CaptchaAnswer == "" {
		s.badRequest(w, checker.NewError(checker.KindFatal,
			"session_id and captcha_answer are required"))
		return
	}

	result, err := s.core.Resume(r.Context(), req.SessionID, req.CaptchaAnswer)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeResult(w, result)
}

// handleCancel discards a parked session without waiting for expiry.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.SessionID == "" {
		s.badRequest(w, checker.NewError(checker.KindFatal, "session_id is required"))
		return
	}

	if err := s.core.Cancel(r.Context(), req.SessionID); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: "session cancelled"})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.core.ListSessions()
	writeJSON(w, http.StatusOK, sessionsResponse{
		Success:  true,
		Sessions: sessions,
		Count:    len(sessions),
	})
}

// handleCheck runs a check in one call when an answer is supplied, resuming
// the fresh session immediately. Without an answer it behaves like /start:
// the session parks and the challenge image comes back for the caller.
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := req.fields().Validate(); err != nil {
		s.badRequest(w, err)
		return
	}

	check, err := s.core.CheckManual(r.Context(), checker.CheckRequest{Fields: req.fields()})
	if err != nil {
		s.writeError(w, err)
		return
	}

	if req.CaptchaAnswer == "" {
		writeJSON(w, http.StatusOK, startResponse{
			Success:      true,
			SessionID:    check.SessionID,
			CaptchaImage: encodeImage(check.CaptchaImage),
			Message:      "solve the captcha and submit the answer",
		})
		return
	}

	result, err := s.core.Resume(r.Context(), check.SessionID, req.CaptchaAnswer)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeResult(w, result)
}

// handleCheckAuto runs a complete check with the configured solver answering
// challenges.
func (s *Server) handleCheckAuto(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if !s.decode(w, r, &req) {
		return
	}

	if err := req.fields().Validate(); err != nil {
		s.badRequest(w, err)
		return
	}

	result, err := s.core.CheckAuto(r.Context(), checker.CheckRequest{
		Fields:     req.fields(),
		MaxRetries: req.MaxRetries,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeResult(w, result)
}

// decode reads the JSON body into dst, answering the request itself on
// failure. Reports whether the handler should continue.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: "invalid JSON body: " + err.Error(),
		})
		return false
	}
	return true
}

// writeResult renders a finished check, successful or not.
func (s *Server) writeResult(w http.ResponseWriter, result *checker.StatusResult) {
	if result.Success {
		writeJSON(w, http.StatusOK, statusResponse{
			Success:    true,
			Status:     result.Status,
			Screenshot: encodeImage(result.Screenshot),
		})
		return
	}

	resp := errorResponse{
		CaptchaImage: encodeImage(result.CaptchaImage),
		Screenshot:   encodeImage(result.Screenshot),
	}
	if result.Err != nil {
		resp.Error = result.Err.Message
		resp.Kind = string(result.Err.Kind)
		resp.Suggestion = result.Err.Suggestion
	} else {
		resp.Error = "check failed"
	}
	writeJSON(w, statusFor(result.Err), resp)
}

// badRequest renders an input error with a 400 regardless of its kind.
func (s *Server) badRequest(w http.ResponseWriter, err error) {
	appErr := checker.AsError(err)
	writeJSON(w, http.StatusBadRequest, errorResponse{
		Error:      appErr.Message,
		Kind:       string(appErr.Kind),
		Suggestion: appErr.Suggestion,
	})
}

// writeError renders an error the orchestrator returned before producing a
// result.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	appErr := checker.AsError(err)
	s.logger.Warn("request failed",
		zap.String("kind", string(appErr.Kind)),
		zap.Error(err))
	writeJSON(w, statusFor(appErr), errorResponse{
		Error:      appErr.Message,
		Kind:       string(appErr.Kind),
		Suggestion: appErr.Suggestion,
	})
}

// statusFor maps error kinds onto HTTP status codes.
func statusFor(err *checker.Error) int {
	if err == nil {
		return http.StatusInternalServerError
	}
	switch err.Kind {
	case checker.KindNotFound:
		return http.StatusNotFound
	case checker.KindSessionBusy:
		return http.StatusConflict
	case checker.KindExpired, checker.KindCaptchaRejected,
		checker.KindCapabilityUnavailable, checker.KindCancelled:
		return http.StatusBadRequest
	case checker.KindFatal, checker.KindTransient, checker.KindFormInteractionFailed:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func encodeImage(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	return base64.StdEncoding.EncodeToString(data)
}
