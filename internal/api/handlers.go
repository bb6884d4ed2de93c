// Package api provides HTTP handlers for LobbyPipe endpoints.
package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/openlobby/LobbyPipe/internal/models"
	"github.com/openlobby/LobbyPipe/internal/session"
)

// utteranceReply is the result payload for flow-advancing endpoints.
type utteranceReply struct {
	SessionID string           `json:"session_id"`
	Reply     string           `json:"reply,omitempty"`
	State     models.FlowState `json:"state"`
	Awake     bool             `json:"awake"`
}

// flowErrorStatus maps flow-level sentinel errors to HTTP status codes.
func flowErrorStatus(err error) int {
	switch {
	case errors.Is(err, models.ErrWrongState):
		return http.StatusConflict
	case errors.Is(err, models.ErrSessionEnded):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) utteranceHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.utteranceHandler: processing utterance", "method", r.Method)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req models.UtteranceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.utteranceHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.utteranceHandler: validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	var result utteranceReply
	var ignored bool
	err := s.registry.Dispatch(req.SessionID, func(sess *session.Session) error {
		wakeResult := sess.Wake.HandleUtterance(req.Text, time.Now())
		if !wakeResult.Accepted {
			ignored = true
			return nil
		}
		if wakeResult.WentToSleep {
			s.engine.SoftReset(sess.Flow)
		}

		reply := wakeResult.Reply
		if reply == "" {
			var err error
			reply, err = s.engine.HandleUtterance(r.Context(), sess.Flow, sess.Wake.Language(), req.Text)
			if err != nil {
				return err
			}
		}
		result = utteranceReply{
			SessionID: sess.Flow.ID,
			Reply:     reply,
			State:     sess.Flow.State,
			Awake:     sess.Wake.Awake(),
		}
		return nil
	})
	if err != nil {
		slog.Error("Server.utteranceHandler: flow error", "error", err, "session_id", req.SessionID)
		writeJSONResponse(w, flowErrorStatus(err), models.Error(err.Error()))
		return
	}
	if ignored {
		slog.Debug("Server.utteranceHandler: utterance ignored while asleep", "session_id", req.SessionID)
		writeJSONResponse(w, http.StatusOK, models.Ignored())
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(result))
}

func (s *Server) captureResultHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.captureResultHandler: processing capture result", "method", r.Method)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req models.CaptureResultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.captureResultHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	res := models.CaptureResult{
		Success:    req.Success,
		Identity:   req.Identity,
		Confidence: req.Confidence,
	}
	// Raw frames run through the matcher before the session lock is taken.
	// Matcher failure is a failed attempt, not a request failure.
	if req.Image != "" && s.matcher != nil {
		image, err := base64.StdEncoding.DecodeString(req.Image)
		if err != nil {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid base64 image"))
			return
		}
		matched, err := s.matcher.Match(r.Context(), image)
		if err != nil {
			slog.Warn("Server.captureResultHandler: matcher failed", "error", err, "session_id", req.SessionID)
			res = models.CaptureResult{Success: false}
		} else {
			res = *matched
		}
	}

	var result utteranceReply
	err := s.registry.Dispatch(req.SessionID, func(sess *session.Session) error {
		sess.Wake.Touch(time.Now())
		reply, err := s.engine.HandleCaptureResult(r.Context(), sess.Flow, sess.Wake.Language(), res)
		if err != nil {
			return err
		}
		result = utteranceReply{
			SessionID: sess.Flow.ID,
			Reply:     reply,
			State:     sess.Flow.State,
			Awake:     sess.Wake.Awake(),
		}
		return nil
	})
	if err != nil {
		slog.Warn("Server.captureResultHandler: flow error", "error", err, "session_id", req.SessionID)
		writeJSONResponse(w, flowErrorStatus(err), models.Error(err.Error()))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(result))
}

func (s *Server) visitorInfoHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.visitorInfoHandler: processing visitor info", "method", r.Method)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req models.VisitorInfoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	var result utteranceReply
	err := s.registry.Dispatch(req.SessionID, func(sess *session.Session) error {
		sess.Wake.Touch(time.Now())
		reply, err := s.engine.HandleVisitorInfo(r.Context(), sess.Flow, sess.Wake.Language(), req)
		if err != nil {
			return err
		}
		result = utteranceReply{
			SessionID: sess.Flow.ID,
			Reply:     reply,
			State:     sess.Flow.State,
			Awake:     sess.Wake.Awake(),
		}
		return nil
	})
	if err != nil {
		writeJSONResponse(w, flowErrorStatus(err), models.Error(err.Error()))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(result))
}

func (s *Server) manualVerificationHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.manualVerificationHandler: processing manual verification", "method", r.Method)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req models.ManualVerificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	var result utteranceReply
	err := s.registry.Dispatch(req.SessionID, func(sess *session.Session) error {
		sess.Wake.Touch(time.Now())
		reply, err := s.engine.HandleManualVerification(r.Context(), sess.Flow, sess.Wake.Language(), req)
		if err != nil {
			return err
		}
		result = utteranceReply{
			SessionID: sess.Flow.ID,
			Reply:     reply,
			State:     sess.Flow.State,
			Awake:     sess.Wake.Awake(),
		}
		return nil
	})
	if err != nil {
		writeJSONResponse(w, flowErrorStatus(err), models.Error(err.Error()))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(result))
}

func (s *Server) endHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.endHandler: processing session end", "method", r.Method)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req models.SessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	s.registry.End(req.SessionID)
	slog.Info("Server.endHandler: session ended", "session_id", req.SessionID)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Session ended", nil))
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(models.ErrEmptySessionID.Error()))
		return
	}
	status := s.registry.Status(sessionID)
	if status == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error(models.ErrUnknownSession.Error()))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(status))
}

func (s *Server) signalPeekHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(models.ErrEmptySessionID.Error()))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(s.mailbox.Peek(sessionID)))
}

func (s *Server) signalConsumeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req models.SessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(s.mailbox.Consume(req.SessionID)))
}

func (s *Server) visitorLogsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	logs, err := s.store.GetVisitorLogs()
	if err != nil {
		slog.Error("Server.visitorLogsHandler: query failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to query visitor logs"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(logs))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("healthy", nil))
}
