package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"quarterly/api/internal/identity"
)

const basePathPrefix = "quarterly-review"

var reviewResources = map[string]bool{
	"emotional-alchemy": true,
	"life-inventory":    true,
	"letters":           true,
	"vision-ratings":    true,
	"action-highlights": true,
}

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"database": map[string]any{"status": "ok"},
		}

		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["database"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}

		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	// Schema deployment endpoint, gated by the shared secret rather
	// than a user identity.
	if r.Method == http.MethodPost && r.URL.Path == "/api/run-migration-quarterly-review" {
		var body struct {
			Secret string `json:"secret"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.RunMigration(r.Context(), body.Secret)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	ident, ok := s.requireIdentity(w, r)
	if !ok {
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) < 3 || parts[0] != "api" || parts[1] != basePathPrefix {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	rest := parts[2:]

	switch rest[0] {
	case "affirmations":
		s.handleAffirmations(w, r, ident, rest[1:])
		return
	case "audio":
		s.handleAudio(w, r, ident, rest[1:])
		return
	case "slack":
		if len(rest) == 2 && rest[1] == "settings" {
			s.handleSlackSettings(w, r, ident)
			return
		}
	case "emotional-alchemy":
		if len(rest) == 2 && r.Method == http.MethodDelete {
			id, ok := parseID(w, rest[1])
			if !ok {
				return
			}
			if err := s.service.DeleteAlchemySession(r.Context(), ident.ID, id); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"success": true})
			return
		}
	case "letters":
		s.handleLetterByID(w, r, ident, rest[1:])
		return
	}

	// Review-scoped collections: /{reviewId}/{resource}. Resource names
	// are matched first so numeric review ids never collide with the
	// quarter lookup below.
	if len(rest) == 2 && reviewResources[rest[1]] {
		reviewID, ok := parseID(w, rest[0])
		if !ok {
			return
		}
		s.handleReviewResource(w, r, ident, reviewID, rest[1])
		return
	}

	// GET /{quarter}/{year} resolves (and lazily creates) the review.
	// Only Q-prefixed segments reach the service; anything else is an
	// unknown path, not a malformed quarter.
	if len(rest) == 2 && r.Method == http.MethodGet && looksLikeQuarter(rest[0]) {
		payload, err := s.service.GetOrCreateReview(r.Context(), ident.ID, rest[0], rest[1])
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleReviewResource(w http.ResponseWriter, r *http.Request, ident identity.Identity, reviewID int64, resource string) {
	var payload any
	var err error

	switch {
	case resource == "emotional-alchemy" && r.Method == http.MethodGet:
		payload, err = s.service.ListAlchemySessions(r.Context(), ident.ID, reviewID)
	case resource == "emotional-alchemy" && r.Method == http.MethodPost:
		var body AlchemyInput
		if decodeErr := decodeBody(r, &body); decodeErr != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", decodeErr.Error(), nil)
			return
		}
		payload, err = s.service.CreateAlchemySession(r.Context(), ident.ID, reviewID, body)
	case resource == "life-inventory" && r.Method == http.MethodGet:
		payload, err = s.service.ListLifeInventory(r.Context(), ident.ID, reviewID)
	case resource == "life-inventory" && r.Method == http.MethodPost:
		var body LifeInventoryInput
		if decodeErr := decodeBody(r, &body); decodeErr != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", decodeErr.Error(), nil)
			return
		}
		payload, err = s.service.SaveLifeInventory(r.Context(), ident.ID, reviewID, body)
	case resource == "letters" && r.Method == http.MethodGet:
		payload, err = s.service.ListLetters(r.Context(), ident.ID, reviewID)
	case resource == "letters" && r.Method == http.MethodPost:
		var body LetterInput
		if decodeErr := decodeBody(r, &body); decodeErr != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", decodeErr.Error(), nil)
			return
		}
		payload, err = s.service.CreateLetter(r.Context(), ident.ID, reviewID, body)
	case resource == "vision-ratings" && r.Method == http.MethodGet:
		payload, err = s.service.GetVisionRatings(r.Context(), ident.ID, reviewID)
	case resource == "vision-ratings" && r.Method == http.MethodPost:
		var body VisionRatingsInput
		if decodeErr := decodeStrictBody(r, &body); decodeErr != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", decodeErr.Error(), nil)
			return
		}
		payload, err = s.service.SaveVisionRatings(r.Context(), ident.ID, reviewID, body)
	case resource == "action-highlights" && r.Method == http.MethodGet:
		payload, err = s.service.ListActionHighlights(r.Context(), ident.ID, reviewID)
	case resource == "action-highlights" && r.Method == http.MethodPost:
		var body struct {
			Highlights []HighlightInput `json:"highlights"`
		}
		if decodeErr := decodeBody(r, &body); decodeErr != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", decodeErr.Error(), nil)
			return
		}
		payload, err = s.service.SaveActionHighlights(r.Context(), ident.ID, reviewID, body.Highlights)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) handleLetterByID(w http.ResponseWriter, r *http.Request, ident identity.Identity, rest []string) {
	if len(rest) == 0 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	id, ok := parseID(w, rest[0])
	if !ok {
		return
	}

	switch {
	case len(rest) == 1 && r.Method == http.MethodPut:
		var body LetterUpdateInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.UpdateLetter(r.Context(), ident.ID, id, body)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)
	case len(rest) == 2 && rest[1] == "status" && r.Method == http.MethodPatch:
		var body struct {
			Status string `json:"status"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.UpdateLetterStatus(r.Context(), ident.ID, id, body.Status)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)
	case len(rest) == 1 && r.Method == http.MethodDelete:
		if err := s.service.DeleteLetter(r.Context(), ident.ID, id); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleAffirmations(w http.ResponseWriter, r *http.Request, ident identity.Identity, rest []string) {
	switch {
	case len(rest) == 0 && r.Method == http.MethodGet:
		payload, err := s.service.ListAffirmations(r.Context(), ident.ID)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)
	case len(rest) == 0 && r.Method == http.MethodPost:
		var body AffirmationInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.CreateAffirmation(r.Context(), ident.ID, body)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)
	case len(rest) == 1 && r.Method == http.MethodPut:
		id, ok := parseID(w, rest[0])
		if !ok {
			return
		}
		var body AffirmationInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.UpdateAffirmation(r.Context(), ident.ID, id, body)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)
	case len(rest) == 1 && r.Method == http.MethodDelete:
		id, ok := parseID(w, rest[0])
		if !ok {
			return
		}
		if err := s.service.DeleteAffirmation(r.Context(), ident.ID, id); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

// maxAudioUpload caps multipart audio bodies at 32 MiB.
const maxAudioUpload = 32 << 20

func (s *HTTPServer) handleAudio(w http.ResponseWriter, r *http.Request, ident identity.Identity, rest []string) {
	switch {
	case len(rest) == 1 && rest[0] == "upload" && r.Method == http.MethodPost:
		if err := r.ParseMultipartForm(maxAudioUpload); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid multipart body", nil)
			return
		}
		file, header, err := r.FormFile("audio")
		if err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "audio file is required", nil)
			return
		}
		defer file.Close()

		payload, err := s.service.UploadAudio(
			r.Context(),
			ident.ID,
			r.FormValue("recordingType"),
			header.Header.Get("Content-Type"),
			file,
			header.Size,
		)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)
	case len(rest) == 2 && rest[0] == "latest" && r.Method == http.MethodGet:
		payload, err := s.service.LatestAudioRecording(r.Context(), ident.ID, rest[1])
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)
	case len(rest) == 1 && rest[0] == "recordings" && r.Method == http.MethodGet:
		payload, err := s.service.ListAudioRecordings(r.Context(), ident.ID)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)
	case len(rest) == 1 && r.Method == http.MethodDelete:
		id, ok := parseID(w, rest[0])
		if !ok {
			return
		}
		if err := s.service.DeleteAudioRecording(r.Context(), ident.ID, id); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleSlackSettings(w http.ResponseWriter, r *http.Request, ident identity.Identity) {
	switch r.Method {
	case http.MethodGet:
		payload, err := s.service.GetSlackSettings(r.Context(), ident.ID)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)
	case http.MethodPost:
		var body SlackSettingsInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.SaveSlackSettings(r.Context(), ident.ID, body)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) requireIdentity(w http.ResponseWriter, r *http.Request) (identity.Identity, bool) {
	ident, err := s.service.ResolveIdentity(r.Context(), bearerToken(r))
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredential) {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
			return identity.Identity{}, false
		}
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Identity lookup failed", nil)
		return identity.Identity{}, false
	}
	return ident, true
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

// decodeStrictBody rejects unknown keys; used where silently dropped
// fields would lose user data.
func decodeStrictBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func looksLikeQuarter(raw string) bool {
	return len(raw) >= 2 && (raw[0] == 'Q' || raw[0] == 'q')
}

func parseID(w http.ResponseWriter, raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "id must be an integer", nil)
		return 0, false
	}
	return id, true
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, identity.ErrInvalidCredential) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
