package app

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"quarterly/api/internal/identity"
)

func uploadAudio(t *testing.T, server *HTTPServer, recordingType string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("audio", "review.webm")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := io.WriteString(part, "not-really-audio"); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := writer.WriteField("recordingType", recordingType); err != nil {
		t.Fatalf("write field: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/quarterly-review/audio/upload", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	return rr
}

func newTestServiceWithBlobs(fs *fakeStore, blobs *fakeBlobs) *Service {
	cfg := testConfig()
	return New(cfg, fs, identity.NewPublicProvider(cfg.OwnerOpenID, cfg.OwnerName), blobs, &fakeMigrator{})
}

func TestAudioUpload_NewUploadBecomesLatest(t *testing.T) {
	fs := newFakeStore()
	blobs := &fakeBlobs{}
	server := NewHTTPServer(newTestServiceWithBlobs(fs, blobs), "*")

	first := uploadAudio(t, server, "quarterly-reflection")
	if first.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", first.Code, first.Body.String())
	}
	second := uploadAudio(t, server, "quarterly-reflection")
	if second.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", second.Code)
	}

	if len(blobs.keys) != 2 {
		t.Fatalf("expected 2 stored objects, got %d", len(blobs.keys))
	}

	secondBody := decodeObject(t, second)
	if secondBody["isLatest"] != true {
		t.Errorf("expected new upload to be latest, got %v", secondBody["isLatest"])
	}

	latest := decodeObject(t, doJSON(t, server, http.MethodGet, "/api/quarterly-review/audio/latest/quarterly-reflection", ""))
	if latest["id"] != secondBody["id"] {
		t.Errorf("expected latest id %v, got %v", secondBody["id"], latest["id"])
	}

	listed := decodeList(t, doJSON(t, server, http.MethodGet, "/api/quarterly-review/audio/recordings", ""))
	if len(listed) != 2 {
		t.Errorf("expected 2 recordings, got %d", len(listed))
	}
}

func TestAudioUpload_TypesTrackedIndependently(t *testing.T) {
	fs := newFakeStore()
	server := NewHTTPServer(newTestServiceWithBlobs(fs, &fakeBlobs{}), "*")

	uploadAudio(t, server, "quarterly-reflection")
	uploadAudio(t, server, "daily-affirmation")

	reflection := decodeObject(t, doJSON(t, server, http.MethodGet, "/api/quarterly-review/audio/latest/quarterly-reflection", ""))
	affirmation := decodeObject(t, doJSON(t, server, http.MethodGet, "/api/quarterly-review/audio/latest/daily-affirmation", ""))
	if reflection["id"] == affirmation["id"] {
		t.Errorf("expected separate latest rows per type, got %v twice", reflection["id"])
	}
	if reflection["isLatest"] != true || affirmation["isLatest"] != true {
		t.Errorf("expected both types to keep a latest row")
	}
}

func TestAudioUpload_DisabledWithoutBlobStorage(t *testing.T) {
	server := NewHTTPServer(newTestService(newFakeStore()), "*")

	rr := uploadAudio(t, server, "quarterly-reflection")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d: %s", rr.Code, rr.Body.String())
	}
	if body := decodeObject(t, rr); body["code"] != "AUDIO_UNAVAILABLE" {
		t.Errorf("expected AUDIO_UNAVAILABLE, got %v", body["code"])
	}
}

func TestAudioLatest_NotFound(t *testing.T) {
	server := NewHTTPServer(newTestService(newFakeStore()), "*")

	rr := doJSON(t, server, http.MethodGet, "/api/quarterly-review/audio/latest/quarterly-reflection", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
	if body := decodeObject(t, rr); body["error"] != "No recording found" {
		t.Errorf("expected 'No recording found', got %v", body["error"])
	}
}

func TestAudioDelete_RemovesRowAndStoredObject(t *testing.T) {
	fs := newFakeStore()
	blobs := &fakeBlobs{}
	server := NewHTTPServer(newTestServiceWithBlobs(fs, blobs), "*")

	created := decodeObject(t, uploadAudio(t, server, "quarterly-reflection"))
	id := jsonInt(int64(created["id"].(float64)))

	deleted := doJSON(t, server, http.MethodDelete, "/api/quarterly-review/audio/"+id, "")
	if deleted.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", deleted.Code)
	}

	listed := decodeList(t, doJSON(t, server, http.MethodGet, "/api/quarterly-review/audio/recordings", ""))
	if len(listed) != 0 {
		t.Errorf("expected no recordings after delete, got %d", len(listed))
	}
	if len(blobs.removed) != 1 || blobs.removed[0] != created["storageKey"] {
		t.Errorf("expected stored object %v removed, got %v", created["storageKey"], blobs.removed)
	}

	// Repeated delete stays a no-op and does not touch the bucket again.
	again := doJSON(t, server, http.MethodDelete, "/api/quarterly-review/audio/"+id, "")
	if again.Code != http.StatusOK {
		t.Fatalf("expected status 200 on repeat delete, got %d", again.Code)
	}
	if len(blobs.removed) != 1 {
		t.Errorf("expected no further removals, got %v", blobs.removed)
	}
}

func TestSlackSettings_NullUntilSaved(t *testing.T) {
	server := NewHTTPServer(newTestService(newFakeStore()), "*")

	rr := doJSON(t, server, http.MethodGet, "/api/quarterly-review/slack/settings", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if body := rr.Body.String(); body != "null\n" {
		t.Errorf("expected null body, got %q", body)
	}
}

func TestSlackSettings_UpsertKeepsSingleRow(t *testing.T) {
	server := NewHTTPServer(newTestService(newFakeStore()), "*")

	first := decodeObject(t, doJSON(t, server, http.MethodPost, "/api/quarterly-review/slack/settings",
		`{"webhookUrl":"https://hooks.slack.com/services/a","sendTime":"09:00","isEnabled":true}`))
	second := decodeObject(t, doJSON(t, server, http.MethodPost, "/api/quarterly-review/slack/settings",
		`{"webhookUrl":"https://hooks.slack.com/services/b","sendTime":"10:30","isEnabled":false}`))

	if first["id"] != second["id"] {
		t.Errorf("expected one settings row, got ids %v and %v", first["id"], second["id"])
	}
	if second["webhookUrl"] != "https://hooks.slack.com/services/b" {
		t.Errorf("expected updated webhook, got %v", second["webhookUrl"])
	}
	if second["isEnabled"] != false {
		t.Errorf("expected isEnabled=false, got %v", second["isEnabled"])
	}

	fetched := decodeObject(t, doJSON(t, server, http.MethodGet, "/api/quarterly-review/slack/settings", ""))
	if fetched["sendTime"] != "10:30" {
		t.Errorf("expected sendTime 10:30, got %v", fetched["sendTime"])
	}
}
