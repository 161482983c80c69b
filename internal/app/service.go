package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"quarterly/api/internal/config"
	"quarterly/api/internal/identity"
	"quarterly/api/internal/store"
	"quarterly/api/internal/util"
)

type AlchemyInput struct {
	Emotion        string `json:"emotion"`
	BodySensation  string `json:"bodySensation"`
	ThoughtPattern string `json:"thoughtPattern"`
	Transformation string `json:"transformation"`
}

type LifeInventoryInput struct {
	ID           int64  `json:"id,omitempty"`
	LifePeriod   string `json:"lifePeriod"`
	Resentments  string `json:"resentments"`
	Fears        string `json:"fears"`
	Harms        string `json:"harms"`
	Patterns     string `json:"patterns"`
	AmendsNeeded string `json:"amendsNeeded"`
}

type LetterInput struct {
	LetterType    string `json:"letterType"`
	RecipientName string `json:"recipientName"`
	Content       string `json:"content"`
}

type LetterUpdateInput struct {
	RecipientName string `json:"recipientName"`
	Content       string `json:"content"`
}

// VisionRatingsInput enumerates every rating field explicitly; unknown
// keys are rejected at decode time.
type VisionRatingsInput struct {
	Health         int    `json:"health"`
	Career         int    `json:"career"`
	Relationships  int    `json:"relationships"`
	Finances       int    `json:"finances"`
	PersonalGrowth int    `json:"personalGrowth"`
	Recreation     int    `json:"recreation"`
	Environment    int    `json:"environment"`
	Contribution   int    `json:"contribution"`
	Notes          string `json:"notes"`
}

type AffirmationInput struct {
	AffirmationText string `json:"affirmationText"`
	SortOrder       int    `json:"sortOrder"`
}

type HighlightInput struct {
	HighlightNumber int    `json:"highlightNumber"`
	WhatHappened    string `json:"whatHappened"`
	WhyHow          string `json:"whyHow"`
	NextStep        string `json:"nextStep"`
}

type SlackSettingsInput struct {
	WebhookURL string `json:"webhookUrl"`
	SendTime   string `json:"sendTime"`
	IsEnabled  bool   `json:"isEnabled"`
}

type dataStore interface {
	EnsureOwner(ctx context.Context, openID, name string) (store.User, error)
	GetOrCreateReview(ctx context.Context, userID int64, quarter string, year, quarterNumber int) (store.Review, error)
	ListAlchemySessions(ctx context.Context, reviewID, userID int64) ([]store.AlchemySession, error)
	InsertAlchemySession(ctx context.Context, item store.AlchemySession) (store.AlchemySession, error)
	DeleteAlchemySession(ctx context.Context, id, userID int64) error
	ListLifeInventory(ctx context.Context, reviewID, userID int64) ([]store.LifeInventoryEntry, error)
	InsertLifeInventory(ctx context.Context, item store.LifeInventoryEntry) (store.LifeInventoryEntry, error)
	UpdateLifeInventory(ctx context.Context, item store.LifeInventoryEntry) (store.LifeInventoryEntry, bool, error)
	ListLetters(ctx context.Context, reviewID, userID int64) ([]store.Letter, error)
	InsertLetter(ctx context.Context, item store.Letter) (store.Letter, error)
	UpdateLetter(ctx context.Context, id, userID int64, content, recipientName string) (store.Letter, bool, error)
	UpdateLetterStatus(ctx context.Context, id, userID int64, status string) (store.Letter, bool, error)
	DeleteLetter(ctx context.Context, id, userID int64) error
	GetVisionRatings(ctx context.Context, reviewID, userID int64) (*store.VisionRatings, error)
	UpsertVisionRatings(ctx context.Context, item store.VisionRatings) (store.VisionRatings, error)
	ListAffirmations(ctx context.Context, userID int64) ([]store.Affirmation, error)
	InsertAffirmation(ctx context.Context, item store.Affirmation) (store.Affirmation, error)
	UpdateAffirmation(ctx context.Context, id, userID int64, text string, sortOrder int) (store.Affirmation, bool, error)
	DeleteAffirmation(ctx context.Context, id, userID int64) error
	ListActionHighlights(ctx context.Context, reviewID, userID int64) ([]store.ActionHighlight, error)
	ReplaceActionHighlights(ctx context.Context, reviewID, userID int64, items []store.ActionHighlight) ([]store.ActionHighlight, error)
	InsertAudioRecording(ctx context.Context, item store.AudioRecording) (store.AudioRecording, error)
	LatestAudioRecording(ctx context.Context, userID int64, recordingType string) (store.AudioRecording, error)
	ListAudioRecordings(ctx context.Context, userID int64) ([]store.AudioRecording, error)
	DeleteAudioRecording(ctx context.Context, id, userID int64) (string, error)
	GetSlackSettings(ctx context.Context, userID int64) (*store.SlackSettings, error)
	UpsertSlackSettings(ctx context.Context, item store.SlackSettings) (store.SlackSettings, error)
	Ping(ctx context.Context) error
}

// BlobStore is the audio object storage surface; a nil BlobStore
// disables uploads.
type BlobStore interface {
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	Remove(ctx context.Context, key string) error
}

type migrationRunner interface {
	Run(ctx context.Context, version string) (created []string, applied bool, err error)
}

type Service struct {
	cfg      config.Config
	store    dataStore
	blobs    BlobStore
	provider identity.Provider
	migrator migrationRunner
}

func New(cfg config.Config, dataStore dataStore, provider identity.Provider, blobs BlobStore, migrator migrationRunner) *Service {
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		blobs:    blobs,
		provider: provider,
		migrator: migrator,
	}
}

// Bootstrap ensures the fixed owner row exists so public-mode requests
// have a user id to scope by.
func (s *Service) Bootstrap(ctx context.Context) error {
	if s.cfg.AuthMode != "public" {
		return nil
	}
	_, err := s.store.EnsureOwner(ctx, s.cfg.OwnerOpenID, s.cfg.OwnerName)
	return err
}

// ResolveIdentity runs the configured provider over a request credential.
func (s *Service) ResolveIdentity(ctx context.Context, credential string) (identity.Identity, error) {
	return s.provider.Resolve(ctx, credential)
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// GetOrCreateReview resolves a quarter label like ("Q1", "2025") to the
// user's review row, creating it on first access.
func (s *Service) GetOrCreateReview(ctx context.Context, userID int64, quarter, year string) (map[string]any, error) {
	quarter = strings.ToUpper(strings.TrimSpace(quarter))
	quarterNumber, err := strconv.Atoi(strings.TrimPrefix(quarter, "Q"))
	if err != nil || quarterNumber < 1 || quarterNumber > 4 {
		return nil, validationError("quarter must be Q1-Q4")
	}
	yearNumber, err := strconv.Atoi(year)
	if err != nil {
		return nil, validationError("year must be an integer")
	}

	review, err := s.store.GetOrCreateReview(ctx, userID, fmt.Sprintf("%s %d", quarter, yearNumber), yearNumber, quarterNumber)
	if err != nil {
		return nil, err
	}
	return reviewPayload(review), nil
}

func (s *Service) ListAlchemySessions(ctx context.Context, userID, reviewID int64) ([]map[string]any, error) {
	sessions, err := s.store.ListAlchemySessions(ctx, reviewID, userID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(sessions))
	for _, session := range sessions {
		items = append(items, alchemyPayload(session))
	}
	return items, nil
}

func (s *Service) CreateAlchemySession(ctx context.Context, userID, reviewID int64, input AlchemyInput) (map[string]any, error) {
	if strings.TrimSpace(input.Emotion) == "" {
		return nil, validationError("emotion is required")
	}
	session, err := s.store.InsertAlchemySession(ctx, store.AlchemySession{
		ReviewID:       reviewID,
		UserID:         userID,
		Emotion:        input.Emotion,
		BodySensation:  input.BodySensation,
		ThoughtPattern: input.ThoughtPattern,
		Transformation: input.Transformation,
	})
	if err != nil {
		return nil, err
	}
	return alchemyPayload(session), nil
}

func (s *Service) DeleteAlchemySession(ctx context.Context, userID, id int64) error {
	return s.store.DeleteAlchemySession(ctx, id, userID)
}

func (s *Service) ListLifeInventory(ctx context.Context, userID, reviewID int64) ([]map[string]any, error) {
	entries, err := s.store.ListLifeInventory(ctx, reviewID, userID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		items = append(items, lifeInventoryPayload(entry))
	}
	return items, nil
}

// SaveLifeInventory upserts one period entry. A client-supplied id means
// update; an update that matches no row owned by this user is not-found.
func (s *Service) SaveLifeInventory(ctx context.Context, userID, reviewID int64, input LifeInventoryInput) (map[string]any, error) {
	entry := store.LifeInventoryEntry{
		ID:           input.ID,
		ReviewID:     reviewID,
		UserID:       userID,
		LifePeriod:   input.LifePeriod,
		Resentments:  input.Resentments,
		Fears:        input.Fears,
		Harms:        input.Harms,
		Patterns:     input.Patterns,
		AmendsNeeded: input.AmendsNeeded,
	}

	if input.ID != 0 {
		updated, found, err := s.store.UpdateLifeInventory(ctx, entry)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, notFoundError("Life inventory entry not found")
		}
		return lifeInventoryPayload(updated), nil
	}

	if strings.TrimSpace(input.LifePeriod) == "" {
		return nil, validationError("lifePeriod is required")
	}
	created, err := s.store.InsertLifeInventory(ctx, entry)
	if err != nil {
		return nil, err
	}
	return lifeInventoryPayload(created), nil
}

func (s *Service) ListLetters(ctx context.Context, userID, reviewID int64) ([]map[string]any, error) {
	letters, err := s.store.ListLetters(ctx, reviewID, userID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(letters))
	for _, letter := range letters {
		items = append(items, letterPayload(letter))
	}
	return items, nil
}

func (s *Service) CreateLetter(ctx context.Context, userID, reviewID int64, input LetterInput) (map[string]any, error) {
	if strings.TrimSpace(input.LetterType) == "" {
		return nil, validationError("letterType is required")
	}
	letter, err := s.store.InsertLetter(ctx, store.Letter{
		ReviewID:      reviewID,
		UserID:        userID,
		LetterType:    input.LetterType,
		RecipientName: input.RecipientName,
		Content:       input.Content,
	})
	if err != nil {
		return nil, err
	}
	return letterPayload(letter), nil
}

func (s *Service) UpdateLetter(ctx context.Context, userID, id int64, input LetterUpdateInput) (map[string]any, error) {
	letter, found, err := s.store.UpdateLetter(ctx, id, userID, input.Content, input.RecipientName)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, notFoundError("Letter not found")
	}
	return letterPayload(letter), nil
}

// UpdateLetterStatus transitions only the lifecycle status; content and
// recipient are never touched by this path.
func (s *Service) UpdateLetterStatus(ctx context.Context, userID, id int64, status string) (map[string]any, error) {
	if strings.TrimSpace(status) == "" {
		return nil, validationError("status is required")
	}
	letter, found, err := s.store.UpdateLetterStatus(ctx, id, userID, status)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, notFoundError("Letter not found")
	}
	return letterPayload(letter), nil
}

func (s *Service) DeleteLetter(ctx context.Context, userID, id int64) error {
	return s.store.DeleteLetter(ctx, id, userID)
}

// GetVisionRatings returns nil when the singleton has never been saved;
// the handler serializes that as a JSON null.
func (s *Service) GetVisionRatings(ctx context.Context, userID, reviewID int64) (map[string]any, error) {
	ratings, err := s.store.GetVisionRatings(ctx, reviewID, userID)
	if err != nil {
		return nil, err
	}
	if ratings == nil {
		return nil, nil
	}
	return visionRatingsPayload(*ratings), nil
}

func (s *Service) SaveVisionRatings(ctx context.Context, userID, reviewID int64, input VisionRatingsInput) (map[string]any, error) {
	for _, score := range []int{input.Health, input.Career, input.Relationships, input.Finances, input.PersonalGrowth, input.Recreation, input.Environment, input.Contribution} {
		if score < 0 || score > 10 {
			return nil, validationError("ratings must be between 0 and 10")
		}
	}
	ratings, err := s.store.UpsertVisionRatings(ctx, store.VisionRatings{
		ReviewID:       reviewID,
		UserID:         userID,
		Health:         input.Health,
		Career:         input.Career,
		Relationships:  input.Relationships,
		Finances:       input.Finances,
		PersonalGrowth: input.PersonalGrowth,
		Recreation:     input.Recreation,
		Environment:    input.Environment,
		Contribution:   input.Contribution,
		Notes:          input.Notes,
	})
	if err != nil {
		return nil, err
	}
	return visionRatingsPayload(ratings), nil
}

func (s *Service) ListAffirmations(ctx context.Context, userID int64) ([]map[string]any, error) {
	affirmations, err := s.store.ListAffirmations(ctx, userID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(affirmations))
	for _, affirmation := range affirmations {
		items = append(items, affirmationPayload(affirmation))
	}
	return items, nil
}

func (s *Service) CreateAffirmation(ctx context.Context, userID int64, input AffirmationInput) (map[string]any, error) {
	if strings.TrimSpace(input.AffirmationText) == "" {
		return nil, validationError("affirmationText is required")
	}
	affirmation, err := s.store.InsertAffirmation(ctx, store.Affirmation{
		UserID:          userID,
		AffirmationText: input.AffirmationText,
		SortOrder:       input.SortOrder,
	})
	if err != nil {
		return nil, err
	}
	return affirmationPayload(affirmation), nil
}

func (s *Service) UpdateAffirmation(ctx context.Context, userID, id int64, input AffirmationInput) (map[string]any, error) {
	affirmation, found, err := s.store.UpdateAffirmation(ctx, id, userID, input.AffirmationText, input.SortOrder)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, notFoundError("Affirmation not found")
	}
	return affirmationPayload(affirmation), nil
}

func (s *Service) DeleteAffirmation(ctx context.Context, userID, id int64) error {
	return s.store.DeleteAffirmation(ctx, id, userID)
}

func (s *Service) ListActionHighlights(ctx context.Context, userID, reviewID int64) ([]map[string]any, error) {
	highlights, err := s.store.ListActionHighlights(ctx, reviewID, userID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(highlights))
	for _, highlight := range highlights {
		items = append(items, highlightPayload(highlight))
	}
	return items, nil
}

// SaveActionHighlights replaces the review's whole highlight set; saving
// an empty set clears it.
func (s *Service) SaveActionHighlights(ctx context.Context, userID, reviewID int64, inputs []HighlightInput) ([]map[string]any, error) {
	rows := make([]store.ActionHighlight, 0, len(inputs))
	for _, input := range inputs {
		rows = append(rows, store.ActionHighlight{
			HighlightNumber: input.HighlightNumber,
			WhatHappened:    input.WhatHappened,
			WhyHow:          input.WhyHow,
			NextStep:        input.NextStep,
		})
	}
	saved, err := s.store.ReplaceActionHighlights(ctx, reviewID, userID, rows)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(saved))
	for _, highlight := range saved {
		items = append(items, highlightPayload(highlight))
	}
	return items, nil
}

// UploadAudio stores the blob and records it as the latest recording of
// its type.
func (s *Service) UploadAudio(ctx context.Context, userID int64, recordingType, contentType string, reader io.Reader, size int64) (map[string]any, error) {
	if s.blobs == nil {
		return nil, domainError(http.StatusServiceUnavailable, "AUDIO_UNAVAILABLE", "Audio storage not configured", nil)
	}
	if strings.TrimSpace(recordingType) == "" {
		return nil, validationError("recordingType is required")
	}

	key := util.ObjectKey("audio")
	if err := s.blobs.Put(ctx, key, reader, size, contentType); err != nil {
		return nil, err
	}

	recording, err := s.store.InsertAudioRecording(ctx, store.AudioRecording{
		UserID:        userID,
		RecordingType: recordingType,
		StorageKey:    key,
	})
	if err != nil {
		return nil, err
	}
	return audioPayload(recording), nil
}

// LatestAudioRecording is the one lookup that signals absence with 404
// rather than a null body.
func (s *Service) LatestAudioRecording(ctx context.Context, userID int64, recordingType string) (map[string]any, error) {
	recording, err := s.store.LatestAudioRecording(ctx, userID, recordingType)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFoundError("No recording found")
	}
	if err != nil {
		return nil, err
	}
	return audioPayload(recording), nil
}

func (s *Service) ListAudioRecordings(ctx context.Context, userID int64) ([]map[string]any, error) {
	recordings, err := s.store.ListAudioRecordings(ctx, userID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(recordings))
	for _, recording := range recordings {
		items = append(items, audioPayload(recording))
	}
	return items, nil
}

// DeleteAudioRecording removes the row and then the stored object.
// Object removal is best effort: the row is already gone, so a bucket
// failure is logged rather than surfaced as a request error.
func (s *Service) DeleteAudioRecording(ctx context.Context, userID, id int64) error {
	storageKey, err := s.store.DeleteAudioRecording(ctx, id, userID)
	if err != nil {
		return err
	}
	if storageKey != "" && s.blobs != nil {
		if err := s.blobs.Remove(ctx, storageKey); err != nil {
			log.Printf("remove audio object %s: %v", storageKey, err)
		}
	}
	return nil
}

func (s *Service) GetSlackSettings(ctx context.Context, userID int64) (map[string]any, error) {
	settings, err := s.store.GetSlackSettings(ctx, userID)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		return nil, nil
	}
	return slackSettingsPayload(*settings), nil
}

func (s *Service) SaveSlackSettings(ctx context.Context, userID int64, input SlackSettingsInput) (map[string]any, error) {
	settings, err := s.store.UpsertSlackSettings(ctx, store.SlackSettings{
		UserID:     userID,
		WebhookURL: input.WebhookURL,
		SendTime:   input.SendTime,
		IsEnabled:  input.IsEnabled,
	})
	if err != nil {
		return nil, err
	}
	return slackSettingsPayload(settings), nil
}

// MigrationVersion is the script the admin endpoint applies.
const MigrationVersion = "0001_quarterly_review.up.sql"

// RunMigration applies the quarterly review schema behind the shared
// secret. A version already in the ledger makes this a no-op, so the
// endpoint stays safe to call after the first success.
func (s *Service) RunMigration(ctx context.Context, secret string) (map[string]any, error) {
	if secret == "" || secret != s.cfg.MigrationSecret {
		return nil, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Invalid secret key", nil)
	}

	created, applied, err := s.migrator.Run(ctx, MigrationVersion)
	if err != nil {
		// Admin tool: the raw failure is part of the report.
		return nil, domainError(http.StatusInternalServerError, "MIGRATION_FAILED", err.Error(), nil)
	}
	if !applied {
		return map[string]any{
			"success": true,
			"message": "Migration already applied",
		}, nil
	}
	return map[string]any{
		"success":       true,
		"message":       "Quarterly review migration completed successfully",
		"tablesCreated": created,
	}, nil
}

func reviewPayload(item store.Review) map[string]any {
	return map[string]any{
		"id":            item.ID,
		"userId":        item.UserID,
		"quarter":       item.Quarter,
		"year":          item.Year,
		"quarterNumber": item.QuarterNumber,
		"createdAt":     item.CreatedAt,
	}
}

func alchemyPayload(item store.AlchemySession) map[string]any {
	return map[string]any{
		"id":             item.ID,
		"reviewId":       item.ReviewID,
		"userId":         item.UserID,
		"emotion":        item.Emotion,
		"bodySensation":  item.BodySensation,
		"thoughtPattern": item.ThoughtPattern,
		"transformation": item.Transformation,
		"createdAt":      item.CreatedAt,
	}
}

func lifeInventoryPayload(item store.LifeInventoryEntry) map[string]any {
	return map[string]any{
		"id":           item.ID,
		"reviewId":     item.ReviewID,
		"userId":       item.UserID,
		"lifePeriod":   item.LifePeriod,
		"resentments":  item.Resentments,
		"fears":        item.Fears,
		"harms":        item.Harms,
		"patterns":     item.Patterns,
		"amendsNeeded": item.AmendsNeeded,
		"createdAt":    item.CreatedAt,
		"updatedAt":    item.UpdatedAt,
	}
}

func letterPayload(item store.Letter) map[string]any {
	return map[string]any{
		"id":            item.ID,
		"reviewId":      item.ReviewID,
		"userId":        item.UserID,
		"letterType":    item.LetterType,
		"recipientName": item.RecipientName,
		"content":       item.Content,
		"status":        item.Status,
		"createdAt":     item.CreatedAt,
		"updatedAt":     item.UpdatedAt,
	}
}

func visionRatingsPayload(item store.VisionRatings) map[string]any {
	return map[string]any{
		"id":             item.ID,
		"reviewId":       item.ReviewID,
		"userId":         item.UserID,
		"health":         item.Health,
		"career":         item.Career,
		"relationships":  item.Relationships,
		"finances":       item.Finances,
		"personalGrowth": item.PersonalGrowth,
		"recreation":     item.Recreation,
		"environment":    item.Environment,
		"contribution":   item.Contribution,
		"notes":          item.Notes,
		"createdAt":      item.CreatedAt,
		"updatedAt":      item.UpdatedAt,
	}
}

func affirmationPayload(item store.Affirmation) map[string]any {
	return map[string]any{
		"id":              item.ID,
		"userId":          item.UserID,
		"affirmationText": item.AffirmationText,
		"sortOrder":       item.SortOrder,
		"createdAt":       item.CreatedAt,
		"updatedAt":       item.UpdatedAt,
	}
}

func highlightPayload(item store.ActionHighlight) map[string]any {
	return map[string]any{
		"id":              item.ID,
		"reviewId":        item.ReviewID,
		"userId":          item.UserID,
		"highlightNumber": item.HighlightNumber,
		"whatHappened":    item.WhatHappened,
		"whyHow":          item.WhyHow,
		"nextStep":        item.NextStep,
	}
}

func audioPayload(item store.AudioRecording) map[string]any {
	return map[string]any{
		"id":            item.ID,
		"userId":        item.UserID,
		"recordingType": item.RecordingType,
		"storageKey":    item.StorageKey,
		"isLatest":      item.IsLatest,
		"createdAt":     item.CreatedAt,
	}
}

func slackSettingsPayload(item store.SlackSettings) map[string]any {
	return map[string]any{
		"id":         item.ID,
		"userId":     item.UserID,
		"webhookUrl": item.WebhookURL,
		"sendTime":   item.SendTime,
		"isEnabled":  item.IsEnabled,
		"createdAt":  item.CreatedAt,
		"updatedAt":  item.UpdatedAt,
	}
}
