package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// EnsureOwner upserts the fixed owner row used by public-access mode.
// Every public-mode request resolves to this user.
func (s *PostgresStore) EnsureOwner(ctx context.Context, openID, name string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (id, open_id, name, role)
		VALUES (1, $1, $2, 'admin')
		ON CONFLICT (id) DO UPDATE SET open_id=EXCLUDED.open_id, name=EXCLUDED.name
		RETURNING id, open_id, name, role, created_at
	`, openID, name).Scan(&user.ID, &user.OpenID, &user.Name, &user.Role, &user.CreatedAt)
	if err != nil {
		return User{}, fmt.Errorf("ensure owner: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) SaveAPISession(ctx context.Context, tokenHash string, userID int64, name, role string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO api_sessions (token_hash, user_id, user_name, role, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, user_name=EXCLUDED.user_name, role=EXCLUDED.role, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, userID, name, role, expiresAt)
	if err != nil {
		return fmt.Errorf("save api session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupAPISession(ctx context.Context, tokenHash string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, user_name, role
		FROM api_sessions
		WHERE token_hash=$1
			AND revoked_at IS NULL
			AND expires_at > NOW()
	`, tokenHash).Scan(&user.ID, &user.Name, &user.Role)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) RevokeAPISession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE api_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke api session: %w", err)
	}
	return nil
}

// GetOrCreateReview returns the review for (userID, quarter), creating it
// on first access. The (user_id, quarter) unique constraint makes the
// operation idempotent under concurrent first requests.
func (s *PostgresStore) GetOrCreateReview(ctx context.Context, userID int64, quarter string, year, quarterNumber int) (Review, error) {
	var item Review
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO quarterly_reviews (user_id, quarter, year, quarter_number)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, quarter) DO UPDATE SET year=EXCLUDED.year
		RETURNING id, user_id, quarter, year, quarter_number, created_at
	`, userID, quarter, year, quarterNumber).Scan(&item.ID, &item.UserID, &item.Quarter, &item.Year, &item.QuarterNumber, &item.CreatedAt)
	if err != nil {
		return Review{}, fmt.Errorf("get or create review: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) ListAlchemySessions(ctx context.Context, reviewID, userID int64) ([]AlchemySession, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, review_id, user_id, emotion, body_sensation, thought_pattern, transformation, created_at
		FROM emotional_alchemy
		WHERE review_id=$1 AND user_id=$2
		ORDER BY created_at DESC
	`, reviewID, userID)
	if err != nil {
		return nil, fmt.Errorf("list alchemy sessions: %w", err)
	}
	defer rows.Close()

	items := make([]AlchemySession, 0)
	for rows.Next() {
		var item AlchemySession
		if err := rows.Scan(&item.ID, &item.ReviewID, &item.UserID, &item.Emotion, &item.BodySensation, &item.ThoughtPattern, &item.Transformation, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan alchemy session: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alchemy sessions: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertAlchemySession(ctx context.Context, item AlchemySession) (AlchemySession, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO emotional_alchemy (review_id, user_id, emotion, body_sensation, thought_pattern, transformation)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, item.ReviewID, item.UserID, item.Emotion, item.BodySensation, item.ThoughtPattern, item.Transformation).Scan(&item.ID, &item.CreatedAt)
	if err != nil {
		return AlchemySession{}, fmt.Errorf("insert alchemy session: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) DeleteAlchemySession(ctx context.Context, id, userID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM emotional_alchemy WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete alchemy session: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListLifeInventory(ctx context.Context, reviewID, userID int64) ([]LifeInventoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, review_id, user_id, life_period, resentments, fears, harms, patterns, amends_needed, created_at, updated_at
		FROM life_inventory
		WHERE review_id=$1 AND user_id=$2
		ORDER BY created_at ASC
	`, reviewID, userID)
	if err != nil {
		return nil, fmt.Errorf("list life inventory: %w", err)
	}
	defer rows.Close()

	items := make([]LifeInventoryEntry, 0)
	for rows.Next() {
		var item LifeInventoryEntry
		if err := rows.Scan(&item.ID, &item.ReviewID, &item.UserID, &item.LifePeriod, &item.Resentments, &item.Fears, &item.Harms, &item.Patterns, &item.AmendsNeeded, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan life inventory entry: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate life inventory: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertLifeInventory(ctx context.Context, item LifeInventoryEntry) (LifeInventoryEntry, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO life_inventory (review_id, user_id, life_period, resentments, fears, harms, patterns, amends_needed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`, item.ReviewID, item.UserID, item.LifePeriod, item.Resentments, item.Fears, item.Harms, item.Patterns, item.AmendsNeeded).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return LifeInventoryEntry{}, fmt.Errorf("insert life inventory entry: %w", err)
	}
	return item, nil
}

// UpdateLifeInventory updates an entry scoped by (id, user). The bool is
// false when no row matched, which includes rows owned by other users.
func (s *PostgresStore) UpdateLifeInventory(ctx context.Context, item LifeInventoryEntry) (LifeInventoryEntry, bool, error) {
	err := s.db.QueryRowContext(ctx, `
		UPDATE life_inventory
		SET resentments=$3, fears=$4, harms=$5, patterns=$6, amends_needed=$7, updated_at=NOW()
		WHERE id=$1 AND user_id=$2
		RETURNING id, review_id, user_id, life_period, resentments, fears, harms, patterns, amends_needed, created_at, updated_at
	`, item.ID, item.UserID, item.Resentments, item.Fears, item.Harms, item.Patterns, item.AmendsNeeded).Scan(
		&item.ID, &item.ReviewID, &item.UserID, &item.LifePeriod, &item.Resentments, &item.Fears, &item.Harms, &item.Patterns, &item.AmendsNeeded, &item.CreatedAt, &item.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return LifeInventoryEntry{}, false, nil
	}
	if err != nil {
		return LifeInventoryEntry{}, false, fmt.Errorf("update life inventory entry: %w", err)
	}
	return item, true, nil
}

func (s *PostgresStore) ListLetters(ctx context.Context, reviewID, userID int64) ([]Letter, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, review_id, user_id, letter_type, recipient_name, content, status, created_at, updated_at
		FROM letters
		WHERE review_id=$1 AND user_id=$2
		ORDER BY created_at DESC
	`, reviewID, userID)
	if err != nil {
		return nil, fmt.Errorf("list letters: %w", err)
	}
	defer rows.Close()

	items := make([]Letter, 0)
	for rows.Next() {
		var item Letter
		if err := rows.Scan(&item.ID, &item.ReviewID, &item.UserID, &item.LetterType, &item.RecipientName, &item.Content, &item.Status, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan letter: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate letters: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertLetter(ctx context.Context, item Letter) (Letter, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO letters (review_id, user_id, letter_type, recipient_name, content, status)
		VALUES ($1, $2, $3, $4, $5, 'pending')
		RETURNING id, status, created_at, updated_at
	`, item.ReviewID, item.UserID, item.LetterType, item.RecipientName, item.Content).Scan(&item.ID, &item.Status, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Letter{}, fmt.Errorf("insert letter: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) UpdateLetter(ctx context.Context, id, userID int64, content, recipientName string) (Letter, bool, error) {
	var item Letter
	err := s.db.QueryRowContext(ctx, `
		UPDATE letters
		SET content=$3, recipient_name=$4, updated_at=NOW()
		WHERE id=$1 AND user_id=$2
		RETURNING id, review_id, user_id, letter_type, recipient_name, content, status, created_at, updated_at
	`, id, userID, content, recipientName).Scan(
		&item.ID, &item.ReviewID, &item.UserID, &item.LetterType, &item.RecipientName, &item.Content, &item.Status, &item.CreatedAt, &item.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Letter{}, false, nil
	}
	if err != nil {
		return Letter{}, false, fmt.Errorf("update letter: %w", err)
	}
	return item, true, nil
}

// UpdateLetterStatus transitions only the status field, leaving content
// and recipient untouched.
func (s *PostgresStore) UpdateLetterStatus(ctx context.Context, id, userID int64, status string) (Letter, bool, error) {
	var item Letter
	err := s.db.QueryRowContext(ctx, `
		UPDATE letters
		SET status=$3, updated_at=NOW()
		WHERE id=$1 AND user_id=$2
		RETURNING id, review_id, user_id, letter_type, recipient_name, content, status, created_at, updated_at
	`, id, userID, status).Scan(
		&item.ID, &item.ReviewID, &item.UserID, &item.LetterType, &item.RecipientName, &item.Content, &item.Status, &item.CreatedAt, &item.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Letter{}, false, nil
	}
	if err != nil {
		return Letter{}, false, fmt.Errorf("update letter status: %w", err)
	}
	return item, true, nil
}

func (s *PostgresStore) DeleteLetter(ctx context.Context, id, userID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM letters WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete letter: %w", err)
	}
	return nil
}

// GetVisionRatings returns nil when the singleton row is absent.
func (s *PostgresStore) GetVisionRatings(ctx context.Context, reviewID, userID int64) (*VisionRatings, error) {
	var item VisionRatings
	err := s.db.QueryRowContext(ctx, `
		SELECT id, review_id, user_id, health, career, relationships, finances, personal_growth, recreation, environment, contribution, notes, created_at, updated_at
		FROM quarterly_vision_ratings
		WHERE review_id=$1 AND user_id=$2
	`, reviewID, userID).Scan(
		&item.ID, &item.ReviewID, &item.UserID, &item.Health, &item.Career, &item.Relationships, &item.Finances, &item.PersonalGrowth, &item.Recreation, &item.Environment, &item.Contribution, &item.Notes, &item.CreatedAt, &item.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get vision ratings: %w", err)
	}
	return &item, nil
}

// UpsertVisionRatings inserts or updates the per-(review, user) singleton
// in one statement. The unique constraint closes the double-submit race.
func (s *PostgresStore) UpsertVisionRatings(ctx context.Context, item VisionRatings) (VisionRatings, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO quarterly_vision_ratings (review_id, user_id, health, career, relationships, finances, personal_growth, recreation, environment, contribution, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (review_id, user_id) DO UPDATE SET
			health=EXCLUDED.health, career=EXCLUDED.career, relationships=EXCLUDED.relationships,
			finances=EXCLUDED.finances, personal_growth=EXCLUDED.personal_growth, recreation=EXCLUDED.recreation,
			environment=EXCLUDED.environment, contribution=EXCLUDED.contribution, notes=EXCLUDED.notes,
			updated_at=NOW()
		RETURNING id, created_at, updated_at
	`, item.ReviewID, item.UserID, item.Health, item.Career, item.Relationships, item.Finances, item.PersonalGrowth, item.Recreation, item.Environment, item.Contribution, item.Notes).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return VisionRatings{}, fmt.Errorf("upsert vision ratings: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) ListAffirmations(ctx context.Context, userID int64) ([]Affirmation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, affirmation_text, sort_order, created_at, updated_at
		FROM daily_affirmations
		WHERE user_id=$1
		ORDER BY sort_order ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list affirmations: %w", err)
	}
	defer rows.Close()

	items := make([]Affirmation, 0)
	for rows.Next() {
		var item Affirmation
		if err := rows.Scan(&item.ID, &item.UserID, &item.AffirmationText, &item.SortOrder, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan affirmation: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate affirmations: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertAffirmation(ctx context.Context, item Affirmation) (Affirmation, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO daily_affirmations (user_id, affirmation_text, sort_order)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`, item.UserID, item.AffirmationText, item.SortOrder).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Affirmation{}, fmt.Errorf("insert affirmation: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) UpdateAffirmation(ctx context.Context, id, userID int64, text string, sortOrder int) (Affirmation, bool, error) {
	var item Affirmation
	err := s.db.QueryRowContext(ctx, `
		UPDATE daily_affirmations
		SET affirmation_text=$3, sort_order=$4, updated_at=NOW()
		WHERE id=$1 AND user_id=$2
		RETURNING id, user_id, affirmation_text, sort_order, created_at, updated_at
	`, id, userID, text, sortOrder).Scan(&item.ID, &item.UserID, &item.AffirmationText, &item.SortOrder, &item.CreatedAt, &item.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Affirmation{}, false, nil
	}
	if err != nil {
		return Affirmation{}, false, fmt.Errorf("update affirmation: %w", err)
	}
	return item, true, nil
}

func (s *PostgresStore) DeleteAffirmation(ctx context.Context, id, userID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM daily_affirmations WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete affirmation: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListActionHighlights(ctx context.Context, reviewID, userID int64) ([]ActionHighlight, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, review_id, user_id, highlight_number, what_happened, why_how, next_step
		FROM action_highlights
		WHERE review_id=$1 AND user_id=$2
		ORDER BY highlight_number ASC
	`, reviewID, userID)
	if err != nil {
		return nil, fmt.Errorf("list action highlights: %w", err)
	}
	defer rows.Close()

	items := make([]ActionHighlight, 0)
	for rows.Next() {
		var item ActionHighlight
		if err := rows.Scan(&item.ID, &item.ReviewID, &item.UserID, &item.HighlightNumber, &item.WhatHappened, &item.WhyHow, &item.NextStep); err != nil {
			return nil, fmt.Errorf("scan action highlight: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate action highlights: %w", err)
	}
	return items, nil
}

// ReplaceActionHighlights swaps the whole highlight set for a review in
// one transaction, so readers never observe a mix of old and new rows.
func (s *PostgresStore) ReplaceActionHighlights(ctx context.Context, reviewID, userID int64, items []ActionHighlight) ([]ActionHighlight, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin replace highlights: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM action_highlights WHERE review_id=$1 AND user_id=$2`, reviewID, userID); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("delete action highlights: %w", err)
	}

	saved := make([]ActionHighlight, 0, len(items))
	for _, item := range items {
		item.ReviewID = reviewID
		item.UserID = userID
		err := tx.QueryRowContext(ctx, `
			INSERT INTO action_highlights (review_id, user_id, highlight_number, what_happened, why_how, next_step)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`, reviewID, userID, item.HighlightNumber, item.WhatHappened, item.WhyHow, item.NextStep).Scan(&item.ID)
		if err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("insert action highlight: %w", err)
		}
		saved = append(saved, item)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit replace highlights: %w", err)
	}
	return saved, nil
}

// InsertAudioRecording stores a new recording as the latest of its type,
// demoting the previous latest row in the same transaction.
func (s *PostgresStore) InsertAudioRecording(ctx context.Context, item AudioRecording) (AudioRecording, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return AudioRecording{}, fmt.Errorf("begin insert recording: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE audio_recordings SET is_latest=FALSE
		WHERE user_id=$1 AND recording_type=$2 AND is_latest
	`, item.UserID, item.RecordingType); err != nil {
		_ = tx.Rollback()
		return AudioRecording{}, fmt.Errorf("demote previous recording: %w", err)
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO audio_recordings (user_id, recording_type, storage_key, is_latest)
		VALUES ($1, $2, $3, TRUE)
		RETURNING id, created_at
	`, item.UserID, item.RecordingType, item.StorageKey).Scan(&item.ID, &item.CreatedAt)
	if err != nil {
		_ = tx.Rollback()
		return AudioRecording{}, fmt.Errorf("insert recording: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return AudioRecording{}, fmt.Errorf("commit insert recording: %w", err)
	}
	item.IsLatest = true
	return item, nil
}

// LatestAudioRecording returns sql.ErrNoRows when the user has never
// uploaded a recording of the requested type.
func (s *PostgresStore) LatestAudioRecording(ctx context.Context, userID int64, recordingType string) (AudioRecording, error) {
	var item AudioRecording
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, recording_type, storage_key, is_latest, created_at
		FROM audio_recordings
		WHERE user_id=$1 AND recording_type=$2 AND is_latest
	`, userID, recordingType).Scan(&item.ID, &item.UserID, &item.RecordingType, &item.StorageKey, &item.IsLatest, &item.CreatedAt)
	if err != nil {
		return AudioRecording{}, err
	}
	return item, nil
}

func (s *PostgresStore) ListAudioRecordings(ctx context.Context, userID int64) ([]AudioRecording, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, recording_type, storage_key, is_latest, created_at
		FROM audio_recordings
		WHERE user_id=$1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	defer rows.Close()

	items := make([]AudioRecording, 0)
	for rows.Next() {
		var item AudioRecording
		if err := rows.Scan(&item.ID, &item.UserID, &item.RecordingType, &item.StorageKey, &item.IsLatest, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan recording: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recordings: %w", err)
	}
	return items, nil
}

// DeleteAudioRecording returns the deleted row's storage key so the
// caller can clean up the stored object. An empty key means no row
// matched.
func (s *PostgresStore) DeleteAudioRecording(ctx context.Context, id, userID int64) (string, error) {
	var storageKey string
	err := s.db.QueryRowContext(ctx,
		`DELETE FROM audio_recordings WHERE id=$1 AND user_id=$2 RETURNING storage_key`,
		id, userID,
	).Scan(&storageKey)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("delete recording: %w", err)
	}
	return storageKey, nil
}

// GetSlackSettings returns nil when the user has never saved settings.
func (s *PostgresStore) GetSlackSettings(ctx context.Context, userID int64) (*SlackSettings, error) {
	var item SlackSettings
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, webhook_url, send_time, is_enabled, created_at, updated_at
		FROM slack_automation_settings
		WHERE user_id=$1
	`, userID).Scan(&item.ID, &item.UserID, &item.WebhookURL, &item.SendTime, &item.IsEnabled, &item.CreatedAt, &item.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get slack settings: %w", err)
	}
	return &item, nil
}

func (s *PostgresStore) UpsertSlackSettings(ctx context.Context, item SlackSettings) (SlackSettings, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO slack_automation_settings (user_id, webhook_url, send_time, is_enabled)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			webhook_url=EXCLUDED.webhook_url, send_time=EXCLUDED.send_time, is_enabled=EXCLUDED.is_enabled, updated_at=NOW()
		RETURNING id, created_at, updated_at
	`, item.UserID, item.WebhookURL, item.SendTime, item.IsEnabled).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return SlackSettings{}, fmt.Errorf("upsert slack settings: %w", err)
	}
	return item, nil
}

// UpsertRosterEntry inserts or refreshes one imported client row, keyed
// by the external task id. Creation-only fields are left untouched on
// conflict.
func (s *PostgresStore) UpsertRosterEntry(ctx context.Context, item RosterEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO clickup_clients (clickup_task_id, clickup_url, client_name, brand_name, company, status, service_type, defcon, am_owner, ppc_owner, creative_owner, pod_owner, total_asins_fam, total_asins_ppc)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (clickup_task_id) DO UPDATE SET
			client_name=EXCLUDED.client_name, brand_name=EXCLUDED.brand_name, company=EXCLUDED.company,
			status=EXCLUDED.status, service_type=EXCLUDED.service_type, defcon=EXCLUDED.defcon,
			am_owner=EXCLUDED.am_owner, ppc_owner=EXCLUDED.ppc_owner, creative_owner=EXCLUDED.creative_owner,
			pod_owner=EXCLUDED.pod_owner, total_asins_fam=EXCLUDED.total_asins_fam, total_asins_ppc=EXCLUDED.total_asins_ppc,
			updated_at=NOW()
	`, item.ClickUpTaskID, item.ClickUpURL, item.ClientName, item.BrandName, item.Company, item.Status, item.ServiceType, item.Defcon, item.AMOwner, item.PPCOwner, item.CreativeOwner, item.PodOwner, item.TotalAsinsFAM, item.TotalAsinsPPC)
	if err != nil {
		return fmt.Errorf("upsert roster entry: %w", err)
	}
	return nil
}

// Ping verifies the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
