package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"sort"

	"quarterly/api/internal/config"
	"quarterly/api/internal/identity"
	"quarterly/api/internal/store"
)

// fakeStore is an in-memory dataStore for handler tests.
type fakeStore struct {
	nextID        int64
	reviews       map[string]store.Review
	alchemy       []store.AlchemySession
	lifeInventory []store.LifeInventoryEntry
	letters       []store.Letter
	visionRatings map[string]store.VisionRatings
	affirmations  []store.Affirmation
	highlights    []store.ActionHighlight
	recordings    []store.AudioRecording
	slack         map[int64]store.SlackSettings
	pingErr       error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		reviews:       make(map[string]store.Review),
		visionRatings: make(map[string]store.VisionRatings),
		slack:         make(map[int64]store.SlackSettings),
	}
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeStore) EnsureOwner(ctx context.Context, openID, name string) (store.User, error) {
	return store.User{ID: 1, OpenID: openID, Name: name, Role: "admin"}, nil
}

func (f *fakeStore) GetOrCreateReview(ctx context.Context, userID int64, quarter string, year, quarterNumber int) (store.Review, error) {
	key := fmt.Sprintf("%d/%s", userID, quarter)
	if review, ok := f.reviews[key]; ok {
		return review, nil
	}
	review := store.Review{ID: f.id(), UserID: userID, Quarter: quarter, Year: year, QuarterNumber: quarterNumber}
	f.reviews[key] = review
	return review, nil
}

func (f *fakeStore) ListAlchemySessions(ctx context.Context, reviewID, userID int64) ([]store.AlchemySession, error) {
	var out []store.AlchemySession
	for _, item := range f.alchemy {
		if item.ReviewID == reviewID && item.UserID == userID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (f *fakeStore) InsertAlchemySession(ctx context.Context, item store.AlchemySession) (store.AlchemySession, error) {
	item.ID = f.id()
	f.alchemy = append(f.alchemy, item)
	return item, nil
}

func (f *fakeStore) DeleteAlchemySession(ctx context.Context, id, userID int64) error {
	kept := f.alchemy[:0]
	for _, item := range f.alchemy {
		if item.ID != id || item.UserID != userID {
			kept = append(kept, item)
		}
	}
	f.alchemy = kept
	return nil
}

func (f *fakeStore) ListLifeInventory(ctx context.Context, reviewID, userID int64) ([]store.LifeInventoryEntry, error) {
	var out []store.LifeInventoryEntry
	for _, item := range f.lifeInventory {
		if item.ReviewID == reviewID && item.UserID == userID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (f *fakeStore) InsertLifeInventory(ctx context.Context, item store.LifeInventoryEntry) (store.LifeInventoryEntry, error) {
	item.ID = f.id()
	f.lifeInventory = append(f.lifeInventory, item)
	return item, nil
}

func (f *fakeStore) UpdateLifeInventory(ctx context.Context, item store.LifeInventoryEntry) (store.LifeInventoryEntry, bool, error) {
	for i, existing := range f.lifeInventory {
		if existing.ID == item.ID && existing.UserID == item.UserID {
			// Period identity is fixed after creation.
			item.ReviewID = existing.ReviewID
			item.LifePeriod = existing.LifePeriod
			f.lifeInventory[i] = item
			return item, true, nil
		}
	}
	return store.LifeInventoryEntry{}, false, nil
}

func (f *fakeStore) ListLetters(ctx context.Context, reviewID, userID int64) ([]store.Letter, error) {
	var out []store.Letter
	for _, item := range f.letters {
		if item.ReviewID == reviewID && item.UserID == userID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (f *fakeStore) InsertLetter(ctx context.Context, item store.Letter) (store.Letter, error) {
	item.ID = f.id()
	item.Status = "pending"
	f.letters = append(f.letters, item)
	return item, nil
}

func (f *fakeStore) UpdateLetter(ctx context.Context, id, userID int64, content, recipientName string) (store.Letter, bool, error) {
	for i, item := range f.letters {
		if item.ID == id && item.UserID == userID {
			f.letters[i].Content = content
			f.letters[i].RecipientName = recipientName
			return f.letters[i], true, nil
		}
	}
	return store.Letter{}, false, nil
}

func (f *fakeStore) UpdateLetterStatus(ctx context.Context, id, userID int64, status string) (store.Letter, bool, error) {
	for i, item := range f.letters {
		if item.ID == id && item.UserID == userID {
			f.letters[i].Status = status
			return f.letters[i], true, nil
		}
	}
	return store.Letter{}, false, nil
}

func (f *fakeStore) DeleteLetter(ctx context.Context, id, userID int64) error {
	kept := f.letters[:0]
	for _, item := range f.letters {
		if item.ID != id || item.UserID != userID {
			kept = append(kept, item)
		}
	}
	f.letters = kept
	return nil
}

func (f *fakeStore) GetVisionRatings(ctx context.Context, reviewID, userID int64) (*store.VisionRatings, error) {
	key := fmt.Sprintf("%d/%d", reviewID, userID)
	if ratings, ok := f.visionRatings[key]; ok {
		return &ratings, nil
	}
	return nil, nil
}

func (f *fakeStore) UpsertVisionRatings(ctx context.Context, item store.VisionRatings) (store.VisionRatings, error) {
	key := fmt.Sprintf("%d/%d", item.ReviewID, item.UserID)
	if existing, ok := f.visionRatings[key]; ok {
		item.ID = existing.ID
	} else {
		item.ID = f.id()
	}
	f.visionRatings[key] = item
	return item, nil
}

func (f *fakeStore) ListAffirmations(ctx context.Context, userID int64) ([]store.Affirmation, error) {
	var out []store.Affirmation
	for _, item := range f.affirmations {
		if item.UserID == userID {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

func (f *fakeStore) InsertAffirmation(ctx context.Context, item store.Affirmation) (store.Affirmation, error) {
	item.ID = f.id()
	f.affirmations = append(f.affirmations, item)
	return item, nil
}

func (f *fakeStore) UpdateAffirmation(ctx context.Context, id, userID int64, text string, sortOrder int) (store.Affirmation, bool, error) {
	for i, item := range f.affirmations {
		if item.ID == id && item.UserID == userID {
			f.affirmations[i].AffirmationText = text
			f.affirmations[i].SortOrder = sortOrder
			return f.affirmations[i], true, nil
		}
	}
	return store.Affirmation{}, false, nil
}

func (f *fakeStore) DeleteAffirmation(ctx context.Context, id, userID int64) error {
	kept := f.affirmations[:0]
	for _, item := range f.affirmations {
		if item.ID != id || item.UserID != userID {
			kept = append(kept, item)
		}
	}
	f.affirmations = kept
	return nil
}

func (f *fakeStore) ListActionHighlights(ctx context.Context, reviewID, userID int64) ([]store.ActionHighlight, error) {
	var out []store.ActionHighlight
	for _, item := range f.highlights {
		if item.ReviewID == reviewID && item.UserID == userID {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].HighlightNumber < out[j].HighlightNumber })
	return out, nil
}

func (f *fakeStore) ReplaceActionHighlights(ctx context.Context, reviewID, userID int64, items []store.ActionHighlight) ([]store.ActionHighlight, error) {
	kept := f.highlights[:0]
	for _, item := range f.highlights {
		if item.ReviewID != reviewID || item.UserID != userID {
			kept = append(kept, item)
		}
	}
	f.highlights = kept

	saved := make([]store.ActionHighlight, 0, len(items))
	for _, item := range items {
		item.ID = f.id()
		item.ReviewID = reviewID
		item.UserID = userID
		f.highlights = append(f.highlights, item)
		saved = append(saved, item)
	}
	return saved, nil
}

func (f *fakeStore) InsertAudioRecording(ctx context.Context, item store.AudioRecording) (store.AudioRecording, error) {
	for i, existing := range f.recordings {
		if existing.UserID == item.UserID && existing.RecordingType == item.RecordingType {
			f.recordings[i].IsLatest = false
		}
	}
	item.ID = f.id()
	item.IsLatest = true
	f.recordings = append(f.recordings, item)
	return item, nil
}

func (f *fakeStore) LatestAudioRecording(ctx context.Context, userID int64, recordingType string) (store.AudioRecording, error) {
	for _, item := range f.recordings {
		if item.UserID == userID && item.RecordingType == recordingType && item.IsLatest {
			return item, nil
		}
	}
	return store.AudioRecording{}, sql.ErrNoRows
}

func (f *fakeStore) ListAudioRecordings(ctx context.Context, userID int64) ([]store.AudioRecording, error) {
	var out []store.AudioRecording
	for _, item := range f.recordings {
		if item.UserID == userID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (f *fakeStore) DeleteAudioRecording(ctx context.Context, id, userID int64) (string, error) {
	var storageKey string
	kept := f.recordings[:0]
	for _, item := range f.recordings {
		if item.ID == id && item.UserID == userID {
			storageKey = item.StorageKey
			continue
		}
		kept = append(kept, item)
	}
	f.recordings = kept
	return storageKey, nil
}

func (f *fakeStore) GetSlackSettings(ctx context.Context, userID int64) (*store.SlackSettings, error) {
	if settings, ok := f.slack[userID]; ok {
		return &settings, nil
	}
	return nil, nil
}

func (f *fakeStore) UpsertSlackSettings(ctx context.Context, item store.SlackSettings) (store.SlackSettings, error) {
	if existing, ok := f.slack[item.UserID]; ok {
		item.ID = existing.ID
	} else {
		item.ID = f.id()
	}
	f.slack[item.UserID] = item
	return item, nil
}

func (f *fakeStore) Ping(ctx context.Context) error {
	return f.pingErr
}

// fakeBlobs records uploaded and removed keys.
type fakeBlobs struct {
	keys    []string
	removed []string
}

func (f *fakeBlobs) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	_, _ = io.Copy(io.Discard, reader)
	f.keys = append(f.keys, key)
	return nil
}

func (f *fakeBlobs) Remove(ctx context.Context, key string) error {
	f.removed = append(f.removed, key)
	return nil
}

// fakeMigrator counts applied runs.
type fakeMigrator struct {
	runs    int
	created []string
	err     error
}

func (f *fakeMigrator) Run(ctx context.Context, version string) ([]string, bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	f.runs++
	if f.runs > 1 {
		return nil, false, nil
	}
	return f.created, true, nil
}

func testConfig() config.Config {
	return config.Config{
		AuthMode:        "public",
		OwnerName:       "Guest User",
		OwnerOpenID:     "public-user",
		MigrationSecret: "test-secret",
	}
}

func newTestService(fs *fakeStore) *Service {
	cfg := testConfig()
	return New(cfg, fs, identity.NewPublicProvider(cfg.OwnerOpenID, cfg.OwnerName), nil, &fakeMigrator{})
}
