package store

import "time"

type User struct {
	ID        int64
	OpenID    string
	Name      string
	Role      string
	CreatedAt time.Time
}

// Review is the per-user, per-quarter aggregate root. At most one row
// exists per (user_id, quarter).
type Review struct {
	ID            int64
	UserID        int64
	Quarter       string // e.g. "Q1 2025"
	Year          int
	QuarterNumber int
	CreatedAt     time.Time
}

type AlchemySession struct {
	ID             int64
	ReviewID       int64
	UserID         int64
	Emotion        string
	BodySensation  string
	ThoughtPattern string
	Transformation string
	CreatedAt      time.Time
}

type LifeInventoryEntry struct {
	ID           int64
	ReviewID     int64
	UserID       int64
	LifePeriod   string
	Resentments  string
	Fears        string
	Harms        string
	Patterns     string
	AmendsNeeded string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Letter struct {
	ID            int64
	ReviewID      int64
	UserID        int64
	LetterType    string
	RecipientName string
	Content       string
	Status        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// VisionRatings is a per-(review, user) singleton.
type VisionRatings struct {
	ID             int64
	ReviewID       int64
	UserID         int64
	Health         int
	Career         int
	Relationships  int
	Finances       int
	PersonalGrowth int
	Recreation     int
	Environment    int
	Contribution   int
	Notes          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Affirmation struct {
	ID              int64
	UserID          int64
	AffirmationText string
	SortOrder       int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type ActionHighlight struct {
	ID              int64
	ReviewID        int64
	UserID          int64
	HighlightNumber int
	WhatHappened    string
	WhyHow          string
	NextStep        string
}

type AudioRecording struct {
	ID            int64
	UserID        int64
	RecordingType string
	StorageKey    string
	IsLatest      bool
	CreatedAt     time.Time
}

// SlackSettings is a per-user singleton.
type SlackSettings struct {
	ID         int64
	UserID     int64
	WebhookURL string
	SendTime   string
	IsEnabled  bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// RosterEntry is an externally sourced client record, keyed by the
// ClickUp task id. Unrelated to the review domain.
type RosterEntry struct {
	ClickUpTaskID string
	ClickUpURL    string
	ClientName    string
	BrandName     string
	Company       string
	Status        string
	ServiceType   string
	Defcon        int
	AMOwner       *string
	PPCOwner      *string
	CreativeOwner *string
	PodOwner      *string
	TotalAsinsFAM *string
	TotalAsinsPPC *string
}
