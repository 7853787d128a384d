package models

import "time"

// NotificationType classifies a notification.
type NotificationType string

const (
	NotificationPredictionResult NotificationType = "prediction_result"
	NotificationMatchResult      NotificationType = "match_result"
	NotificationElimination      NotificationType = "elimination"
)

// NotificationData is the structured payload attached to a notification.
type NotificationData struct {
	CompetitionID   string  `json:"competition_id,omitempty"`
	CompetitionName string  `json:"competition_name,omitempty"`
	MatchID         string  `json:"match_id,omitempty"`
	MatchInfo       string  `json:"match_info,omitempty"`
	Week            int     `json:"week,omitempty"`
	PointsGained    int     `json:"points_gained,omitempty"`
	LivesLost       int     `json:"lives_lost,omitempty"`
	IsCorrect       *bool   `json:"is_correct,omitempty"`
	Result          Outcome `json:"result,omitempty"`
	HomeTeam        string  `json:"home_team,omitempty"`
	VisitorTeam     string  `json:"visitor_team,omitempty"`
	Winner          string  `json:"winner,omitempty"`
}

// Notification is an append-only per-user event record.
type Notification struct {
	ID        string           `gorm:"primaryKey" json:"id"`
	UserID    string           `gorm:"not null;index:idx_notification_user_read" json:"user_id"`
	Type      NotificationType `gorm:"type:varchar(32);not null" json:"type"`
	Title     string           `gorm:"size:100;not null" json:"title"`
	Message   string           `gorm:"size:500;not null" json:"message"`
	Data      NotificationData `gorm:"serializer:json" json:"data"`
	IsRead    bool             `gorm:"default:false;index:idx_notification_user_read" json:"is_read"`
	CreatedAt time.Time        `gorm:"index" json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}
