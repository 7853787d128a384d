package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"survivor-pool/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// GormStore is the Postgres-backed Store.
type GormStore struct {
	DB *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

// OpenPostgres connects to dsn with gorm's postgres driver.
func OpenPostgres(dsn string, verbose bool) (*gorm.DB, error) {
	cfg := &gorm.Config{TranslateError: true}
	if !verbose {
		cfg.Logger = logger.Default.LogMode(logger.Warn)
	}
	db, err := gorm.Open(postgres.Open(dsn), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// AutoMigrate creates or updates every table the service uses.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Competition{},
		&models.Week{},
		&models.Match{},
		&models.Participation{},
		&models.Prediction{},
		&models.Notification{},
		&models.Player{},
	)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func preloadStructure(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Weeks", func(db *gorm.DB) *gorm.DB { return db.Order("number ASC") }).
		Preload("Weeks.Matches", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order ASC, scheduled_at ASC") })
}

func preloadPredictions(db *gorm.DB) *gorm.DB {
	return db.Preload("Predictions", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, week ASC") })
}

// --- competitions ---

// CreateCompetition writes each level with a plain INSERT. A reused id must
// fail, never re-parent the existing row.
func (s *GormStore) CreateCompetition(ctx context.Context, c *models.Competition) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(c).Error; err != nil {
			return err
		}
		for wi := range c.Weeks {
			w := &c.Weeks[wi]
			w.CompetitionID = c.ID
			if err := tx.Omit(clause.Associations).Create(w).Error; err != nil {
				return err
			}
			if len(w.Matches) == 0 {
				continue
			}
			for mi := range w.Matches {
				w.Matches[mi].CompetitionID = c.ID
				w.Matches[mi].WeekID = w.ID
			}
			if err := tx.Omit(clause.Associations).Create(&w.Matches).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

func (s *GormStore) GetCompetition(ctx context.Context, id string) (*models.Competition, error) {
	var c models.Competition
	if err := preloadStructure(s.DB.WithContext(ctx)).First(&c, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (s *GormStore) ListCompetitions(ctx context.Context, activeOnly bool) ([]models.Competition, error) {
	q := preloadStructure(s.DB.WithContext(ctx)).Order("start_date ASC")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var out []models.Competition
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *GormStore) StartMatch(ctx context.Context, competitionID, matchID string, at time.Time) (bool, error) {
	res := s.DB.WithContext(ctx).Model(&models.Match{}).
		Where("id = ? AND competition_id = ? AND status = ?", matchID, competitionID, models.MatchStatusPending).
		Updates(map[string]interface{}{
			"status":     models.MatchStatusInProgress,
			"started_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *GormStore) RecordResult(ctx context.Context, competitionID, matchID string, result models.MatchResult, at time.Time) (*models.Match, error) {
	var m models.Match
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&m, "id = ? AND competition_id = ?", matchID, competitionID).Error; err != nil {
			return notFound(err)
		}
		if m.Finished() && m.Result != nil {
			return nil
		}

		r := result
		m.Status = models.MatchStatusFinished
		m.Result = &r
		m.FinishedAt = &at
		if m.StartedAt == nil {
			m.StartedAt = &at
		}
		return tx.Model(&m).
			Select("status", "result", "finished_at", "started_at").
			Updates(&m).Error
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *GormStore) ClaimScoring(ctx context.Context, competitionID, matchID string) (bool, error) {
	res := s.DB.WithContext(ctx).Model(&models.Match{}).
		Where("id = ? AND competition_id = ? AND predictions_processed = ?", matchID, competitionID, false).
		Update("predictions_processed", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *GormStore) RepairResult(ctx context.Context, competitionID, matchID string, result models.MatchResult) error {
	r := result
	res := s.DB.WithContext(ctx).Model(&models.Match{ID: matchID}).
		Where("competition_id = ?", competitionID).
		Select("result").
		Updates(&models.Match{Result: &r})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) AdvanceWeek(ctx context.Context, competitionID string, from int) (bool, error) {
	advanced := false
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Competition{}).
			Where("id = ? AND current_week = ?", competitionID, from).
			Update("current_week", from+1)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		if err := tx.Model(&models.Week{}).
			Where("competition_id = ? AND number = ?", competitionID, from).
			Updates(map[string]interface{}{"is_active": false, "is_completed": true}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Week{}).
			Where("competition_id = ? AND number = ?", competitionID, from+1).
			Update("is_active", true).Error; err != nil {
			return err
		}
		advanced = true
		return nil
	})
	return advanced, err
}

func (s *GormStore) CompleteCompetition(ctx context.Context, competitionID string, winnerUserID *string, at time.Time) (bool, error) {
	completed := false
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Competition{}).
			Where("id = ? AND is_active = ?", competitionID, true).
			Updates(map[string]interface{}{
				"is_active":      false,
				"winner_user_id": winnerUserID,
				"completed_at":   at,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		if err := tx.Model(&models.Week{}).
			Where("competition_id = ?", competitionID).
			Updates(map[string]interface{}{"is_active": false, "is_completed": true}).Error; err != nil {
			return err
		}
		completed = true
		return nil
	})
	return completed, err
}

// --- participations ---

func (s *GormStore) CreateParticipationIfAbsent(ctx context.Context, p *models.Participation) (*models.Participation, bool, error) {
	res := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "competition_id"}},
		DoNothing: true,
	}).Create(p)
	if res.Error != nil {
		return nil, false, res.Error
	}
	stored, err := s.FindParticipation(ctx, p.UserID, p.CompetitionID)
	if err != nil {
		return nil, false, err
	}
	return stored, res.RowsAffected == 1, nil
}

func (s *GormStore) GetParticipation(ctx context.Context, id string) (*models.Participation, error) {
	var p models.Participation
	if err := preloadPredictions(s.DB.WithContext(ctx)).First(&p, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (s *GormStore) FindParticipation(ctx context.Context, userID, competitionID string) (*models.Participation, error) {
	var p models.Participation
	if err := preloadPredictions(s.DB.WithContext(ctx)).
		Where("user_id = ? AND competition_id = ?", userID, competitionID).
		First(&p).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (s *GormStore) ListParticipationsByCompetition(ctx context.Context, competitionID string) ([]models.Participation, error) {
	var out []models.Participation
	err := preloadPredictions(s.DB.WithContext(ctx)).
		Where("competition_id = ?", competitionID).
		Order("total_points DESC, joined_at ASC").
		Find(&out).Error
	return out, err
}

func (s *GormStore) ListParticipationsByUser(ctx context.Context, userID string) ([]models.Participation, error) {
	var out []models.Participation
	err := preloadPredictions(s.DB.WithContext(ctx)).
		Where("user_id = ?", userID).
		Order("joined_at DESC").
		Find(&out).Error
	return out, err
}

func (s *GormStore) CountParticipations(ctx context.Context, competitionID string) (int64, error) {
	var n int64
	err := s.DB.WithContext(ctx).Model(&models.Participation{}).
		Where("competition_id = ?", competitionID).
		Count(&n).Error
	return n, err
}

func (s *GormStore) UpdateParticipation(ctx context.Context, id string, mutate func(p *models.Participation) (bool, error)) (*models.Participation, error) {
	var p models.Participation
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, "id = ?", id).Error; err != nil {
			return notFound(err)
		}
		if err := tx.Where("participation_id = ?", id).
			Order("created_at ASC, week ASC").
			Find(&p.Predictions).Error; err != nil {
			return err
		}

		changed, err := mutate(&p)
		if err != nil || !changed {
			return err
		}

		if err := tx.Omit(clause.Associations).Save(&p).Error; err != nil {
			return err
		}
		if len(p.Predictions) == 0 {
			return nil
		}
		for i := range p.Predictions {
			p.Predictions[i].ParticipationID = p.ID
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"is_correct", "points_earned", "scored_at"}),
		}).Create(&p.Predictions).Error
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *GormStore) DeleteParticipation(ctx context.Context, id string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("participation_id = ?", id).Delete(&models.Prediction{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Participation{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// --- notifications ---

func (s *GormStore) CreateNotifications(ctx context.Context, ns []models.Notification) error {
	if len(ns) == 0 {
		return nil
	}
	return s.DB.WithContext(ctx).CreateInBatches(ns, 200).Error
}

func (s *GormStore) ListNotifications(ctx context.Context, userID string, q NotificationQuery) ([]models.Notification, int64, error) {
	base := s.DB.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ?", userID)
	if q.UnreadOnly {
		base = base.Where("is_read = ?", false)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var out []models.Notification
	err := base.Session(&gorm.Session{}).
		Order("created_at DESC").
		Limit(q.Limit).
		Offset(q.Offset).
		Find(&out).Error
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (s *GormStore) ListNotificationsSince(ctx context.Context, userID string, since time.Time) ([]models.Notification, error) {
	var out []models.Notification
	err := s.DB.WithContext(ctx).
		Where("user_id = ? AND created_at > ?", userID, since).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}

func (s *GormStore) CountUnread(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := s.DB.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&n).Error
	return n, err
}

func (s *GormStore) MarkRead(ctx context.Context, userID, id string) error {
	res := s.DB.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	res := s.DB.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

func (s *GormStore) DeleteNotificationsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.DB.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.Notification{})
	return res.RowsAffected, res.Error
}

// --- players ---

func (s *GormStore) GetPlayer(ctx context.Context, id string) (*models.Player, error) {
	var p models.Player
	if err := s.DB.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (s *GormStore) UpsertPlayers(ctx context.Context, players []models.Player) (int, error) {
	upserted := 0
	for i := range players {
		if err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"username", "email", "lives", "is_active", "updated_at"}),
		}).Create(&players[i]).Error; err != nil {
			return upserted, fmt.Errorf("upsert player %s: %w", players[i].ID, err)
		}
		upserted++
	}
	return upserted, nil
}

func (s *GormStore) LatestPlayerUpdate(ctx context.Context) (time.Time, error) {
	var latest *time.Time
	if err := s.DB.WithContext(ctx).Model(&models.Player{}).
		Select("MAX(updated_at)").
		Scan(&latest).Error; err != nil {
		return time.Time{}, err
	}
	if latest == nil {
		return time.Time{}, nil
	}
	return *latest, nil
}
