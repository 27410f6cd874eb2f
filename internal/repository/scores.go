package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/tmhk-chat/game-server-go/internal/game"
)

// ScoreRepository persists final game results. It is invoked exactly once per
// room, at the Finished transition.
type ScoreRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewScoreRepository creates a score repository.
func NewScoreRepository(db *DB, logger *zap.Logger) *ScoreRepository {
	return &ScoreRepository{db: db, logger: logger}
}

// RecordResult writes one row per participant. Automated stand-ins carry
// cpu- ids and are skipped; they have no durable identity.
func (r *ScoreRepository) RecordResult(ctx context.Context, roomID string, kind game.Kind, results []game.Result) error {
	batch := &pgx.Batch{}
	queued := 0
	for _, res := range results {
		if len(res.ParticipantID) >= 4 && res.ParticipantID[:4] == "cpu-" {
			continue
		}
		batch.Queue(
			`INSERT INTO game_scores (room_id, game_type, participant_id, score, is_winner, created_at)
			 VALUES ($1, $2, $3, $4, $5, now())`,
			roomID, string(kind), res.ParticipantID, res.Score, res.Winner,
		)
		queued++
	}
	if queued == 0 {
		return nil
	}

	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < queued; i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("record result for room %s: %w", roomID, err)
		}
	}

	r.logger.Debug("game result recorded",
		zap.String("room_id", roomID),
		zap.String("game_kind", string(kind)),
		zap.Int("rows", queued),
	)
	return nil
}
