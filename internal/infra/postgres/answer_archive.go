package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-sync-service/internal/domain"
)

// AnswerArchive copies submitted answers to Postgres for auditability. Rows
// are insert-only, mirroring the append-only in-memory log; insertion order
// is preserved by the serial primary key.
type AnswerArchive struct {
	pool *pgxpool.Pool
}

func NewAnswerArchive(pool *pgxpool.Pool) *AnswerArchive {
	return &AnswerArchive{pool: pool}
}

func (a *AnswerArchive) ArchiveAnswer(ctx context.Context, roomID string, answer domain.Answer) error {
	_, err := a.pool.Exec(ctx,
		`INSERT INTO room_answers (room_id, field_id, value, player_id) VALUES ($1, $2, $3, $4)`,
		roomID, answer.FieldID, answer.Value, answer.PlayerID)
	if err != nil {
		return fmt.Errorf("archive answer: %w", err)
	}
	return nil
}

// RoomAnswers returns every archived answer for a room in receipt order.
func (a *AnswerArchive) RoomAnswers(ctx context.Context, roomID string) ([]domain.Answer, error) {
	rows, err := a.pool.Query(ctx,
		`SELECT field_id, value, player_id FROM room_answers WHERE room_id=$1 ORDER BY id`,
		roomID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	defer rows.Close()

	var answers []domain.Answer
	for rows.Next() {
		var answer domain.Answer
		if err := rows.Scan(&answer.FieldID, &answer.Value, &answer.PlayerID); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		answers = append(answers, answer)
	}
	return answers, rows.Err()
}
