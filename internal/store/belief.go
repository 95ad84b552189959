package store

import (
	"context"
	"errors"

	"github.com/Harshitk-cp/beliefgraph/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresBeliefStore reads beliefs owned by the memory platform's database.
type PostgresBeliefStore struct {
	db *pgxpool.Pool
}

func NewPostgresBeliefStore(db *pgxpool.Pool) *PostgresBeliefStore {
	return &PostgresBeliefStore{db: db}
}

func (s *PostgresBeliefStore) GetByID(ctx context.Context, id string) (*domain.Belief, error) {
	b := &domain.Belief{}
	var category *string
	err := s.db.QueryRow(ctx,
		`SELECT id, agent_id, statement, confidence, active, category, created_at
		 FROM beliefs WHERE id = $1`, id,
	).Scan(&b.ID, &b.AgentID, &b.Statement, &b.Confidence, &b.Active, &category, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if category != nil {
		b.Category = *category
	}
	return b, nil
}

func (s *PostgresBeliefStore) ListByAgent(ctx context.Context, agentID string) ([]domain.Belief, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, agent_id, statement, confidence, active, category, created_at
		 FROM beliefs WHERE agent_id = $1
		 ORDER BY id`, agentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var beliefs []domain.Belief
	for rows.Next() {
		var b domain.Belief
		var category *string
		if err := rows.Scan(&b.ID, &b.AgentID, &b.Statement, &b.Confidence, &b.Active, &category, &b.CreatedAt); err != nil {
			return nil, err
		}
		if category != nil {
			b.Category = *category
		}
		beliefs = append(beliefs, b)
	}
	return beliefs, rows.Err()
}

func (s *PostgresBeliefStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
