package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists conversations in the conversations table.
type PostgresStore struct {
	db  rowQuerier
	now Clock
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore returns a store backed by pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("conversation: pgx pool required")
	}
	return &PostgresStore{db: pool, now: time.Now}
}

func newPostgresStoreWithExec(db rowQuerier, now Clock) *PostgresStore {
	if db == nil {
		panic("conversation: exec required")
	}
	if now == nil {
		now = time.Now
	}
	return &PostgresStore{db: db, now: now}
}

const conversationColumns = `state, description, latitude, longitude, version, created_at, updated_at`

func (s *PostgresStore) Get(ctx context.Context, senderID string) (Conversation, error) {
	now := s.now().UTC()
	insert := `
		INSERT INTO conversations (sender_id, state, version, created_at, updated_at)
		VALUES ($1, $2, 0, $3, $3)
		ON CONFLICT (sender_id) DO NOTHING
	`
	if _, err := s.db.Exec(ctx, insert, senderID, StateAwaitingDescription.String(), now); err != nil {
		return Conversation{}, fmt.Errorf("conversation: create conversation: %w", err)
	}

	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE sender_id = $1`
	conv, err := scanConversation(s.db.QueryRow(ctx, query, senderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Conversation{}, ErrConversationNotFound
		}
		return Conversation{}, fmt.Errorf("conversation: load conversation: %w", err)
	}
	conv.SenderID = senderID
	return conv, nil
}

func (s *PostgresStore) SetState(ctx context.Context, senderID string, state State) error {
	return s.update(ctx, senderID, `state = $2`, state.String())
}

func (s *PostgresStore) SetDescription(ctx context.Context, senderID string, description string) error {
	return s.update(ctx, senderID, `description = $2`, description)
}

func (s *PostgresStore) SetLocation(ctx context.Context, senderID string, loc Location) error {
	return s.update(ctx, senderID, `latitude = $2, longitude = $3`, loc.Latitude, loc.Longitude)
}

// Finalize clears the captured fields and returns the row as it was, in one statement.
func (s *PostgresStore) Finalize(ctx context.Context, senderID string) (Conversation, error) {
	query := `
		WITH prev AS (
			SELECT sender_id, ` + conversationColumns + `
			FROM conversations
			WHERE sender_id = $1
			FOR UPDATE
		)
		UPDATE conversations c
		SET state = $2, description = NULL, latitude = NULL, longitude = NULL,
			version = c.version + 1, updated_at = $3
		FROM prev
		WHERE c.sender_id = prev.sender_id
		RETURNING prev.state, prev.description, prev.latitude, prev.longitude,
			prev.version, prev.created_at, prev.updated_at
	`
	conv, err := scanConversation(s.db.QueryRow(ctx, query, senderID, StateComplete.String(), s.now().UTC()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Conversation{}, ErrConversationNotFound
		}
		return Conversation{}, fmt.Errorf("conversation: finalize conversation: %w", err)
	}
	conv.SenderID = senderID
	return conv, nil
}

func (s *PostgresStore) update(ctx context.Context, senderID, set string, args ...any) error {
	next := len(args) + 2
	query := fmt.Sprintf(`
		UPDATE conversations
		SET %s, version = version + 1, updated_at = $%d
		WHERE sender_id = $1
	`, set, next)
	params := make([]any, 0, len(args)+2)
	params = append(params, senderID)
	params = append(params, args...)
	params = append(params, s.now().UTC())

	ct, err := s.db.Exec(ctx, query, params...)
	if err != nil {
		return fmt.Errorf("conversation: update conversation: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrConversationNotFound
	}
	return nil
}

func scanConversation(row pgx.Row) (Conversation, error) {
	var (
		conv        Conversation
		state       string
		description *string
		lat, lon    *float64
	)
	if err := row.Scan(&state, &description, &lat, &lon, &conv.Version, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
		return Conversation{}, err
	}
	parsed, err := ParseState(state)
	if err != nil {
		return Conversation{}, err
	}
	conv.State = parsed
	conv.Description = description
	if lat != nil && lon != nil {
		conv.Location = &Location{Latitude: *lat, Longitude: *lon}
	}
	return conv, nil
}
