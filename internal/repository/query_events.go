package repository

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/vibeflix/internal/domain"
)

// QueryEventsRepository persists the query journal.
type QueryEventsRepository struct {
	pool *pgxpool.Pool
}

const queryEventColumns = `
    id,
    session_id,
    query_trigger,
    kind,
    query,
    outcome,
    result_count,
    error_message,
    duration_ms,
    created_at
`

const (
	defaultEventLimit = 50
	maxEventLimit     = 200
)

// QueryEventFilters narrows Recent.
type QueryEventFilters struct {
	SessionID *string
	Outcome   *domain.QueryOutcome
	Kind      *domain.QueryKind
	Since     *time.Time
	Limit     int
	Cursor    *EventCursor
}

// EventCursor allows stable pagination by created_at/id.
type EventCursor struct {
	CreatedAt time.Time `json:"createdAt"`
	ID        int64     `json:"id"`
}

// QueryEventPage is one page of Recent results, newest first.
type QueryEventPage struct {
	Items      []domain.QueryEvent
	NextCursor *string
}

// Insert stores an event and returns it with its id and timestamp filled in.
func (r *QueryEventsRepository) Insert(ctx context.Context, ev domain.QueryEvent) (domain.QueryEvent, error) {
	var createdAt *time.Time
	if !ev.CreatedAt.IsZero() {
		t := ev.CreatedAt.UTC()
		createdAt = &t
	}

	query := fmt.Sprintf(`
        INSERT INTO query_events (session_id, query_trigger, kind, query, outcome, result_count, error_message, duration_ms, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,COALESCE($9, now()))
        RETURNING %s
    `, queryEventColumns)

	row := r.pool.QueryRow(ctx, query,
		ev.SessionID,
		string(ev.Trigger),
		string(ev.Kind),
		ev.Query,
		string(ev.Outcome),
		ev.ResultCount,
		ev.Error,
		ev.Duration.Milliseconds(),
		createdAt,
	)
	return scanQueryEvent(row)
}

// Get fetches one event.
func (r *QueryEventsRepository) Get(ctx context.Context, id int64) (domain.QueryEvent, error) {
	query := fmt.Sprintf(`SELECT %s FROM query_events WHERE id = $1`, queryEventColumns)
	ev, err := scanQueryEvent(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.QueryEvent{}, ErrNotFound
		}
		return domain.QueryEvent{}, err
	}
	return ev, nil
}

// Recent lists events newest first.
func (r *QueryEventsRepository) Recent(ctx context.Context, filters QueryEventFilters) (QueryEventPage, error) {
	if filters.Limit <= 0 {
		filters.Limit = defaultEventLimit
	} else if filters.Limit > maxEventLimit {
		filters.Limit = maxEventLimit
	}

	where := make([]string, 0)
	args := make([]interface{}, 0)
	arg := func(value interface{}) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	if filters.SessionID != nil && strings.TrimSpace(*filters.SessionID) != "" {
		where = append(where, fmt.Sprintf("session_id = %s", arg(strings.TrimSpace(*filters.SessionID))))
	}
	if filters.Outcome != nil {
		where = append(where, fmt.Sprintf("outcome = %s", arg(string(*filters.Outcome))))
	}
	if filters.Kind != nil {
		where = append(where, fmt.Sprintf("kind = %s", arg(string(*filters.Kind))))
	}
	if filters.Since != nil {
		where = append(where, fmt.Sprintf("created_at >= %s", arg(filters.Since.UTC())))
	}
	if filters.Cursor != nil {
		cursorCreated := arg(filters.Cursor.CreatedAt)
		cursorID := arg(filters.Cursor.ID)
		where = append(where, fmt.Sprintf("(created_at, id) < (%s, %s)", cursorCreated, cursorID))
	}

	queryBuilder := strings.Builder{}
	queryBuilder.WriteString("SELECT ")
	queryBuilder.WriteString(queryEventColumns)
	queryBuilder.WriteString(" FROM query_events")
	if len(where) > 0 {
		queryBuilder.WriteString(" WHERE ")
		queryBuilder.WriteString(strings.Join(where, " AND "))
	}
	queryBuilder.WriteString(" ORDER BY created_at DESC, id DESC")
	queryBuilder.WriteString(fmt.Sprintf(" LIMIT %d", filters.Limit))

	rows, err := r.pool.Query(ctx, queryBuilder.String(), args...)
	if err != nil {
		return QueryEventPage{}, err
	}
	defer rows.Close()

	items := make([]domain.QueryEvent, 0)
	for rows.Next() {
		ev, err := scanQueryEvent(rows)
		if err != nil {
			return QueryEventPage{}, err
		}
		items = append(items, ev)
	}
	if err := rows.Err(); err != nil {
		return QueryEventPage{}, err
	}

	var nextCursor *string
	if len(items) == filters.Limit {
		last := items[len(items)-1]
		token, err := encodeCursor(EventCursor{CreatedAt: last.CreatedAt, ID: last.ID})
		if err != nil {
			return QueryEventPage{}, err
		}
		nextCursor = &token
	}
	return QueryEventPage{Items: items, NextCursor: nextCursor}, nil
}

// Summary counts events per outcome since the given time. A zero time
// counts everything.
func (r *QueryEventsRepository) Summary(ctx context.Context, since time.Time) ([]domain.OutcomeCount, error) {
	query := `SELECT outcome, COUNT(*) FROM query_events`
	args := []interface{}{}
	if !since.IsZero() {
		query += ` WHERE created_at >= $1`
		args = append(args, since.UTC())
	}
	query += ` GROUP BY outcome ORDER BY outcome`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make([]domain.OutcomeCount, 0)
	for rows.Next() {
		var (
			outcome string
			c       domain.OutcomeCount
		)
		if err := rows.Scan(&outcome, &c.Count); err != nil {
			return nil, err
		}
		c.Outcome = domain.QueryOutcome(outcome)
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// DeleteBefore prunes events older than cutoff and reports how many went.
func (r *QueryEventsRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM query_events WHERE created_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanQueryEvent(row pgx.Row) (domain.QueryEvent, error) {
	var (
		ev         domain.QueryEvent
		trigger    string
		kind       string
		outcome    string
		durationMS int64
	)
	err := row.Scan(
		&ev.ID,
		&ev.SessionID,
		&trigger,
		&kind,
		&ev.Query,
		&outcome,
		&ev.ResultCount,
		&ev.Error,
		&durationMS,
		&ev.CreatedAt,
	)
	if err != nil {
		return domain.QueryEvent{}, err
	}
	ev.Trigger = domain.QueryTrigger(trigger)
	ev.Kind = domain.QueryKind(kind)
	ev.Outcome = domain.QueryOutcome(outcome)
	ev.Duration = time.Duration(durationMS) * time.Millisecond
	ev.CreatedAt = ev.CreatedAt.UTC()
	return ev, nil
}

func encodeCursor(c EventCursor) (string, error) {
	payload, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(payload), nil
}

// DecodeCursor parses a cursor token into an EventCursor.
func DecodeCursor(token string) (*EventCursor, error) {
	if token == "" {
		return nil, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor: %w", err)
	}
	var cursor EventCursor
	if err := json.Unmarshal(data, &cursor); err != nil {
		return nil, fmt.Errorf("invalid cursor payload: %w", err)
	}
	return &cursor, nil
}
