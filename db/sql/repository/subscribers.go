package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pipeaalzamora/el-blog-del-ceo/content"
	"github.com/pipeaalzamora/el-blog-del-ceo/newsletter"
)

const subscriberColumns = `id, email, categories, active, subscribed_at, unsubscribed_at, last_email_sent`

// Subscribers persists newsletter.Subscriber rows. Categories are stored as
// a comma-delimited list with leading and trailing commas so a single LIKE
// finds one category.
type Subscribers struct {
	db      *sql.DB
	dialect Dialect
}

var _ newsletter.Repository = (*Subscribers)(nil)

func NewSubscribers(db *sql.DB, dialect Dialect) *Subscribers {
	return &Subscribers{db: db, dialect: dialect}
}

func (r *Subscribers) Upsert(ctx context.Context, s newsletter.Subscriber) (newsletter.Subscriber, error) {
	query := r.dialect.bind(`INSERT INTO subscribers (id, email, categories, active, subscribed_at) VALUES (?, ?, ?, ?, ?)
ON CONFLICT (email) DO UPDATE SET categories = excluded.categories, active = excluded.active, unsubscribed_at = NULL`)
	if _, err := r.db.ExecContext(ctx, query, s.ID, s.Email, encodeCategories(s.Categories), true, s.SubscribedAt.UTC()); err != nil {
		return newsletter.Subscriber{}, fmt.Errorf("upsert subscriber: %w", err)
	}
	return r.byEmail(ctx, s.Email)
}

func (r *Subscribers) Deactivate(ctx context.Context, email string, at time.Time) (bool, error) {
	query := r.dialect.bind(`UPDATE subscribers SET active = ?, unsubscribed_at = ? WHERE email = ?`)
	res, err := r.db.ExecContext(ctx, query, false, at.UTC(), email)
	if err != nil {
		return false, fmt.Errorf("deactivate subscriber: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deactivate subscriber: %w", err)
	}
	return n > 0, nil
}

func (r *Subscribers) ListActive(ctx context.Context, category content.Category) ([]newsletter.Subscriber, error) {
	query := `SELECT ` + subscriberColumns + ` FROM subscribers WHERE active = ?`
	args := []any{true}
	if category != "" && category != content.All {
		query += ` AND (categories LIKE ? OR categories LIKE ?)`
		args = append(args, "%,"+string(category)+",%", "%,"+string(content.All)+",%")
	}
	query += ` ORDER BY subscribed_at, id`

	rows, err := r.db.QueryContext(ctx, r.dialect.bind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	defer rows.Close()

	out := []newsletter.Subscriber{}
	for rows.Next() {
		s, err := scanSubscriber(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	return out, nil
}

// MarkSent stamps last_email_sent on every id in one transaction.
func (r *Subscribers) MarkSent(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, r.dialect.bind(`UPDATE subscribers SET last_email_sent = ? WHERE id = ?`))
	if err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	defer stmt.Close()

	at = at.UTC()
	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, at, id); err != nil {
			return fmt.Errorf("mark sent %s: %w", id, err)
		}
	}
	return tx.Commit()
}

func (r *Subscribers) Stats(ctx context.Context) (newsletter.Stats, error) {
	query := r.dialect.bind(`SELECT COUNT(*), COALESCE(SUM(CASE WHEN active = ? THEN 1 ELSE 0 END), 0) FROM subscribers`)
	var st newsletter.Stats
	if err := r.db.QueryRowContext(ctx, query, true).Scan(&st.Total, &st.Active); err != nil {
		return newsletter.Stats{}, fmt.Errorf("subscriber stats: %w", err)
	}
	return st, nil
}

func (r *Subscribers) byEmail(ctx context.Context, email string) (newsletter.Subscriber, error) {
	query := r.dialect.bind(`SELECT ` + subscriberColumns + ` FROM subscribers WHERE email = ?`)
	s, err := scanSubscriber(r.db.QueryRowContext(ctx, query, email))
	if errors.Is(err, sql.ErrNoRows) {
		return newsletter.Subscriber{}, newsletter.ErrSubscriberNotFound
	}
	return s, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSubscriber(row scanner) (newsletter.Subscriber, error) {
	var (
		s            newsletter.Subscriber
		categories   string
		unsubscribed sql.NullTime
		lastSent     sql.NullTime
	)
	if err := row.Scan(&s.ID, &s.Email, &categories, &s.Active, &s.SubscribedAt, &unsubscribed, &lastSent); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s, err
		}
		return s, fmt.Errorf("scan subscriber: %w", err)
	}
	s.Categories = decodeCategories(categories)
	s.SubscribedAt = s.SubscribedAt.UTC()
	if unsubscribed.Valid {
		t := unsubscribed.Time.UTC()
		s.UnsubscribedAt = &t
	}
	if lastSent.Valid {
		t := lastSent.Time.UTC()
		s.LastEmailSent = &t
	}
	return s, nil
}

func encodeCategories(cs []content.Category) string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = string(c)
	}
	return "," + strings.Join(parts, ",") + ","
}

func decodeCategories(s string) []content.Category {
	var out []content.Category
	for _, part := range strings.Split(strings.Trim(s, ","), ",") {
		if part != "" {
			out = append(out, content.Category(part))
		}
	}
	return out
}
