package kalam

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// AddSubscriber records a newsletter signup. Signing up again with a known
// email is not an error; created reports whether a new row was added.
func (s *Store) AddSubscriber(ctx context.Context, sub Subscriber) (created bool, err error) {
	sub.ID = uuid.NewString()
	sub.Email = strings.ToLower(strings.TrimSpace(sub.Email))
	if sub.Source == "" {
		sub.Source = "newsletter"
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO subscribers (id, name, email, source, created_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(email) DO NOTHING`,
		sub.ID, sub.Name, sub.Email, sub.Source, formatTime(s.now()))
	if err != nil {
		return false, errors.Wrap(err, "insert subscriber")
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ListSubscribers returns every subscriber, newest first.
func (s *Store) ListSubscribers(ctx context.Context) ([]Subscriber, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, email, source, created_at FROM subscribers ORDER BY created_at DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "list subscribers")
	}
	defer rows.Close()
	subs := []Subscriber{}
	for rows.Next() {
		var (
			sub       Subscriber
			createdAt string
		)
		if err := rows.Scan(&sub.ID, &sub.Name, &sub.Email, &sub.Source, &createdAt); err != nil {
			return nil, errors.Wrap(err, "scan subscriber")
		}
		sub.CreatedAt = parseTime(createdAt)
		subs = append(subs, sub)
	}
	return subs, errors.Wrap(rows.Err(), "list subscribers")
}

// AddContactMessage stores a message sent through the contact form.
func (s *Store) AddContactMessage(ctx context.Context, m ContactMessage) (ContactMessage, error) {
	m.ID = uuid.NewString()
	m.CreatedAt = s.now()
	_, err := s.db.ExecContext(ctx, `INSERT INTO contact_messages (id, name, email, subject, message, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.Name, m.Email, m.Subject, m.Message, formatTime(m.CreatedAt))
	if err != nil {
		return ContactMessage{}, errors.Wrap(err, "insert contact message")
	}
	return m, nil
}

// ListContactMessages returns contact messages, newest first.
func (s *Store) ListContactMessages(ctx context.Context) ([]ContactMessage, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, email, subject, message, created_at FROM contact_messages ORDER BY created_at DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "list contact messages")
	}
	defer rows.Close()
	msgs := []ContactMessage{}
	for rows.Next() {
		var (
			m         ContactMessage
			createdAt string
		)
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.Subject, &m.Message, &createdAt); err != nil {
			return nil, errors.Wrap(err, "scan contact message")
		}
		m.CreatedAt = parseTime(createdAt)
		msgs = append(msgs, m)
	}
	return msgs, errors.Wrap(rows.Err(), "list contact messages")
}
