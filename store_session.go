package kalam

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/kalam-press/kalam/auth"
)

var _ auth.SessionStore = (*Store)(nil)

// LoadAuthSession returns the persisted admin session, or nil when there is none.
func (s *Store) LoadAuthSession(ctx context.Context) (*auth.Session, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM auth_session WHERE id = 1`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "load auth session")
	}
	var sess auth.Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		// A corrupt row is treated as signed out.
		return nil, nil
	}
	return &sess, nil
}

// SaveAuthSession persists the admin session, replacing any previous one.
func (s *Store) SaveAuthSession(ctx context.Context, sess auth.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return errors.Wrap(err, "encode auth session")
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO auth_session (id, data) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data`, string(data))
	return errors.Wrap(err, "save auth session")
}

// ClearAuthSession removes the persisted admin session.
func (s *Store) ClearAuthSession(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM auth_session`)
	return errors.Wrap(err, "clear auth session")
}
