package directory

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

// SQLDirectory reads the CRM's users, services and assignment tables.
type SQLDirectory struct {
	db *sqlx.DB
}

// NewSQLDirectory constructs a SQLDirectory.
func NewSQLDirectory(db *sqlx.DB) *SQLDirectory {
	return &SQLDirectory{db: db}
}

// User fetches a single user.
func (d *SQLDirectory) User(ctx context.Context, userID int) (User, error) {
	var u User
	err := d.db.GetContext(ctx, &u, `SELECT id, name, role FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	return u, err
}

// UsersByIDs fetches users in one query; unknown ids are silently dropped.
func (d *SQLDirectory) UsersByIDs(ctx context.Context, ids []int) ([]User, error) {
	if len(ids) == 0 {
		return []User{}, nil
	}
	query, args, err := sqlx.In(`SELECT id, name, role FROM users WHERE id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	var users []User
	err = d.db.SelectContext(ctx, &users, d.db.Rebind(query), args...)
	return users, err
}

// ServiceExists checks that a service row exists.
func (d *SQLDirectory) ServiceExists(ctx context.Context, serviceID int) (bool, error) {
	var exists bool
	err := d.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM services WHERE id=$1)`, serviceID)
	return exists, err
}

// ServiceStaff returns the ids of employees currently assigned to the service.
// Assignment is looked up at call time, never cached, so staffing changes take
// effect mid-conversation.
func (d *SQLDirectory) ServiceStaff(ctx context.Context, serviceID int) ([]int, error) {
	var ids []int
	err := d.db.SelectContext(ctx, &ids, `SELECT user_id FROM service_assignments WHERE service_id=$1 ORDER BY user_id`, serviceID)
	return ids, err
}

// ServiceClient returns the id of the client user the service belongs to.
func (d *SQLDirectory) ServiceClient(ctx context.Context, serviceID int) (int, error) {
	var clientID int
	err := d.db.GetContext(ctx, &clientID, `SELECT client_id FROM services WHERE id=$1`, serviceID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrServiceNotFound
	}
	return clientID, err
}

// AdminIDs returns every admin-like user in the organization.
func (d *SQLDirectory) AdminIDs(ctx context.Context) ([]int, error) {
	var ids []int
	err := d.db.SelectContext(ctx, &ids, `SELECT id FROM users WHERE role IN ('admin', 'manager') ORDER BY id`)
	return ids, err
}
