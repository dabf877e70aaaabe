package directory

import (
	"context"
	"errors"

	"github.com/mander92/syuso-chat/internal/models"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrServiceNotFound = errors.New("service not found")
)

// User is a directory entry for a CRM user.
type User struct {
	ID   int         `db:"id" json:"id"`
	Name string      `db:"name" json:"name"`
	Role models.Role `db:"role" json:"role"`
}

// Directory exposes the scheduling app's user and service data. The chat
// subsystem only reads; ownership of these tables stays with the CRM.
type Directory interface {
	User(ctx context.Context, userID int) (User, error)
	UsersByIDs(ctx context.Context, ids []int) ([]User, error)
	ServiceExists(ctx context.Context, serviceID int) (bool, error)
	ServiceStaff(ctx context.Context, serviceID int) ([]int, error)
	ServiceClient(ctx context.Context, serviceID int) (int, error)
	AdminIDs(ctx context.Context) ([]int, error)
}
