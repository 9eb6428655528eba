package sqlstore

import (
	"database/sql"
	"time"

	"github.com/MrEthical07/authcore/password"
)

// User is a row of the users table.
type User struct {
	ID           string
	EmailAddress string
	PasswordHash sql.Null[password.Hashed]
	CreatedAt    time.Time
}

func (u *User) UserID() string { return u.ID }
func (u *User) Email() string  { return u.EmailAddress }

func (u *User) HashedPassword() (password.Hashed, bool) {
	return u.PasswordHash.V, u.PasswordHash.Valid
}

func (u *User) SetHashedPassword(h password.Hashed) {
	u.PasswordHash = sql.Null[password.Hashed]{V: h, Valid: !h.IsZero()}
}
