package models

import "time"

// User holds the per-account state the discovery walker needs: the opaque
// credential for the share-code resolution API and the forward-walk cursor.
// KnownCode only ever advances; it is never rewound.
type User struct {
	AccountID            string    `db:"account_id"`
	DisplayName          string    `db:"display_name"`
	ResolutionCredential string    `db:"resolution_credential"`
	KnownCode            string    `db:"known_code"`
	CreatedAt            time.Time `db:"created_at"`
	UpdatedAt            time.Time `db:"updated_at"`
}

// Eligible reports whether the walker can resolve matches for this account.
func (u *User) Eligible() bool {
	return u.ResolutionCredential != "" && u.KnownCode != ""
}
