// internal/domain/models/user.go
package models

import "time"

// User mirrors an identity-provider user. Email is the resolved primary address.
type User struct {
	ID        string  `bson:"_id" json:"id"`
	Email     string  `bson:"email" json:"email"`
	FirstName *string `bson:"first_name,omitempty" json:"firstName,omitempty"`
	LastName  *string `bson:"last_name,omitempty" json:"lastName,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"-"`
	UpdatedAt time.Time `bson:"updated_at" json:"-"`
}
