// Package domain contains core concepts of the chat system.
// This file defines the authenticated Identity and the stored User behind it.
// No runtime, network, or UI logic should be added here.
package domain

import "time"

// Identity is the read-only view of an authenticated user.
// It is resolved once per credential verification.
type Identity struct {
	ID         string    `json:"_id"`
	FullName   string    `json:"fullName"`
	Email      string    `json:"email"`
	ProfilePic string    `json:"profilePic"`
	CreatedAt  time.Time `json:"createdAt"`
}

// User is the persisted account, including the password hash that never
// leaves the service layer.
type User struct {
	ID           string
	FullName     string
	Email        string
	PasswordHash string
	ProfilePic   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (u User) Identity() Identity {
	return Identity{
		ID:         u.ID,
		FullName:   u.FullName,
		Email:      u.Email,
		ProfilePic: u.ProfilePic,
		CreatedAt:  u.CreatedAt,
	}
}
