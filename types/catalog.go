package types

import "time"

// Tag is a named catalog label.
type Tag struct {
	ID          string `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	Description string `json:"description" db:"description"`
}

// File records an uploaded image and who uploaded it.
type File struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email" db:"email"`
	ImageURL  string    `json:"imageUrl" db:"image_url"`
	Tag       string    `json:"tag,omitempty" db:"tag"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
