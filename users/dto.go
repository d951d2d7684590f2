// This file, `dto.go`, defines the request and response bodies of the account endpoints.
package users

import "io"

// RegisterRequest is the body of POST /users.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,max=255" example:"budi"`
	Email    string `json:"email" validate:"required,email,max=255" example:"budi@example.com"`
	Password string `json:"password" validate:"required,maxbytes=72" example:"rahasia"`
}

// LoginRequest is the body of POST /login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required" example:"budi@example.com"`
	Password string `json:"password" validate:"required" example:"rahasia"`
}

// LoginResponse carries the issued session token.
type LoginResponse struct {
	AccessToken string `json:"accessToken"`
	Role        string `json:"role" example:"user"`
}

// UpdatePasswordRequest is the body of PATCH /password.
type UpdatePasswordRequest struct {
	Email    string `json:"email" validate:"required" example:"budi@example.com"`
	Password string `json:"password" validate:"required,maxbytes=72" example:"rahasia-baru"`
}

// ProfileInput holds the text fields of a profile update. Empty values clear the column.
type ProfileInput struct {
	Name   string `json:"name" validate:"max=255"`
	Email  string `json:"email" validate:"omitempty,email,max=255"`
	Phone  string `json:"phone" validate:"max=50"`
	Alamat string `json:"alamat"`
}

// ImageUpload is an uploaded file as received from the client. Size is the size the
// client declared; the content is still checked against the limit when read.
type ImageUpload struct {
	Filename string
	Size     int64
	Content  io.Reader
}
