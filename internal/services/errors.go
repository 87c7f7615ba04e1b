package services

import "errors"

// Validation failures.
var (
	ErrMissingFields    = errors.New("required fields are missing")
	ErrEmailRequired    = errors.New("email is required")
	ErrOtpRequired      = errors.New("otp is required")
	ErrInvalidEmail     = errors.New("invalid email format")
	ErrWeakPassword     = errors.New("password is not strong enough")
	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrInvalidRole      = errors.New("invalid account type")
)

// Credential lifecycle failures.
var (
	ErrAccountExists        = errors.New("account already exists")
	ErrOtpExpiredOrMissing  = errors.New("otp expired or not found")
	ErrOtpMismatch          = errors.New("otp does not match")
	ErrUserNotFound         = errors.New("user not found")
	ErrWrongPassword        = errors.New("wrong password")
	ErrNoAccountFound       = errors.New("no account found for email")
	ErrInvalidOrExpiredLink = errors.New("invalid or expired reset link")
)

// Dependency failures.
var (
	ErrHashingFailed       = errors.New("password hashing failed")
	ErrEmailDeliveryFailed = errors.New("email delivery failed")
	ErrSignupFailed        = errors.New("signup failed")
)

// Catalog and upload failures.
var (
	ErrTagExists           = errors.New("tag already exists")
	ErrFileRequired        = errors.New("file is required")
	ErrFileTooLarge        = errors.New("file too large")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrUploadFailed        = errors.New("upload failed")
)
