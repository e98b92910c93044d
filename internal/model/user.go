package model

// User is one credential store record.  The JSON shape matches the users
// file: an array of {username, passwordHash}.
type User struct {
	Username     string `json:"username"`
	PasswordHash string `json:"passwordHash"`
}
