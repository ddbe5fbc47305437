package model

// Access levels used by the backend.
const (
	LevelUser      = 0
	LevelAdmin     = 1
	LevelSiteAdmin = 2
)

// User is an account as listed by the backend.
type User struct {
	Username  string    `json:"username"`
	Level     int       `json:"level"`
	CreatedAt Timestamp `json:"createdAt"`
	UpdatedAt Timestamp `json:"updatedAt"`
}
