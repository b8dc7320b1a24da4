package identity

import "time"

type Role string

const (
	RoleDeveloper Role = "developer"
	RoleMentor    Role = "mentor"
)

// StarterGrantCents is credited to every new profile at registration.
const StarterGrantCents int64 = 20000

// User is the domain representation of a registered profile.
// It mirrors the users table and should not include JSON annotations so it
// can be reused by different presentation layers.
type User struct {
	ID                 string
	Email              string
	PasswordHash       string
	Role               Role
	WalletBalanceCents int64
	CreatedAt          time.Time
}

// RegisterRequest contains profile registration data supplied by callers.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
}

// LoginRequest contains login credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
