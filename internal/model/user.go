package model

// User is the profile of the signed-in account as returned by the backend.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
	Phone string `json:"phone,omitempty"`
}

// LoginCredentials is the body of a login attempt.
type LoginCredentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignupProfile is the body of a registration request.
type SignupProfile struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
	Role     Role   `json:"role"`
}
