package core

// Logger is any service that can log app events.
// args may contain errors, extra data maps and the current Actor.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// Actor is the already authenticated and authorized caller of an operation.
type Actor struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

func (a Actor) IsZero() bool {
	return a.ID == 0
}
