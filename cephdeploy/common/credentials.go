package common

// Credentials holds everything needed to log in to a host and escalate on it.
type Credentials struct {
	User          string
	Password      string
	KeyPassphrase string
	SudoPassword  string
}

// IsRoot reports whether commands already run as root, making sudo unnecessary.
func (c Credentials) IsRoot() bool {
	return c.User == "root"
}
