package action

import (
	"github.com/bluesky-social/marshal/models"
)

// Contact is how a reporter can be reached: either a registered account or
// the bare address given with an anonymous report.
type Contact interface {
	// Address returns the address to mail, and false when there is none.
	Address() (string, bool)
	isContact()
}

type Registered struct {
	Account *models.Account
}

func (c Registered) Address() (string, bool) {
	if c.Account == nil || c.Account.Email == "" {
		return "", false
	}
	return c.Account.Email, true
}

func (Registered) isContact() {}

type Anonymous struct {
	Email string
}

func (c Anonymous) Address() (string, bool) {
	return c.Email, c.Email != ""
}

func (Anonymous) isContact() {}

// ContactFor resolves who filed the report.
func ContactFor(r *models.Report) Contact {
	if r.Reporter != nil {
		return Registered{Account: r.Reporter}
	}
	return Anonymous{Email: r.ReporterEmail}
}
