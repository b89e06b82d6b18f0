package authflow

// Mode selects the wording of the flow. Bootstrap and refresh perform the
// same exchange.
type Mode int

const (
	// ModeBootstrap obtains the first token.
	ModeBootstrap Mode = iota
	// ModeRefresh replaces an existing token.
	ModeRefresh
)

func (m Mode) String() string {
	if m == ModeRefresh {
		return "refresh"
	}
	return "bootstrap"
}

func (m Mode) title() string {
	if m == ModeRefresh {
		return "Dida365 Token Refresh"
	}
	return "Dida365 Authorization"
}

func (m Mode) successHeading() string {
	if m == ModeRefresh {
		return "Token refreshed"
	}
	return "Authorization successful"
}
