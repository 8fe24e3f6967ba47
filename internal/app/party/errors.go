package party

// Error is a rejection returned to the caller of a party operation.
// Code is machine readable; Message is optional detail.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

const (
	CodeNotMember           = "party.notMember"
	CodeNotLeader           = "party.notLeader"
	CodeUnknownMember       = "party.unknownMember"
	CodeEmptyGameFinder     = "party.emptyGameFinder"
	CodeStaleSettings       = "party.staleSettings"
	CodeKickLeader          = "party.kickLeader"
	CodeNotAccepted         = "party.notAccepted"
	CodePolicyDenied        = "party.policyDenied"
	CodeNoInvitationChannel = "party.noInvitationChannel"
	CodeUnknownRecipient    = "party.unknownRecipient"
	CodeAlreadyMember       = "party.alreadyMember"
	CodeInvitationCanceled  = "party.invitationCanceled"
	CodeClosed              = "party.closed"
)

var (
	ErrNotMember           = &Error{Code: CodeNotMember}
	ErrNotLeader           = &Error{Code: CodeNotLeader}
	ErrUnknownMember       = &Error{Code: CodeUnknownMember}
	ErrEmptyGameFinder     = &Error{Code: CodeEmptyGameFinder}
	ErrStaleSettings       = &Error{Code: CodeStaleSettings}
	ErrKickLeader          = &Error{Code: CodeKickLeader}
	ErrNotAccepted         = &Error{Code: CodeNotAccepted}
	ErrPolicyDenied        = &Error{Code: CodePolicyDenied}
	ErrNoInvitationChannel = &Error{Code: CodeNoInvitationChannel}
	ErrUnknownRecipient    = &Error{Code: CodeUnknownRecipient}
	ErrAlreadyMember       = &Error{Code: CodeAlreadyMember}
	ErrInvitationCanceled  = &Error{Code: CodeInvitationCanceled}
	ErrClosed              = &Error{Code: CodeClosed}
)

func policyDenied(msg string) error {
	return &Error{Code: CodePolicyDenied, Message: msg}
}
