// Package command implements the uplink grammar
//
//	SATID-COMMAND&PATH@DATA#HMAC
//
// and the security checks every inbound message must pass before any handler
// runs. Parsing is a pure function per message; dispatch side effects live
// with the registered handlers, not here.
package command

import (
	"fmt"
	"strings"

	"github.com/edsonpavoni/orbitalTemple/internal/auth"
)

// RejectReason classifies why a message was refused. Ground operators need
// to distinguish "malformed" from "unauthorized", so every reason is
// reported distinctly.
type RejectReason int

const (
	ReasonTooShort RejectReason = iota + 1
	ReasonTooLong
	ReasonMissingDelimiter
	ReasonBadOrder
	ReasonWrongSatID
	ReasonBadCommandChars
	ReasonPathTraversal
	ReasonAuthFailed
)

func (r RejectReason) String() string {
	switch r {
	case ReasonTooShort:
		return "too_short"
	case ReasonTooLong:
		return "too_long"
	case ReasonMissingDelimiter:
		return "missing_delimiter"
	case ReasonBadOrder:
		return "bad_order"
	case ReasonWrongSatID:
		return "wrong_sat_id"
	case ReasonBadCommandChars:
		return "bad_command_chars"
	case ReasonPathTraversal:
		return "path_traversal"
	case ReasonAuthFailed:
		return "auth_failed"
	default:
		return "unknown"
	}
}

// Response returns the downlink line for this rejection, or "" when policy
// is to stay silent. Structural and identity failures get no reply so the
// parser cannot be used as an oracle by someone probing the link; failures
// of messages that at least named us correctly are reported verbosely.
func (r RejectReason) Response() string {
	switch r {
	case ReasonPathTraversal:
		return "ERR:PATH_TRAVERSAL_BLOCKED"
	case ReasonAuthFailed:
		return "ERR:AUTH_FAILED"
	default:
		return ""
	}
}

// RejectError carries the reason a message failed validation.
type RejectError struct {
	Reason RejectReason
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("command rejected: %s", e.Reason)
}

// Message is a fully validated, authenticated uplink command.
type Message struct {
	Command string
	Path    string
	Data    string
}

// MinLength is the bare delimiter skeleton "X-Y&@#Z".
const MinLength = 7

// DefaultMaxLength caps uplink messages; anything longer than one LoRa
// payload is garbage or an attack.
const DefaultMaxLength = 500

// Parser validates raw uplink strings against the configured satellite
// identity and signing key.
type Parser struct {
	SatID  string
	Signer *auth.Signer
	MaxLen int
}

// NewParser builds a parser with the default length cap.
func NewParser(satID string, signer *auth.Signer) *Parser {
	return &Parser{SatID: satID, Signer: signer, MaxLen: DefaultMaxLength}
}

// Parse validates raw and returns the decoded message. On failure the error
// is a *RejectError with a specific reason.
//
// Delimiter convention (DATA may itself contain '@' and '#'): the satellite
// ID ends at the first '-', the command at the first '&', the path at the
// first '@' after that, and the tag is whatever follows the LAST '#'. The
// HMAC covers everything before that last '#'. Ordering of the four
// structural delimiters must be strictly left to right.
func (p *Parser) Parse(raw string) (Message, error) {
	if len(raw) < MinLength {
		return Message{}, &RejectError{ReasonTooShort}
	}
	max := p.MaxLen
	if max <= 0 {
		max = DefaultMaxLength
	}
	if len(raw) > max {
		return Message{}, &RejectError{ReasonTooLong}
	}

	dash := strings.IndexByte(raw, '-')
	amp := strings.IndexByte(raw, '&')
	at := strings.IndexByte(raw, '@')
	hash := strings.LastIndexByte(raw, '#')
	if dash == -1 || amp == -1 || at == -1 || hash == -1 {
		return Message{}, &RejectError{ReasonMissingDelimiter}
	}
	// Strict ordering kills a whole class of parser-confusion inputs
	// before any field is even extracted.
	if !(dash < amp && amp < at && at < hash) {
		return Message{}, &RejectError{ReasonBadOrder}
	}

	satID := raw[:dash]
	cmd := raw[dash+1 : amp]
	path := raw[amp+1 : at]
	data := raw[at+1 : hash]
	tag := raw[hash+1:]

	if satID != p.SatID {
		return Message{}, &RejectError{ReasonWrongSatID}
	}
	if cmd == "" || !isAlnum(cmd) {
		return Message{}, &RejectError{ReasonBadCommandChars}
	}
	// Syntactic traversal check only; the file store re-checks against
	// its own root when it resolves the path.
	if strings.Contains(path, "..") {
		return Message{}, &RejectError{ReasonPathTraversal}
	}
	if p.Signer == nil || !p.Signer.Verify([]byte(raw[:hash]), tag) {
		return Message{}, &RejectError{ReasonAuthFailed}
	}

	return Message{Command: cmd, Path: path, Data: data}, nil
}

func isAlnum(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}
