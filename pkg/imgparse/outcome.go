/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: outcome.go
Description: Tagged parse result for the IMG! decoder. An Outcome is either a
rejection carrying its Reason or an acceptance carrying the number of payload
bytes copied into the owned destination buffer.
*/

package imgparse

import "fmt"

// Reason names why an input was rejected
type Reason int

const (
	ReasonNone Reason = iota
	ReasonTooShort
	ReasonBadMagic
)

// String returns the string representation of a rejection reason
func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "None"
	case ReasonTooShort:
		return "TooShort"
	case ReasonBadMagic:
		return "BadMagic"
	default:
		return "Unknown"
	}
}

// MarshalText encodes the reason by name
func (r Reason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Outcome is the result of a single Parse call
type Outcome struct {
	Accepted    bool    `json:"accepted"`
	Reason      Reason  `json:"reason"`
	CopiedBytes int     `json:"copied_bytes"`
	Header      Header  `json:"header"`
	Payload     Payload `json:"payload"`

	// Data holds the copied payload. Its capacity equals
	// Payload.DeclaredSize; nil when nothing was allocated.
	Data []byte `json:"-"`
}

// Rejected builds a rejection outcome
func Rejected(reason Reason) Outcome {
	return Outcome{Reason: reason}
}

// AcceptedWith builds an acceptance outcome around the copied data
func AcceptedWith(h Header, p Payload, data []byte) Outcome {
	return Outcome{
		Accepted:    true,
		Reason:      ReasonNone,
		CopiedBytes: len(data),
		Header:      h,
		Payload:     p,
		Data:        data,
	}
}

// IsAccepted reports whether the input passed header validation
func (o Outcome) IsAccepted() bool {
	return o.Accepted
}

// Err maps a rejection onto its sentinel error, nil when accepted
func (o Outcome) Err() error {
	switch o.Reason {
	case ReasonTooShort:
		return ErrTooShort
	case ReasonBadMagic:
		return ErrBadMagic
	default:
		return nil
	}
}

// String renders the outcome the way the CLI prints it
func (o Outcome) String() string {
	if !o.Accepted {
		return fmt.Sprintf("Rejected(%s)", o.Reason)
	}
	return fmt.Sprintf("Accepted(copied_bytes=%d)", o.CopiedBytes)
}
