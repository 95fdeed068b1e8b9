package store

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// Kind classifies a persistence failure
type Kind int

const (
	KindNone Kind = iota
	// Duplicate means the identity key is already present
	Duplicate
	// ConstraintViolation is any other integrity constraint failure
	ConstraintViolation
	// TransientFailure covers everything else (connectivity, timeouts, aborted transactions)
	TransientFailure
)

func (k Kind) String() string {
	switch k {
	case Duplicate:
		return "duplicate"
	case ConstraintViolation:
		return "constraint_violation"
	case TransientFailure:
		return "transient_failure"
	default:
		return "none"
	}
}

// ErrDuplicate is returned when an idempotent insert found an existing row
var ErrDuplicate = errors.New("row already exists")

// PersistError is a classified store error
type PersistError struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// SQLSTATE codes, see https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	uniqueViolation          pq.ErrorCode  = "23505"
	integrityConstraintClass pq.ErrorClass = "23"
)

// Classify maps err onto a Kind. A nil error is KindNone.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}

	var pe *PersistError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if errors.Is(err, ErrDuplicate) {
		return Duplicate
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code == uniqueViolation {
			return Duplicate
		}
		if pqErr.Code.Class() == integrityConstraintClass {
			return ConstraintViolation
		}
	}
	return TransientFailure
}

func classified(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistError{Kind: Classify(err), Op: op, Err: err}
}
