package service

import (
	"github.com/guardgate/guardgate/gateway/internal/domain/entity"
)

// Verdict is the pass-or-block outcome of one interceptor stage.
// Interceptors never panic or return errors to the pipeline; they return
// this value. Transforming stages (the PII masker, the schema enforcer)
// additionally return their output alongside it.
type Verdict struct {
	Blocked    bool
	Violations []entity.Violation
}

// Pass returns a passing verdict.
func Pass() Verdict {
	return Verdict{}
}

// Block returns a blocking verdict carrying the given violations.
// At least one violation is required for a block to be meaningful;
// callers collect before blocking.
func Block(violations ...entity.Violation) Verdict {
	return Verdict{
		Blocked:    true,
		Violations: violations,
	}
}
