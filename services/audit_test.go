package services

import (
	"fmt"
	"testing"

	"github.com/chm413/mochi-link/models"
	"github.com/chm413/mochi-link/pkg"
)

func TestClassifyResult_NilIsSuccess(t *testing.T) {
	if got := classifyResult(nil); got != models.AuditSuccess {
		t.Fatalf("expected success, got %v", got)
	}
}

func TestClassifyResult_DomainErrorsAreFailure(t *testing.T) {
	domainErrs := []error{
		pkg.ErrBadRequest,
		pkg.ErrUnauthorized,
		pkg.ErrForbidden,
		pkg.ErrNotFound,
		pkg.ErrAlreadyExists,
		pkg.ErrConflict,
		pkg.ErrRateLimited,
		pkg.ErrTimeout,
		pkg.ErrProtocol,
		pkg.ErrServerOffline,
		pkg.ErrConnectionClosed,
	}
	for _, err := range domainErrs {
		if got := classifyResult(err); got != models.AuditFailure {
			t.Fatalf("expected %v to classify as failure, got %v", err, got)
		}
	}
}

func TestClassifyResult_WrappedDomainErrorIsFailure(t *testing.T) {
	wrapped := fmt.Errorf("%w: command %q is not on this server's allowlist", pkg.ErrForbidden, "stop")
	if got := classifyResult(wrapped); got != models.AuditFailure {
		t.Fatalf("expected wrapped forbidden error to classify as failure, got %v", got)
	}
}

func TestClassifyResult_InternalErrorIsError(t *testing.T) {
	if got := classifyResult(pkg.ErrInternal); got != models.AuditError {
		t.Fatalf("expected ErrInternal to classify as error, got %v", got)
	}
}

func TestClassifyResult_UnrecognizedErrorIsError(t *testing.T) {
	if got := classifyResult(fmt.Errorf("connector returned a malformed frame")); got != models.AuditError {
		t.Fatalf("expected an unrecognized error to classify as error, got %v", got)
	}
}
