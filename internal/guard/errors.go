package guard

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/quanly-erp/quanly/internal/shared"
)

var (
	// ErrUnauthenticated means no valid session accompanied the request.
	ErrUnauthenticated = errors.New("Unauthorized")
	// ErrAccountInactive means the employee record is disabled.
	ErrAccountInactive = errors.New("Account is inactive")
	// ErrEmployeeNotFound means the identity has no employee record.
	ErrEmployeeNotFound = errors.New("Employee not found")
	// ErrRoleResolution means the employee's role could not be resolved.
	ErrRoleResolution = errors.New("Role could not be resolved")
)

// PermissionDeniedError reports the permission the caller lacked.
type PermissionDeniedError struct {
	Permission string
}

func (e *PermissionDeniedError) Error() string {
	return "Permission denied: " + e.Permission
}

// UpstreamError wraps identity provider or data store failures.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream failure during %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Kind classifies guard failures.
type Kind int

// Failure kinds, one per member of the error taxonomy.
const (
	KindNone Kind = iota
	KindUnauthenticated
	KindAccountInactive
	KindPermissionDenied
	KindRoleResolution
	KindNotFound
	KindUpstream
)

// Kinds lists every failure kind.
func Kinds() []Kind {
	return []Kind{KindUnauthenticated, KindAccountInactive, KindPermissionDenied, KindRoleResolution, KindNotFound, KindUpstream}
}

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindAccountInactive:
		return "account_inactive"
	case KindPermissionDenied:
		return "permission_denied"
	case KindRoleResolution:
		return "role_resolution"
	case KindNotFound:
		return "not_found"
	case KindUpstream:
		return "upstream"
	default:
		return "unknown"
	}
}

// KindOf classifies err. Errors outside the taxonomy are upstream failures.
func KindOf(err error) Kind {
	var denied *PermissionDeniedError
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrUnauthenticated):
		return KindUnauthenticated
	case errors.Is(err, ErrAccountInactive):
		return KindAccountInactive
	case errors.As(err, &denied):
		return KindPermissionDenied
	case errors.Is(err, ErrRoleResolution):
		return KindRoleResolution
	case errors.Is(err, ErrEmployeeNotFound):
		return KindNotFound
	default:
		return KindUpstream
	}
}

// StatusFor maps a failure kind to its HTTP status.
func StatusFor(k Kind) int {
	switch k {
	case KindNone:
		return http.StatusOK
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindAccountInactive, KindPermissionDenied, KindRoleResolution:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindUpstream:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Status maps err to its HTTP status.
func Status(err error) int {
	return StatusFor(KindOf(err))
}

// MessageKey maps err to its user-facing message key. denied names the
// permission denial copy for the calling route.
func MessageKey(err error, denied string) string {
	switch KindOf(err) {
	case KindNone:
		return ""
	case KindUnauthenticated:
		return shared.MsgUnauthenticated
	case KindAccountInactive:
		return shared.MsgAccountInactive
	case KindPermissionDenied:
		if denied == "" {
			return shared.MsgPermissionDenied
		}
		return denied
	case KindRoleResolution:
		return shared.MsgRoleResolution
	case KindNotFound:
		return shared.MsgEmployeeNotFound
	default:
		return shared.MsgServerError
	}
}
