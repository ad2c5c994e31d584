// Package errors classifies the failures a make-right cycle can hit, so the
// Retry/Backoff Controller can tell which ones are worth another attempt:
//
//   - transient: the API server or a registry hiccuped (5xx, conflict,
//     timeout, dropped connection); retried with backoff up to the tuning
//     maximum.
//   - permanent: the Domain spec or operator configuration is wrong; retrying
//     without a user edit would fail the same way.
//   - fatal introspector: the introspector reported an unrecoverable domain
//     configuration problem; make-right stays suppressed until the spec
//     changes.
//   - validation: the Domain spec failed pre-flight checks; the current cycle
//     aborts and no retry is scheduled.
package errors

import (
	"errors"
	"fmt"
	"net"
	"strings"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
)

// FatalIntrospectorToken is the marker the introspector writes into the
// Domain status message when it hits an unrecoverable configuration error.
const FatalIntrospectorToken = "FatalIntrospectorError"

// ErrTransientConnection marks a failed network dial or read against the API
// server or a container registry. The request can simply be tried again.
var ErrTransientConnection = errors.New("transient connection error")

// ErrTransientKubernetesAPI marks an API server response that signals a
// temporary condition: conflict, throttling, timeout, or a 5xx.
var ErrTransientKubernetesAPI = errors.New("transient Kubernetes API error")

// ErrPermanentConfig marks a Domain spec or operator configuration problem
// that no retry can fix; make-right waits for the user to edit something.
var ErrPermanentConfig = errors.New("permanent configuration error")

// ErrFatalIntrospector marks the introspector job reporting an unrecoverable
// domain configuration error. Make-right is suppressed for the domain until
// the user edits its spec.
var ErrFatalIntrospector = errors.New("fatal introspector error")

// ErrValidation marks a Domain spec that failed validation (invalid server
// name, invalid cluster, dynamic cluster server number out of range). The
// current make-right cycle aborts without retry.
var ErrValidation = errors.New("domain validation error")

// IsTransientConnection reports whether err is a retryable network-level
// failure: the sentinel, a timed-out net.Error, a failed socket operation,
// or a DNS lookup failure.
func IsTransientConnection(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransientConnection) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

// IsTransientKubernetesAPI reports whether err is an API server response
// worth retrying: conflict (another writer got there first), throttling,
// timeout, or a server-side 5xx.
func IsTransientKubernetesAPI(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransientKubernetesAPI) {
		return true
	}
	return apierrors.IsConflict(err) ||
		apierrors.IsTooManyRequests(err) ||
		apierrors.IsServerTimeout(err) ||
		apierrors.IsTimeout(err) ||
		apierrors.IsInternalError(err) ||
		apierrors.IsServiceUnavailable(err) ||
		apierrors.IsUnexpectedServerError(err)
}

// IsTransient reports whether err should be retried with backoff.
func IsTransient(err error) bool {
	return IsTransientConnection(err) || IsTransientKubernetesAPI(err)
}

// IsPermanent reports whether err requires a user edit before another
// make-right attempt can succeed. Fatal-introspector and validation errors
// are terminal too, but the Retry Controller handles them separately, so
// they are not folded in here.
func IsPermanent(err error) bool {
	return err != nil && errors.Is(err, ErrPermanentConfig)
}

// IsFatalIntrospector reports whether err is a fatal introspector error,
// either by sentinel or by the token carried in a Domain status message.
func IsFatalIntrospector(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrFatalIntrospector) {
		return true
	}
	return strings.Contains(err.Error(), FatalIntrospectorToken)
}

// IsValidation reports whether err is a Domain validation error.
func IsValidation(err error) bool {
	return err != nil && errors.Is(err, ErrValidation)
}

// WrapTransientConnection tags err as a transient connection error; already
// tagged errors pass through unchanged.
func WrapTransientConnection(err error) error {
	if err == nil {
		return nil
	}
	if IsTransientConnection(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTransientConnection, err)
}

// WrapTransientKubernetesAPI tags err as a transient API server error.
func WrapTransientKubernetesAPI(err error) error {
	if err == nil {
		return nil
	}
	if IsTransientKubernetesAPI(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTransientKubernetesAPI, err)
}

// WrapPermanentConfig tags err as a permanent configuration error.
func WrapPermanentConfig(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPermanentConfig, err)
}

// WrapFatalIntrospector tags err as a fatal introspector error.
func WrapFatalIntrospector(err error) error {
	if err == nil {
		return nil
	}
	if IsFatalIntrospector(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrFatalIntrospector, err)
}

// WrapValidation tags err as a Domain validation error.
func WrapValidation(err error) error {
	if err == nil {
		return nil
	}
	if IsValidation(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrValidation, err)
}
