package command

import (
	"errors"
	"fmt"

	"github.com/keshon/commandgate/internal/features"
)

// ErrNilHandler is returned when a definition's factory produces no handler.
var ErrNilHandler = errors.New("command factory returned nil handler")

// MissingMetadataError is returned by Register for a definition without usable metadata.
type MissingMetadataError struct {
	Index int // position in a batch, -1 for single registration
}

func (e *MissingMetadataError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("command definition #%d is missing metadata", e.Index)
	}
	return "command definition is missing metadata"
}

// NotFoundError is produced when an interaction names an unregistered command.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("command %q not found", e.Name)
}

// ContextError is produced when a guild-only command is invoked outside a guild.
type ContextError struct {
	Name string
}

func (e *ContextError) Error() string {
	return fmt.Sprintf("command %q can only be used in a server", e.Name)
}

// PermissionDeniedError lists the permissions the invoking member lacks.
type PermissionDeniedError struct {
	Name    string
	Missing []int64
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("command %q: missing permissions: %s", e.Name, PermissionList(e.Missing))
}

// FeatureDisabledError lists the required features that are turned off.
type FeatureDisabledError struct {
	Name     string
	Disabled []features.Feature
}

func (e *FeatureDisabledError) Error() string {
	return fmt.Sprintf("command %q: features disabled: %s", e.Name, features.Join(e.Disabled))
}

// ValidationFailedError is produced when a command's own Validate hook says no.
type ValidationFailedError struct {
	Name string
}

func (e *ValidationFailedError) Error() string {
	return fmt.Sprintf("command %q: validation failed", e.Name)
}

// HandlerExecutionError wraps anything that went wrong after lookup: a gate
// callback, the validation hook or the handler itself.
type HandlerExecutionError struct {
	Name string
	Err  error
}

func (e *HandlerExecutionError) Error() string {
	return fmt.Sprintf("command %q failed: %v", e.Name, e.Err)
}

func (e *HandlerExecutionError) Unwrap() error { return e.Err }

// UnsupportedOptionAttributeError is returned by the schema builder when an
// option sets an attribute its type cannot carry.
type UnsupportedOptionAttributeError struct {
	Command   string
	Option    string
	Attribute string
	Type      OptionType
}

func (e *UnsupportedOptionAttributeError) Error() string {
	return fmt.Sprintf("command %q option %q: attribute %s is not supported for %s options",
		e.Command, e.Option, e.Attribute, e.Type)
}

// UnsupportedOptionTypeError is returned for an option type the builder does not know.
type UnsupportedOptionTypeError struct {
	Command string
	Option  string
	Type    OptionType
}

func (e *UnsupportedOptionTypeError) Error() string {
	return fmt.Sprintf("command %q option %q: unsupported option type %d", e.Command, e.Option, int(e.Type))
}
