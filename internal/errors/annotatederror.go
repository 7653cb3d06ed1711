// Package errors augments the standard library errors with slog annotations
// and the source location of the wrap site.
package errors

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// annotatedError decorates a cause with a message, slog attributes, and the
// file:line of the call site so that failures can be traced without stack dumps.
type annotatedError struct {
	cause  error
	msg    string
	attrs  []slog.Attr
	source string
}

func (e *annotatedError) Error() string {
	if e.cause == nil {
		return e.msg
	}
	return e.msg + ": " + e.cause.Error()
}

func (e *annotatedError) Unwrap() error {
	return e.cause
}

// NewSentinel creates an error meant to be used as a package-level sentinel
// compared with Is. It carries no source location.
func NewSentinel(msg string) error {
	return errors.New(msg)
}

// New is a drop-in replacement for the standard library errors.New.
func New(msg string) error {
	return errors.New(msg)
}

// Wrap annotates err with a message and optional slog attributes. The location
// of the Wrap call is recorded for SlogError.
func Wrap(err error, msg string, attrs ...slog.Attr) error {
	return &annotatedError{
		cause:  err,
		msg:    msg,
		attrs:  attrs,
		source: caller(1),
	}
}

// DecoratePanic converts a recovered panic value into an error annotated with
// the panic site. Meant to be called directly inside the deferred function.
func DecoratePanic(recovered any) error {
	return &annotatedError{
		cause:  nil,
		msg:    fmt.Sprintf("panic: %v", recovered),
		attrs:  nil,
		source: panicSite(),
	}
}

// panicSite resolves the file:line of the panic statement. The deferred
// function sits below runtime.gopanic on the stack, so the panic site is the
// first non-runtime frame above it. Falls back to the topmost walked frame
// when no panic frame is present, e.g. when called outside a recover.
func panicSite() string {
	pc := make([]uintptr, 32)
	n := runtime.Callers(3, pc)
	frames := runtime.CallersFrames(pc[:n])

	var fallback string
	pastPanic := false
	for {
		frame, more := frames.Next()
		location := filepath.Base(frame.File) + ":" + strconv.Itoa(frame.Line)
		if fallback == "" {
			fallback = location
		}
		if pastPanic && !strings.HasPrefix(frame.Function, "runtime.") {
			return location
		}
		if frame.Function == "runtime.gopanic" {
			pastPanic = true
		}
		if !more {
			break
		}
	}
	return fallback
}

// caller resolves the file:line skip+1 frames up from caller itself.
func caller(skip int) string {
	_, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return ""
	}
	return filepath.Base(file) + ":" + strconv.Itoa(line)
}

// Unwrap is a drop-in replacement for the standard library errors.Unwrap.
func Unwrap(err error) error {
	return errors.Unwrap(err)
}

// Is is a drop-in replacement for the standard library errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is a drop-in replacement for the standard library errors.As.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Join is a drop-in replacement for the standard library errors.Join.
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// SlogError converts an error into a structured attribute grouping the
// message, the innermost recorded wrap site, and annotations collected along
// the chain. A nil error yields an empty attribute.
func SlogError(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}

	var (
		annotations []slog.Attr
		source      string
	)
	for cur := err; cur != nil; cur = errors.Unwrap(cur) {
		if ae, ok := cur.(*annotatedError); ok {
			annotations = append(annotations, ae.attrs...)
			if source == "" {
				source = ae.source
			}
		}
	}

	args := []any{slog.String("message", err.Error())}
	if source != "" {
		args = append(args, slog.String("source", source))
	}
	if len(annotations) > 0 {
		annotationArgs := make([]any, len(annotations))
		for i, attr := range annotations {
			annotationArgs[i] = attr
		}
		args = append(args, slog.Group("annotations", annotationArgs...))
	}

	return slog.Group("error", args...)
}
