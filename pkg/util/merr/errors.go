// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package merr

import (
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

type ErrorType int32

const (
	SystemError ErrorType = 0
	InputError  ErrorType = 1
)

var ErrorTypeName = map[ErrorType]string{
	SystemError: "system_error",
	InputError:  "input_error",
}

func (err ErrorType) String() string {
	return ErrorTypeName[err]
}

// Define leaf errors here,
// WARN: take care to add new error,
// check whether you can use the errors below before adding a new one.
// Name: Err + related prefix + error name
var (
	// Service related
	ErrServiceInternal = newObjectionError("service internal error", 5, false)

	// Type related
	ErrNotSerializable      = newObjectionError("type is not serializable", 100, false)
	ErrNoCodec              = newObjectionError("no codec for type", 101, false)
	ErrUnsupported          = newObjectionError("unsupported type", 102, false)
	ErrNoDefaultConstructor = newObjectionError("no default constructor", 103, false)
	ErrTypeNotResolvable    = newObjectionError("type name not resolvable", 104, false)

	// Decode safety related
	ErrUnsafeOperation  = newObjectionError("unsafe operation: type not registered", 200, false, WithErrorType(InputError))
	ErrChecksumMismatch = newObjectionError("invalid loaded type: checksum mismatch", 201, false, WithErrorType(InputError))

	// Field related
	ErrUnknownField    = newObjectionError("field not declared", 300, false, WithErrorType(InputError))
	ErrVersionMismatch = newObjectionError("field version of type does not match", 301, false, WithErrorType(InputError))
	ErrInvalidValue    = newObjectionError("invalid field value", 302, false)

	// IO related
	ErrIoFailed      = newObjectionError("IO failed", 1000, false)
	ErrIoUnexpectEOF = newObjectionError("unexpected EOF", 1002, false)
	ErrIoCorrupted   = newObjectionError("corrupted frame", 1003, false, WithErrorType(InputError))

	// Parameter related
	ErrParameterInvalid  = newObjectionError("invalid parameter", 1100, false)
	ErrParameterTooLarge = newObjectionError("parameter too large", 1102, false, WithErrorType(InputError))

	// Do NOT export this,
	// never allow programmer using this, keep only for converting unknown error to objectionError
	errUnexpected = newObjectionError("unexpected error", (1<<16)-1, false)
)

// errorNames 为每个错误码提供稳定的短名称，用于日志字段与监控标签。
var errorNames = map[int32]string{
	ErrServiceInternal.errCode:       "service_internal",
	ErrNotSerializable.errCode:       "not_serializable",
	ErrNoCodec.errCode:               "no_codec",
	ErrUnsupported.errCode:           "unsupported",
	ErrNoDefaultConstructor.errCode:  "no_default_constructor",
	ErrTypeNotResolvable.errCode:     "type_not_resolvable",
	ErrUnsafeOperation.errCode:       "unsafe_operation",
	ErrChecksumMismatch.errCode:      "checksum_mismatch",
	ErrUnknownField.errCode:          "unknown_field",
	ErrVersionMismatch.errCode:       "version_mismatch",
	ErrInvalidValue.errCode:          "invalid_value",
	ErrIoFailed.errCode:              "io_failed",
	ErrIoUnexpectEOF.errCode:         "unexpected_eof",
	ErrIoCorrupted.errCode:           "io_corrupted",
	ErrParameterInvalid.errCode:      "parameter_invalid",
	ErrParameterTooLarge.errCode:     "parameter_too_large",
	errUnexpected.errCode:            "unexpected",
}

type errorOption func(*objectionError)

func WithDetail(detail string) errorOption {
	return func(err *objectionError) {
		err.detail = detail
	}
}

func WithErrorType(etype ErrorType) errorOption {
	return func(err *objectionError) {
		err.errType = etype
	}
}

type objectionError struct {
	msg       string
	detail    string
	retriable bool
	errCode   int32
	errType   ErrorType
}

func newObjectionError(msg string, code int32, retriable bool, options ...errorOption) objectionError {
	err := objectionError{
		msg:       msg,
		detail:    msg,
		retriable: retriable,
		errCode:   code,
	}

	for _, option := range options {
		option(&err)
	}
	return err
}

func (e objectionError) code() int32 {
	return e.errCode
}

func (e objectionError) Error() string {
	return e.msg
}

func (e objectionError) Detail() string {
	return e.detail
}

func (e objectionError) Is(err error) bool {
	cause := errors.Cause(err)
	if cause, ok := cause.(objectionError); ok {
		return e.errCode == cause.errCode
	}
	return false
}

type multiErrors struct {
	errs []error
}

func (e multiErrors) Unwrap() error {
	if len(e.errs) <= 1 {
		return nil
	}
	// To make merr work for multi errors,
	// we need cause of multi errors, which defined as the last error
	if len(e.errs) == 2 {
		return e.errs[1]
	}

	return multiErrors{
		errs: e.errs[1:],
	}
}

func (e multiErrors) Error() string {
	final := e.errs[0]
	for i := 1; i < len(e.errs); i++ {
		final = errors.Wrap(e.errs[i], final.Error())
	}
	return final.Error()
}

func (e multiErrors) Is(err error) bool {
	for _, item := range e.errs {
		if errors.Is(item, err) {
			return true
		}
	}
	return false
}

func Combine(errs ...error) error {
	errs = lo.Filter(errs, func(err error, _ int) bool { return err != nil })
	if len(errs) == 0 {
		return nil
	}
	return multiErrors{
		errs,
	}
}
