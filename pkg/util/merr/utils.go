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
	"fmt"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
)

// Code 返回给定错误对应的错误码。
func Code(err error) int32 {
	if err == nil {
		return 0
	}

	cause := errors.Cause(err)
	switch specificErr := cause.(type) {
	case objectionError:
		return specificErr.code()

	default:
		return errUnexpected.code()
	}
}

// Name 返回错误码对应的稳定短名称，未知错误统一返回 "unexpected"。
func Name(err error) string {
	if err == nil {
		return ""
	}
	if name, ok := errorNames[Code(err)]; ok {
		return name
	}
	return errorNames[errUnexpected.errCode]
}

func IsRetryableErr(err error) bool {
	if err, ok := err.(objectionError); ok {
		return err.retriable
	}

	return false
}

func WrapErrAsInputError(err error) error {
	if merr, ok := err.(objectionError); ok {
		WithErrorType(InputError)(&merr)
		return merr
	}
	return err
}

// GetErrorType 返回 err 链上第一个 objectionError 的错误类型，解码时由输入数据引起的错误为 InputError。
func GetErrorType(err error) ErrorType {
	var merr objectionError
	if errors.As(err, &merr) {
		return merr.errType
	}
	return SystemError
}

func WrapErrServiceInternal(reason string, msg ...string) error {
	err := wrapFieldsWithDesc(ErrServiceInternal, reason)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

// Type 相关错误封装。
func WrapErrNotSerializable(typeName any, msg ...string) error {
	err := wrapFields(ErrNotSerializable, value("type", typeName))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrNoCodec(typeName any, msg ...string) error {
	err := wrapFields(ErrNoCodec, value("type", typeName))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrUnsupported(typeName any, msg ...string) error {
	err := wrapFields(ErrUnsupported, value("type", typeName))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrNoDefaultConstructor(typeName string, msg ...string) error {
	err := wrapFields(ErrNoDefaultConstructor, value("type", typeName))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrTypeNotResolvable(name string, msg ...string) error {
	err := wrapFields(ErrTypeNotResolvable, value("name", name))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

// 解码安全相关错误封装。
func WrapErrUnsafeOperation(name string, msg ...string) error {
	err := wrapFields(ErrUnsafeOperation, value("name", name))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrChecksumMismatch(name string, expectedMod, actualMod, expectedID, actualID int32) error {
	return wrapFields(ErrChecksumMismatch,
		value("type", name),
		value("modifiers", fmt.Sprintf("%#x/%#x", expectedMod, actualMod)),
		value("structural_id", fmt.Sprintf("%#x/%#x", expectedID, actualID)),
	)
}

// 字段相关错误封装。
func WrapErrUnknownField(typeName, field string, msg ...string) error {
	err := wrapFields(ErrUnknownField, value("type", typeName), value("field", field))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrVersionMismatch(field string, expectedVersion, actualVersion, expectedKind, actualKind uint8) error {
	return wrapFields(ErrVersionMismatch,
		value("field", field),
		value("version", fmt.Sprintf("%d/%d", expectedVersion, actualVersion)),
		value("kind", fmt.Sprintf("%d/%d", expectedKind, actualKind)),
	)
}

func WrapErrInvalidValue(field string, msg ...string) error {
	err := wrapFields(ErrInvalidValue, value("field", field))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

// IO 相关错误封装。
// 读取过程中的 io.EOF / io.ErrUnexpectedEOF 统一归为 ErrIoUnexpectEOF，
// 因为一个完整的对象流不允许在中途结束。
func WrapErrIo(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.IsAny(err, io.EOF, io.ErrUnexpectedEOF) {
		return wrapFieldsWithDesc(ErrIoUnexpectEOF, err.Error(), value("op", op))
	}
	return wrapFieldsWithDesc(ErrIoFailed, err.Error(), value("op", op))
}

func WrapErrIoCorrupted(reason string, msg ...string) error {
	err := wrapFieldsWithDesc(ErrIoCorrupted, reason)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

// Parameter related
func WrapErrParameterInvalid[T any](expected, actual T, msg ...string) error {
	err := wrapFields(ErrParameterInvalid,
		value("expected", expected),
		value("actual", actual),
	)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrParameterInvalidRange[T any](lower, upper, actual T, msg ...string) error {
	err := wrapFields(ErrParameterInvalid,
		bound("value", actual, lower, upper),
	)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrParameterInvalidMsg(fmt string, args ...any) error {
	return errors.Wrapf(ErrParameterInvalid, fmt, args...)
}

func WrapErrParameterTooLarge(name string, actual, limit int, msg ...string) error {
	err := wrapFields(ErrParameterTooLarge, value("name", name), bound("length", actual, 0, limit))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func wrapFields(err objectionError, fields ...errorField) error {
	for i := range fields {
		err.msg += fmt.Sprintf("[%s]", fields[i].String())
	}
	err.detail = err.msg
	return err
}

func wrapFieldsWithDesc(err objectionError, desc string, fields ...errorField) error {
	for i := range fields {
		err.msg += fmt.Sprintf("[%s]", fields[i].String())
	}
	err.msg += ": " + desc
	err.detail = err.msg
	return err
}

type errorField interface {
	String() string
}

type valueField struct {
	name  string
	value any
}

func value(name string, value any) valueField {
	return valueField{
		name,
		value,
	}
}

func (f valueField) String() string {
	return fmt.Sprintf("%s=%v", f.name, f.value)
}

type boundField struct {
	name  string
	value any
	lower any
	upper any
}

func bound(name string, value, lower, upper any) boundField {
	return boundField{
		name,
		value,
		lower,
		upper,
	}
}

func (f boundField) String() string {
	return fmt.Sprintf("%v out of range %v <= %s <= %v", f.value, f.lower, f.name, f.upper)
}
