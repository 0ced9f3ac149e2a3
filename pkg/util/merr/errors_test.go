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
	"io"
	"os"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/suite"
)

type ErrSuite struct {
	suite.Suite
}

func (s *ErrSuite) TestCode() {
	err := WrapErrUnsafeOperation("example.Point")
	errors.Wrap(err, "failed to resolve type")
	s.ErrorIs(err, ErrUnsafeOperation)
	s.Equal(Code(ErrUnsafeOperation), Code(err))
	s.Equal(errUnexpected.errCode, Code(errUnexpected))
	s.Equal(errUnexpected.errCode, Code(errors.New("plain")))
	s.Equal(int32(0), Code(nil))

	sameCodeErr := newObjectionError("new error", ErrUnsafeOperation.errCode, false)
	s.True(sameCodeErr.Is(ErrUnsafeOperation))
	s.False(sameCodeErr.Is(ErrChecksumMismatch))
}

func (s *ErrSuite) TestName() {
	s.Equal("checksum_mismatch", Name(WrapErrChecksumMismatch("a.B", 1, 2, 3, 4)))
	s.Equal("unexpected", Name(errors.New("plain")))
	s.Equal("", Name(nil))
	s.Equal("unknown_field", Name(errors.Wrap(WrapErrUnknownField("a.B", "x"), "decode")))
}

func (s *ErrSuite) TestWrap() {
	// Type 相关错误。
	s.ErrorIs(WrapErrNotSerializable("example.Point", "missing marker"), ErrNotSerializable)
	s.ErrorIs(WrapErrNoCodec("chan int"), ErrNoCodec)
	s.ErrorIs(WrapErrUnsupported("[][]int32", "multi dimension array"), ErrUnsupported)
	s.ErrorIs(WrapErrNoDefaultConstructor("example.Shape"), ErrNoDefaultConstructor)
	s.ErrorIs(WrapErrTypeNotResolvable("example.Missing"), ErrTypeNotResolvable)

	// 解码安全相关错误。
	s.ErrorIs(WrapErrUnsafeOperation("evil.Type"), ErrUnsafeOperation)
	s.ErrorIs(WrapErrChecksumMismatch("example.Point", 1, 17, 100, 101), ErrChecksumMismatch)

	// 字段相关错误。
	s.ErrorIs(WrapErrUnknownField("example.Point", "z"), ErrUnknownField)
	s.ErrorIs(WrapErrVersionMismatch("x", 0, 1, 1, 1), ErrVersionMismatch)
	s.ErrorIs(WrapErrInvalidValue("next", "nil pointer"), ErrInvalidValue)

	// IO 相关错误。
	s.ErrorIs(WrapErrIo("read", io.EOF), ErrIoUnexpectEOF)
	s.ErrorIs(WrapErrIo("read", io.ErrUnexpectedEOF), ErrIoUnexpectEOF)
	s.ErrorIs(WrapErrIo("write", os.ErrClosed), ErrIoFailed)
	s.NoError(WrapErrIo("write", nil))
	s.ErrorIs(WrapErrIoCorrupted("invalid mac"), ErrIoCorrupted)

	// 参数相关错误。
	s.ErrorIs(WrapErrParameterInvalid(8, 1, "failed to create"), ErrParameterInvalid)
	s.ErrorIs(WrapErrParameterInvalidRange(0, 255, 300, "name too long"), ErrParameterInvalid)
	s.ErrorIs(WrapErrParameterInvalidMsg("bad %s", "thing"), ErrParameterInvalid)
	s.ErrorIs(WrapErrParameterTooLarge("string", 1<<30, 1<<20), ErrParameterTooLarge)

	s.ErrorIs(WrapErrServiceInternal("pool closed"), ErrServiceInternal)
}

func (s *ErrSuite) TestInputError() {
	err := WrapErrAsInputError(ErrUnsafeOperation)
	s.Equal(InputError, GetErrorType(err))
	s.Equal(SystemError, GetErrorType(ErrNoCodec))
	s.Equal(InputError, GetErrorType(WrapErrUnsafeOperation("evil.Type")))
	s.Equal(InputError, GetErrorType(errors.Wrap(WrapErrIoCorrupted("invalid mac"), "decode")))
	s.Equal(SystemError, GetErrorType(errors.New("plain")))
	s.False(IsRetryableErr(ErrNoCodec))
}

func (s *ErrSuite) TestCombine() {
	var (
		errFirst  = errors.New("first")
		errSecond = errors.New("second")
		errThird  = errors.New("third")
	)

	err := Combine(errFirst, errSecond)
	s.True(errors.Is(err, errFirst))
	s.True(errors.Is(err, errSecond))
	s.False(errors.Is(err, errThird))

	s.Equal("first: second", err.Error())
}

func (s *ErrSuite) TestCombineWithNil() {
	err := errors.New("non-nil")

	err = Combine(nil, err)
	s.NotNil(err)
}

func (s *ErrSuite) TestCombineOnlyNil() {
	err := Combine(nil, nil)
	s.Nil(err)
}

func (s *ErrSuite) TestCombineCode() {
	err := Combine(WrapErrUnknownField("a.B", "x"), WrapErrChecksumMismatch("a.B", 0, 1, 0, 1))
	s.Equal(Code(ErrChecksumMismatch), Code(err))
}

func TestErrors(t *testing.T) {
	suite.Run(t, new(ErrSuite))
}
