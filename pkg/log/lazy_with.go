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

package log

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap/zapcore"
)

// lazyWithCore 推迟 core.With 的字段编码，直到第一次 Check、Write 或派生。
type lazyWithCore struct {
	core   atomic.Pointer[zapcore.Core]
	once   sync.Once
	fields []zapcore.Field
}

var _ zapcore.Core = (*lazyWithCore)(nil)

func NewLazyWith(core zapcore.Core, fields []zapcore.Field) zapcore.Core {
	c := &lazyWithCore{fields: fields}
	c.core.Store(&core)
	return c
}

func (c *lazyWithCore) load() zapcore.Core {
	c.once.Do(func() {
		inner := (*c.core.Load()).With(c.fields)
		c.core.Store(&inner)
	})
	return *c.core.Load()
}

func (c *lazyWithCore) Enabled(level zapcore.Level) bool {
	return (*c.core.Load()).Enabled(level)
}

func (c *lazyWithCore) Sync() error {
	return c.load().Sync()
}

func (c *lazyWithCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	return c.load().Write(entry, fields)
}

func (c *lazyWithCore) With(fields []zapcore.Field) zapcore.Core {
	return c.load().With(fields)
}

func (c *lazyWithCore) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	return c.load().Check(entry, ce)
}
