// Package marshal 是对象图编解码的便捷入口：
// 在 objection 引擎之上提供字节切片接口、批量并发编解码与 JSON 诊断视图。
package marshal

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/samber/lo"
	"github.com/valyala/bytebufferpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lk2023060901/objection-go/pkg/log"
	"github.com/lk2023060901/objection-go/pkg/objection"
	"github.com/lk2023060901/objection-go/pkg/util/conc"
	"github.com/lk2023060901/objection-go/pkg/util/hardware"
	"github.com/lk2023060901/objection-go/pkg/util/merr"
)

const (
	tracerName = "github.com/lk2023060901/objection-go/pkg/marshal"

	idleWorkerExpiry = 30 * time.Second
)

// Marshaller 绑定一个 Registry，可被多个协程并发使用。
type Marshaller struct {
	log.Binder

	reg    *objection.Registry
	pool   *conc.Pool[[]byte]
	tracer trace.Tracer
}

type options struct {
	poolSize int
}

// Option 配置 Marshaller。
type Option func(opt *options)

// WithPoolSize 设置 MarshalAll 使用的协程数，默认为 CPU 核数。
func WithPoolSize(n int) Option {
	return func(opt *options) {
		opt.poolSize = n
	}
}

// New 创建 Marshaller，reg 为 nil 时使用一个只含默认 Codec 的 Registry。
func New(reg *objection.Registry, opts ...Option) *Marshaller {
	opt := &options{poolSize: hardware.GetCPUNum()}
	for _, o := range opts {
		o(opt)
	}
	if reg == nil {
		reg = objection.NewRegistry()
	}
	m := &Marshaller{
		reg:    reg,
		pool:   conc.NewPool[[]byte](opt.poolSize, conc.WithConcealPanic(true), conc.WithExpiryDuration(idleWorkerExpiry)),
		tracer: otel.Tracer(tracerName),
	}
	m.SetLogger(log.With(log.FieldComponent("marshaller")))
	return m
}

// Registry 返回绑定的 Registry。
func (m *Marshaller) Registry() *objection.Registry {
	return m.reg
}

// Marshal 将 v 编码为新分配的字节切片。
func (m *Marshaller) Marshal(v any) ([]byte, error) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	if err := m.MarshalTo(buf, v); err != nil {
		return nil, err
	}
	return bytes.Clone(buf.B), nil
}

// MarshalTo 将 v 编码写入 w。
func (m *Marshaller) MarshalTo(w io.Writer, v any) error {
	_, err := objection.Encode(v, w, m.reg)
	return err
}

// Unmarshal 解码 data 并写入 out。out 可以指向类型本身、类型指针或 any。
func (m *Marshaller) Unmarshal(data []byte, out any) error {
	v, err := m.UnmarshalFrom(bytes.NewReader(data))
	if err != nil {
		return err
	}
	return objection.Assign(out, v)
}

// UnmarshalFrom 从 r 解码一个对象并实例化。
func (m *Marshaller) UnmarshalFrom(r io.Reader) (any, error) {
	td, err := objection.Decode(r, m.reg)
	if err != nil {
		return nil, err
	}
	return objection.Materialize(td)
}

// MarshalAll 在协程池中并发编码，结果与输入一一对应。任一失败则返回第一个错误。
func (m *Marshaller) MarshalAll(ctx context.Context, vs []any) ([][]byte, error) {
	ctx, span := m.tracer.Start(ctx, "MarshalAll", trace.WithAttributes(attribute.Int("count", len(vs))))
	defer span.End()

	futures := make([]*conc.Future[[]byte], 0, len(vs))
	for _, v := range vs {
		futures = append(futures, m.pool.Submit(func() ([]byte, error) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return m.Marshal(v)
		}))
	}
	if err := conc.AwaitAll(futures...); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		m.Logger().Warn("marshal batch failed", zap.Int("count", len(vs)), zap.Error(err))
		return nil, err
	}
	return lo.Map(futures, func(f *conc.Future[[]byte], _ int) []byte {
		return f.Value()
	}), nil
}

// UnmarshalAll 并发解码多个缓冲区，结果与输入一一对应。
func (m *Marshaller) UnmarshalAll(ctx context.Context, bufs [][]byte) ([]any, error) {
	ctx, span := m.tracer.Start(ctx, "UnmarshalAll", trace.WithAttributes(attribute.Int("count", len(bufs))))
	defer span.End()

	out := make([]any, len(bufs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(hardware.GetCPUNum())
	for i, data := range bufs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			v, err := m.UnmarshalFrom(bytes.NewReader(data))
			if err != nil {
				return err
			}
			out[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		m.Logger().Warn("unmarshal batch failed",
			zap.Int("count", len(bufs)),
			zap.Stringer("errorType", merr.GetErrorType(err)),
			zap.Error(err))
		return nil, err
	}
	return out, nil
}

// Close 释放协程池。
func (m *Marshaller) Close() {
	m.pool.Release()
}
