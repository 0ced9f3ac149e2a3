package log

import "go.uber.org/atomic"

// Binder 嵌入到长生命周期的组件中，保存组件自己的 Logger。
// 零值可用，未绑定时退回到全局 Logger。
type Binder struct {
	logger atomic.Pointer[MLogger]
}

func (b *Binder) SetLogger(logger *MLogger) {
	b.logger.Store(logger)
}

func (b *Binder) Logger() *MLogger {
	if l := b.logger.Load(); l != nil {
		return l
	}
	return With()
}
