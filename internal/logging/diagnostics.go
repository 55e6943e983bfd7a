package logging

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// DiagnosticPrefix 与浏览器端 console 输出前缀保持一致，便于 grep。
const DiagnosticPrefix = "[HolePuncher]"

// Diagnostics 是 puncher 的 verbose 旁路：只写日志，不影响返回值或事件。
// 零值与 nil 均可安全调用。
type Diagnostics struct {
	logger  logrus.FieldLogger
	enabled bool
}

// NewDiagnostics 在 verbose=true 且 logger 非空时输出诊断日志。
func NewDiagnostics(logger logrus.FieldLogger, verbose bool) *Diagnostics {
	return &Diagnostics{logger: logger, enabled: verbose && logger != nil}
}

// Enabled 返回诊断日志是否会真正输出。
func (d *Diagnostics) Enabled() bool {
	return d != nil && d.enabled
}

// Log 输出一条诊断信息；sink 出错（包括 panic）时静默吞掉。
func (d *Diagnostics) Log(msg string, fields logrus.Fields) {
	if !d.Enabled() {
		return
	}
	defer func() {
		_ = recover()
	}()

	entry := d.logger.WithField("component", "holepuncher")
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Info(fmt.Sprintf("%s %s", DiagnosticPrefix, msg))
}

// Error 输出带 error 字段的诊断信息。
func (d *Diagnostics) Error(msg string, err error, fields logrus.Fields) {
	if !d.Enabled() {
		return
	}
	merged := logrus.Fields{}
	for k, v := range fields {
		merged[k] = v
	}
	if err != nil {
		merged[logrus.ErrorKey] = err.Error()
	}
	d.Log(msg, merged)
}
