package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestDiagnosticsSilentWhenNotVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := newJSONLogger(buf, logrus.InfoLevel)

	NewDiagnostics(logger, false).Log("Event flush", nil)
	if buf.Len() != 0 {
		t.Fatalf("verbose=false 时不应输出，得到 %s", buf.String())
	}
}

func TestDiagnosticsWritesPrefixedEntry(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := newJSONLogger(buf, logrus.InfoLevel)

	NewDiagnostics(logger, true).Error("fetch failed", errors.New("boom"), logrus.Fields{"url": "/a.html"})
	out := buf.String()
	for _, want := range []string{DiagnosticPrefix, `"component":"holepuncher"`, `"error":"boom"`, `"url":"/a.html"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("诊断日志缺少 %s: %s", want, out)
		}
	}
}

func TestDiagnosticsNilSafe(t *testing.T) {
	var d *Diagnostics
	d.Log("ignored", nil)
	d.Error("ignored", errors.New("x"), nil)

	NewDiagnostics(nil, true).Log("no sink", nil)
}

type panickingLogger struct {
	logrus.FieldLogger
}

func (panickingLogger) WithField(string, interface{}) *logrus.Entry {
	panic("sink unavailable")
}

func TestDiagnosticsSwallowsSinkPanic(t *testing.T) {
	d := NewDiagnostics(panickingLogger{FieldLogger: logrus.New()}, true)
	d.Log("must not panic", nil)
}
