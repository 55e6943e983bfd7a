package main

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseCLIFlagsPriority(t *testing.T) {
	t.Setenv("HOLEPUNCHER_CONFIG", "/tmp/env.toml")

	opts, err := parseCLIFlags([]string{})
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if opts.configPath != "/tmp/env.toml" {
		t.Fatalf("应优先使用环境变量，得到 %s", opts.configPath)
	}

	opts, err = parseCLIFlags([]string{"--config", "/tmp/flag.toml", "--flush", "--render", "page.html"})
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if opts.configPath != "/tmp/flag.toml" {
		t.Fatalf("flag 应高于环境变量，得到 %s", opts.configPath)
	}
	if !opts.flush || opts.renderFile != "page.html" {
		t.Fatalf("flush/render 标志未解析: %+v", opts)
	}
}

func TestRunCheckConfigSuccess(t *testing.T) {
	useBufferWriters(t)
	code := run(cliOptions{configPath: configFixture(t, "valid.toml"), checkOnly: true})
	if code != 0 {
		t.Fatalf("期望退出码 0，得到 %d", code)
	}
}

func TestRunCheckConfigFailure(t *testing.T) {
	useBufferWriters(t)
	code := run(cliOptions{configPath: configFixture(t, "invalid.toml"), checkOnly: true})
	if code == 0 {
		t.Fatalf("无效配置应返回非零退出码")
	}
	if !strings.Contains(stdErrBuffer().String(), "StoreDriver") {
		t.Fatalf("错误输出应指明字段，得到 %s", stdErrBuffer().String())
	}
}

func TestRunVersionOutput(t *testing.T) {
	useBufferWriters(t)
	code := run(cliOptions{showVersion: true})
	if code != 0 {
		t.Fatalf("version 模式应成功退出，得到 %d", code)
	}
	if !strings.Contains(stdOutBuffer().String(), "holepuncher") {
		t.Fatalf("version 输出应包含 holepuncher 标识")
	}
}

func TestRunRenderFillsPlaceholders(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<em>hello " + r.URL.Path + "</em>"))
	}))
	t.Cleanup(upstream.Close)

	dir := t.TempDir()
	page := filepath.Join(dir, "page.html")
	content := `<html><body><div data-url="/greeting">…</div><div data-url="">keep</div></body></html>`
	if err := os.WriteFile(page, []byte(content), 0o600); err != nil {
		t.Fatalf("写入页面失败: %v", err)
	}
	configPath := writeConfigFile(t, fmt.Sprintf(`
LogLevel = "error"
StoragePath = "%s"

[Puncher]
StoreDriver = "fs"
Origin = "%s"
`, filepath.Join(dir, "storage"), upstream.URL))

	useBufferWriters(t)
	code := run(cliOptions{configPath: configPath, renderFile: page})
	if code != 0 {
		t.Fatalf("渲染应成功，得到 %d: %s", code, stdErrBuffer().String())
	}
	out := stdOutBuffer().String()
	if !strings.Contains(out, "<em>hello /greeting</em>") {
		t.Fatalf("占位元素未被填充: %s", out)
	}
	if !strings.Contains(out, ">keep<") {
		t.Fatalf("空 data-url 的元素应保持原样: %s", out)
	}

	entries, err := os.ReadDir(filepath.Join(dir, "storage", "holepuncher"))
	if err != nil || len(entries) != 1 {
		t.Fatalf("渲染结束前应完成缓存写入，entries=%d err=%v", len(entries), err)
	}
}

func TestRunFlushClearsStore(t *testing.T) {
	dir := t.TempDir()
	storeDir := filepath.Join(dir, "storage", "holepuncher")
	if err := os.MkdirAll(storeDir, 0o755); err != nil {
		t.Fatalf("创建缓存目录失败: %v", err)
	}
	if err := os.WriteFile(filepath.Join(storeDir, "stale.http"), []byte("x"), 0o600); err != nil {
		t.Fatalf("写入缓存失败: %v", err)
	}
	configPath := writeConfigFile(t, fmt.Sprintf(`
LogLevel = "error"
StoragePath = "%s"
`, filepath.Join(dir, "storage")))

	useBufferWriters(t)
	if code := run(cliOptions{configPath: configPath, flush: true}); code != 0 {
		t.Fatalf("flush 应成功，得到 %d", code)
	}
	if _, err := os.Stat(storeDir); !os.IsNotExist(err) {
		t.Fatalf("flush 后缓存目录应被删除，err=%v", err)
	}
}
