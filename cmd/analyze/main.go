// analyze 离线分析 V93xx 抓包：每条帧记录输出一行 JSON，Strict 模式中止时退出码为 2
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/v93xx-probe/internal/config"
	"github.com/taoyao-code/v93xx-probe/internal/gateway"
	"github.com/taoyao-code/v93xx-probe/internal/logging"
	"github.com/taoyao-code/v93xx-probe/internal/protocol/v93xx"
	"github.com/taoyao-code/v93xx-probe/internal/sink"
)

const (
	exitOK     = 0
	exitError  = 1
	exitHalted = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type cliFlags struct {
	config    string
	in        string
	hexText   string
	format    string
	mode      string
	dialect   string
	lookahead string
	noise     bool
	summary   bool
	logLevel  string
}

func parseFlags(args []string, stderr io.Writer) (*cliFlags, error) {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	fs.SetOutput(stderr)
	f := &cliFlags{}
	fs.StringVar(&f.config, "config", "", "配置文件；未指定时使用 PROBE_CONFIG 或内置默认值")
	fs.StringVar(&f.in, "in", "-", "输入文件，- 表示标准输入")
	fs.StringVar(&f.hexText, "hex", "", "直接给出十六进制字节，优先于 -in")
	fs.StringVar(&f.format, "format", "auto", "输入格式 auto|bin|hex（auto 按扩展名 .hex/.txt 判断）")
	fs.StringVar(&f.mode, "mode", "", "strict|lenient，覆盖配置")
	fs.StringVar(&f.dialect, "dialect", "", "v93xx|regframe，覆盖配置")
	fs.StringVar(&f.lookahead, "lookahead", "", "inner|capture，覆盖配置")
	fs.BoolVar(&f.noise, "noise", false, "输出噪声记录")
	fs.BoolVar(&f.summary, "summary", false, "结束时输出一行统计 JSON")
	fs.StringVar(&f.logLevel, "log-level", "warn", "stderr 日志级别")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return f, nil
}

// analyzerConfig 配置文件为底，命令行覆盖
func (f *cliFlags) analyzerConfig() (cfgpkg.AnalyzerConfig, error) {
	cfg, err := cfgpkg.Load(f.config)
	if err != nil {
		return cfgpkg.AnalyzerConfig{}, err
	}
	a := cfg.Analyzer
	if f.mode != "" {
		a.Mode = f.mode
	}
	if f.dialect != "" {
		a.Dialect = f.dialect
	}
	if f.lookahead != "" {
		a.Lookahead = f.lookahead
	}
	if f.noise {
		a.EmitNoise = true
	}
	return a, nil
}

// openInput 返回原始字节流；十六进制文本整体读入后解析
func (f *cliFlags) openInput(stdin io.Reader) (io.Reader, func(), error) {
	noop := func() {}
	if f.hexText != "" {
		b, err := v93xx.ParseHex(f.hexText)
		if err != nil {
			return nil, noop, fmt.Errorf("parse -hex: %w", err)
		}
		return bytes.NewReader(b), noop, nil
	}

	r, closeFn := stdin, noop
	if f.in != "-" && f.in != "" {
		file, err := os.Open(f.in)
		if err != nil {
			return nil, noop, err
		}
		r, closeFn = file, func() { _ = file.Close() }
	}

	format := f.format
	if format == "auto" {
		switch strings.ToLower(filepath.Ext(f.in)) {
		case ".hex", ".txt":
			format = "hex"
		default:
			format = "bin"
		}
	}
	switch format {
	case "bin":
		return bufio.NewReader(r), closeFn, nil
	case "hex":
		text, err := io.ReadAll(r)
		if err != nil {
			closeFn()
			return nil, noop, err
		}
		b, err := v93xx.ParseHex(string(text))
		if err != nil {
			closeFn()
			return nil, noop, fmt.Errorf("parse hex input: %w", err)
		}
		return bytes.NewReader(b), closeFn, nil
	default:
		closeFn()
		return nil, noop, fmt.Errorf("unknown format %q", f.format)
	}
}

type summaryLine struct {
	SessionID   string      `json:"session_id"`
	Mode        string      `json:"mode"`
	Dialect     string      `json:"dialect"`
	Halted      bool        `json:"halted"`
	CloseReason string      `json:"close_reason"`
	Stats       v93xx.Stats `json:"stats"`
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	f, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitError
	}

	logger, err := logging.InitLogger(cfgpkg.LoggingConfig{Level: f.logLevel, Format: "console"})
	if err != nil {
		fmt.Fprintf(stderr, "init logger: %v\n", err)
		return exitError
	}
	defer func() { _ = logger.Sync() }()

	acfg, err := f.analyzerConfig()
	if err != nil {
		logger.Error("load config", zap.Error(err))
		return exitError
	}
	regs, err := acfg.Registers()
	if err != nil {
		logger.Error("load register map", zap.Error(err))
		return exitError
	}
	opts, err := acfg.Options(regs)
	if err != nil {
		logger.Error("analyzer options", zap.Error(err))
		return exitError
	}

	in, closeIn, err := f.openInput(stdin)
	if err != nil {
		logger.Error("open input", zap.Error(err))
		return exitError
	}
	defer closeIn()

	out := bufio.NewWriter(stdout)
	defer out.Flush()
	enc := json.NewEncoder(out)
	emit := func(recs []v93xx.Record) error {
		for i := range recs {
			if err := enc.Encode(recs[i]); err != nil {
				return err
			}
		}
		return nil
	}

	gw := gateway.New(opts, sink.NewFanout(logger, sink.NewLogSink(logger)), nil, logger)
	sess, err := gw.AnalyzeReader(ctx, "file", in, acfg.ReadChunk, opts, emit)
	if err != nil {
		logger.Error("analyze", zap.Error(err))
		return exitError
	}
	if f.summary {
		_ = enc.Encode(summaryLine{
			SessionID:   sess.ID.String(),
			Mode:        sess.Mode.String(),
			Dialect:     sess.Dialect,
			Halted:      sess.Halted,
			CloseReason: sess.CloseReason,
			Stats:       sess.Stats,
		})
	}
	if sess.Halted {
		return exitHalted
	}
	return exitOK
}
