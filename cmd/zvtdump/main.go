// zvtdump 离线解析 ZVT 字节流（十六进制参数、十六进制文本或二进制抓包文件）
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/taoyao-code/zvt-tap/internal/logging"
	"github.com/taoyao-code/zvt-tap/internal/protocol/zvt"
)

const version = "1.0.0"

// 退出码
const (
	exitOK       = 0
	exitUsage    = 1
	exitDeclined = 2
)

// Options 命令行参数
type Options struct {
	File         string
	Raw          bool
	Transport    string
	Format       string
	Strict       bool
	StatusLength bool
	LogLevel     string
	ShowVersion  bool
}

// Report 解析输出；auto 模式附带首帧判定结果
type Report struct {
	Transport  string              `json:"transport,omitempty" yaml:"transport,omitempty"`
	Dissection *zvt.DissectionView `json:"dissection,omitempty" yaml:"dissection,omitempty"`
	Frames     []zvt.FrameView     `json:"frames" yaml:"frames"`
	Consumed   int                 `json:"consumed" yaml:"consumed"`
	Pending    int                 `json:"pending" yaml:"pending"`
	NeedMore   bool                `json:"need_more" yaml:"need_more"`
	Declined   bool                `json:"declined,omitempty" yaml:"declined,omitempty"`
	Error      string              `json:"error,omitempty" yaml:"error,omitempty"`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func parseFlags(args []string, stderr io.Writer) (*Options, []string, error) {
	opts := &Options{}
	fs := pflag.NewFlagSet("zvtdump", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVarP(&opts.File, "file", "f", "", "输入文件，- 表示标准输入；默认内容为十六进制文本")
	fs.BoolVar(&opts.Raw, "raw", false, "输入文件为二进制抓包")
	fs.StringVarP(&opts.Transport, "transport", "t", "auto", "传输形式: auto（按单段数据判定）, stream, serial")
	fs.StringVarP(&opts.Format, "format", "o", "text", "输出格式: text, json, yaml")
	fs.BoolVar(&opts.Strict, "strict", false, "已知指令负载短于最小长度时拒绝")
	fs.BoolVar(&opts.StatusLength, "status-length", false, "短状态应答后跟长度字段")
	fs.StringVar(&opts.LogLevel, "log-level", "warn", "日志级别")
	fs.BoolVar(&opts.ShowVersion, "version", false, "显示版本信息")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "用法: zvtdump [选项] [十六进制...]\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	return opts, fs.Args(), nil
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	opts, rest, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if opts.ShowVersion {
		fmt.Fprintf(stdout, "zvtdump v%s\n", version)
		return exitOK
	}
	logger := logging.NewCLILogger(opts.LogLevel)
	defer func() { _ = logger.Sync() }()

	mode, err := parseTransport(opts.Transport)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	input, err := readInput(opts, rest, stdin)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	if len(input) == 0 {
		fmt.Fprintln(stderr, "no input")
		return exitUsage
	}
	logger.Debug("input loaded", zap.Int("bytes", len(input)), zap.String("transport", opts.Transport))

	p := zvt.NewParser(zvt.DefaultRegistry(), zvt.Options{
		StrictMinLength:   opts.Strict,
		StatusLengthField: opts.StatusLength,
	})
	rep := dissect(p, mode, input)
	if rep.Declined {
		logger.Warn("input declined", zap.Int("consumed", rep.Consumed), zap.String("error", rep.Error))
	}

	if err := render(stdout, opts.Format, rep); err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	if rep.Declined {
		return exitDeclined
	}
	return exitOK
}

func parseTransport(s string) (zvt.Transport, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return zvt.TransportNone, nil
	case "stream", "tcp":
		return zvt.TransportStream, nil
	case "serial":
		return zvt.TransportSerial, nil
	default:
		return zvt.TransportNone, fmt.Errorf("unknown transport %q", s)
	}
}

func readInput(opts *Options, args []string, stdin io.Reader) ([]byte, error) {
	if opts.File == "" {
		return zvt.DecodeHex(strings.Join(args, ""))
	}
	var (
		data []byte
		err  error
	)
	if opts.File == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(opts.File)
	}
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	if opts.Raw {
		return data, nil
	}
	return zvt.DecodeHex(string(data))
}

func dissect(p *zvt.Parser, mode zvt.Transport, input []byte) Report {
	if mode == zvt.TransportNone {
		return dissectChunk(p, input)
	}
	d := zvt.NewStreamDecoder(p, len(input)+zvt.DefaultMaxBuffer)
	d.SetMode(mode)
	frames, err := d.Feed(input)

	rep := Report{Frames: make([]zvt.FrameView, 0, len(frames))}
	for _, fr := range frames {
		rep.Frames = append(rep.Frames, zvt.NewFrameView(p.Registry(), fr))
		rep.Consumed += len(fr.Raw)
	}
	if err != nil {
		rep.Declined = true
		rep.Error = err.Error()
		return rep
	}
	rep.Pending = d.Pending()
	rep.NeedMore = rep.Pending > 0
	return rep
}

// dissectChunk 整个输入视为一段无上下文数据，先判定传输形式
func dissectChunk(p *zvt.Parser, input []byte) Report {
	res, err := p.DissectChunk(input)
	rep := Report{Frames: []zvt.FrameView{}}
	if res != nil {
		dv := p.View(res.Dissection)
		rep.Transport = dv.Transport
		rep.Dissection = &dv
		for _, fr := range res.Frames {
			rep.Frames = append(rep.Frames, zvt.NewFrameView(p.Registry(), fr))
		}
		rep.Consumed = res.Consumed
		rep.Pending = res.Pending
		rep.NeedMore = res.NeedMore
	}
	if err != nil {
		rep.Declined = true
		rep.Error = err.Error()
	}
	return rep
}

func render(w io.Writer, format string, rep Report) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(rep)
	case "text", "":
		renderText(w, rep)
		return nil
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func renderText(w io.Writer, rep Report) {
	if rep.Transport != "" {
		fmt.Fprintf(w, "transport=%s\n", rep.Transport)
	}
	for i, f := range rep.Frames {
		switch {
		case f.Unit == nil:
			fmt.Fprintf(w, "#%d %-16s %s\n", i, f.Transport, f.Handshake)
		default:
			u := f.Unit
			label := u.Control
			if label == "" && u.Status != nil {
				label = u.Status.CCRC + "/" + u.Status.APRC
			}
			fmt.Fprintf(w, "#%d %-16s %-9s %-32s %s len=%d", i, f.Transport, label, u.Name, u.Direction, u.LengthField)
			if f.CRC != "" {
				fmt.Fprintf(w, " crc=%s", f.CRC)
			}
			fmt.Fprintln(w)
			for _, fv := range u.Fields {
				fmt.Fprintf(w, "    %s %-28s %s\n", fv.Tag, fv.Name, fv.Value)
			}
			if u.FieldsStop != "" {
				fmt.Fprintf(w, "    stop: %s\n", u.FieldsStop)
			}
			if u.Unparsed != "" {
				fmt.Fprintf(w, "    unparsed: %s\n", u.Unparsed)
			}
		}
	}
	fmt.Fprintf(w, "consumed=%d pending=%d", rep.Consumed, rep.Pending)
	if rep.NeedMore {
		fmt.Fprint(w, " need_more")
	}
	if rep.Declined {
		fmt.Fprintf(w, " declined: %s", rep.Error)
	}
	fmt.Fprintln(w)
}
