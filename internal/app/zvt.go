package app

import (
	cfgpkg "github.com/taoyao-code/zvt-tap/internal/config"
	"github.com/taoyao-code/zvt-tap/internal/protocol/zvt"
)

// ParserOptions 配置映射为解析选项
func ParserOptions(cfg cfgpkg.ZVTConfig) zvt.Options {
	return zvt.Options{
		StrictMinLength:   cfg.StrictMinLength,
		StatusLengthField: cfg.StatusLengthField,
	}
}

// TransportMode 配置映射为解码模式；auto 为首包自动识别
func TransportMode(cfg cfgpkg.ZVTConfig) zvt.Transport {
	switch cfg.Transport {
	case "stream":
		return zvt.TransportStream
	case "serial":
		return zvt.TransportSerial
	default:
		return zvt.TransportNone
	}
}
