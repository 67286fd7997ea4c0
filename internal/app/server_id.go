package app

import (
	"os"
	"strings"

	"github.com/google/uuid"

	cfgpkg "github.com/taoyao-code/zvt-tap/internal/config"
)

// ServerID 实例标识，用于 Redis 会话归属与事件来源
// app.serverId 非空时直接使用，否则为 {app.name}-{主机名}-{uuid前8位}
func ServerID(cfg cfgpkg.AppConfig) string {
	if id := strings.TrimSpace(cfg.ServerID); id != "" {
		return id
	}
	name := cfg.Name
	if name == "" {
		name = "zvt-tap"
	}
	return name + "-" + hostLabel() + "-" + uuid.NewString()[:8]
}

// hostLabel 主机名转小写，点号替换为横线，便于拼进 Redis key
func hostLabel() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "unknown"
	}
	return strings.ReplaceAll(strings.ToLower(host), ".", "-")
}
