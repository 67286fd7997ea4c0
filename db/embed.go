// Package db 内嵌数据库迁移脚本
package db

import "embed"

// Migrations 迁移脚本，文件名形如 0001_xxx_up.sql / 0001_xxx_down.sql
//
//go:embed migrations/*.sql
var Migrations embed.FS
