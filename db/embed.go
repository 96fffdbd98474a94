// Package db 内置数据库迁移脚本
package db

import "embed"

//go:embed migrations/*.sql
var Migrations embed.FS
