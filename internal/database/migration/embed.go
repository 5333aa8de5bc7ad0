package migration

import "embed"

// embeddedMigrations 内置的SQL迁移文件
//
//go:embed sql/*.sql
var embeddedMigrations embed.FS
