package appfs

import "embed"

// FS holds the SQL migrations and the email templates.
// The templates are matched by glob so that the `_base` layouts are embedded too.
//go:embed migrations assets/templates/email/*
var FS embed.FS
