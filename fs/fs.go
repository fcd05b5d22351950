package appfs

import "embed"

// FS embeds runtime assets: DB migrations and email templates.
// The glob on the templates dir is deliberate: directory patterns skip
// underscore-prefixed files, which would leave out the _base layouts.
//go:embed migrations assets/templates/email/*
var FS embed.FS
