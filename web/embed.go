package web

import "embed"

// TemplatesFS embeds the page and PDF templates.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS embeds the stylesheet served under /static/.
//
//go:embed static/*
var StaticFS embed.FS
