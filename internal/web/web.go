// Package web holds the embedded pad page.
package web

import _ "embed"

//go:embed index.html
var IndexHTML []byte
