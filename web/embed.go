// Package web embeds the map page and its assets.
package web

import "embed"

// Content holds index.html (an html/template taking .Satellite), app.js
// and styles.css.
//
//go:embed index.html app.js styles.css
var Content embed.FS
