// Package templates renders the small HTML surface of the server: the upload
// page served at / for browsers and the error fragment shown when a form
// post fails.
package templates

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"
)

// UploadPageData is everything the upload page shows.
type UploadPageData struct {
	Service     string
	Version     string
	Tables      []string
	MaxFileSize int64
	AIProvider  string
}

// UploadPage is a single form posting to /convert. Browsers get the CSV as a
// download, or the metadata JSON when the checkbox is ticked.
func UploadPage(d UploadPageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		b.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		b.WriteString(`<title>` + templ.EscapeString(d.Service) + `</title>`)
		b.WriteString(`<style>body{font-family:system-ui,sans-serif;max-width:40rem;margin:3rem auto;padding:0 1rem;color:#1f2937}` +
			`label{display:block;margin:1rem 0 .25rem;font-weight:600}select,input[type=file]{width:100%}` +
			`button{margin-top:1.5rem;padding:.5rem 1.25rem}footer{margin-top:3rem;font-size:.8rem;color:#6b7280}</style>`)
		b.WriteString(`</head><body>`)
		b.WriteString(`<h1>` + templ.EscapeString(d.Service) + `</h1>`)
		b.WriteString(`<p>Upload a CSV export. Its headers are matched to the inventory schema and values are normalised.</p>`)

		b.WriteString(`<form method="post" action="/convert" enctype="multipart/form-data">`)
		b.WriteString(`<label for="file">CSV file</label><input id="file" name="file" type="file" accept=".csv,text/csv" required>`)
		b.WriteString(`<label for="target_table">Target table</label><select id="target_table" name="target_table">`)
		b.WriteString(`<option value="">Detect automatically</option>`)
		for _, t := range d.Tables {
			name := templ.EscapeString(t)
			b.WriteString(`<option value="` + name + `">` + name + `</option>`)
		}
		b.WriteString(`</select>`)
		b.WriteString(`<label><input type="checkbox" name="return_metadata" value="true"> Show mapping details instead of downloading</label>`)
		b.WriteString(`<button type="submit">Convert</button></form>`)

		b.WriteString(`<footer>` + templ.EscapeString(d.Version))
		if d.AIProvider != "" {
			b.WriteString(` &middot; mapping by ` + templ.EscapeString(d.AIProvider))
		}
		if d.MaxFileSize > 0 {
			b.WriteString(` &middot; up to ` + templ.EscapeString(formatSize(d.MaxFileSize)))
		}
		b.WriteString(`</footer></body></html>`)

		_, err := io.WriteString(w, b.String())
		return err
	})
}

// ErrorAlert renders a user message with its support code.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<div role="alert" class="error"><strong>` + templ.EscapeString(message) + `</strong>`)
		if action != "" {
			b.WriteString(`<p>` + templ.EscapeString(action) + `</p>`)
		}
		if code != "" {
			b.WriteString(`<small>Code: ` + templ.EscapeString(code) + `</small>`)
		}
		b.WriteString(`</div>`)

		_, err := io.WriteString(w, b.String())
		return err
	})
}

func formatSize(n int64) string {
	const unit = 1024
	switch {
	case n >= unit*unit:
		return fmt.Sprintf("%.0f MB", float64(n)/(unit*unit))
	case n >= unit:
		return fmt.Sprintf("%.0f KB", float64(n)/unit)
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}
