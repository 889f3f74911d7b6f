/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"errors"
	"fmt"
	"html/template"
	"io"
	"regexp"
	"sort"
	"strings"

	"invoicestudio/internal/render"
)

const htmlPage = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>{{.Title}}</title>
</head>
<body style="margin:0;padding:24px;background:#F3F4F6">
  <div style="{{css .Root.Style}};max-width:820px;margin:0 auto">
    {{range .Root.Children}}{{template "node" .}}{{end}}
  </div>
</body>
</html>
{{define "node"}}
{{- if eq (kind .) "container"}}<section class="{{class .Role}}" style="{{css .Style}}">{{range .Children}}{{template "node" .}}{{end}}</section>
{{else if eq (kind .) "text"}}<div class="{{class .Role}}" style="{{css .Style}}">{{if .Label}}<span class="label">{{.Label}}:</span> {{end}}{{.Text}}</div>
{{else if eq (kind .) "image"}}<img class="{{class .Role}}" src="{{.Src}}" alt="Logo" style="{{css .Style}}" />
{{else if eq (kind .) "table"}}{{$n := .}}<table class="{{class .Role}}" style="width:100%;border-collapse:collapse;color:{{color $n.Style "color"}}">
  <thead><tr>{{range $i, $c := .Columns}}<th style="{{headStyle $n $i}}">{{$c.Header}}</th>{{end}}</tr></thead>
  <tbody>{{range .Rows}}<tr>{{range $i, $cell := .}}<td style="{{cellStyle $n $i}}">{{$cell}}</td>{{end}}</tr>{{end}}</tbody>
</table>
{{end}}{{end}}`

// HTMLOptions controls HTML export.
type HTMLOptions struct {
	Title string
}

var (
	cssValuePattern = regexp.MustCompile(`^[A-Za-z0-9 #.,%'\-]+$`)
	cssKeyPattern   = regexp.MustCompile(`^[a-z-]+$`)
	htmlTemplate    = template.Must(template.New("page").Funcs(template.FuncMap{
		"css":       css,
		"kind":      func(n *render.Node) string { return string(n.Kind) },
		"class":     func(role string) string { return strings.ReplaceAll(role, ".", "-") },
		"color":     func(st map[string]string, k string) template.CSS { return template.CSS(cssValue(st[k], "#1F2937")) },
		"headStyle": headStyle,
		"cellStyle": cellStyle,
	}).Parse(htmlPage))
)

// ExportHTML writes a self-contained HTML page with the resolved styles inlined.
// Style values that are not plain CSS tokens are dropped.
func ExportHTML(t *render.Tree, w io.Writer, opt HTMLOptions) error {
	if t == nil || t.Root == nil {
		return errors.New("export html: empty render tree")
	}
	data := struct {
		Title string
		Root  *render.Node
	}{Title: firstNonEmpty(opt.Title, "Invoice"), Root: t.Root}
	if err := htmlTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("write html: %w", err)
	}
	return nil
}

// ExportHTMLFile writes the page to path, creating parent directories.
func ExportHTMLFile(t *render.Tree, path string, opt HTMLOptions) error {
	return writeFile(path, func(w io.Writer) error { return ExportHTML(t, w, opt) })
}

func cssValue(v, fallback string) string {
	v = strings.TrimSpace(v)
	if v != "" && cssValuePattern.MatchString(v) {
		return v
	}
	return fallback
}

func css(st map[string]string) template.CSS {
	keys := make([]string, 0, len(st))
	for k := range st {
		if cssKeyPattern.MatchString(k) && !strings.HasPrefix(k, "header-") {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if v := cssValue(st[k], ""); v != "" {
			parts = append(parts, k+":"+v)
		}
	}
	return template.CSS(strings.Join(parts, ";"))
}

func align(n *render.Node, i int) string {
	if i < len(n.Columns) && n.Columns[i].Align == "right" {
		return "right"
	}
	return "left"
}

func headStyle(n *render.Node, i int) template.CSS {
	return template.CSS(fmt.Sprintf("padding:8px;text-align:%s;background-color:%s;color:%s",
		align(n, i), cssValue(n.Style["header-background-color"], "#4F46E5"), cssValue(n.Style["header-color"], "#FFFFFF")))
}

func cellStyle(n *render.Node, i int) template.CSS {
	return template.CSS(fmt.Sprintf("padding:8px;text-align:%s;border-bottom:1px solid %s",
		align(n, i), cssValue(n.Style["border-color"], "#E5E7EB")))
}
