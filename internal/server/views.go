package server

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/CallMeMhz/feature-gating/pkg/snapshot"
	"github.com/CallMeMhz/feature-gating/pkg/submitguard"
	"github.com/CallMeMhz/feature-gating/pkg/toast"
)

const (
	datastarScript = "https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0-RC.5/bundles/datastar.js"
	tailwindScript = "https://cdn.tailwindcss.com"

	createSnapshotForm = "create-snapshot"
	recentSnapshots    = 20
)

type indexView struct {
	PageID    string
	Toasts    []toast.Element
	Snapshots []snapshot.Snapshot
}

// layout renders the whole page. The toast container is server-rendered so
// toasts are visible before the stream connects.
func layout(v indexView) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		b.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		b.WriteString(`<title>Feature gating</title>`)
		fmt.Fprintf(&b, `<script src="%s"></script>`, tailwindScript)
		fmt.Fprintf(&b, `<script type="module" src="%s"></script>`, datastarScript)
		b.WriteString(`</head><body class="bg-gray-50 p-8">`)
		fmt.Fprintf(&b, `<div data-on-load="@get('%s')"></div>`, templ.EscapeString(streamURL(v.PageID)))
		if _, err := io.WriteString(w, b.String()); err != nil {
			return err
		}
		if err := toast.Mount(v.Toasts).Render(ctx, w); err != nil {
			return err
		}

		b.Reset()
		b.WriteString(`<main class="max-w-2xl mx-auto space-y-8">`)
		writeToastForm(&b, v.PageID)
		writeSnapshotForm(&b, v.PageID)
		writeSnapshotList(&b, v.PageID, v.Snapshots)
		b.WriteString(`</main></body></html>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

func writeToastForm(b *strings.Builder, pageID string) {
	fmt.Fprintf(b, `<form data-on-submit="@post('/toasts?%s=%s', {contentType: 'form'})" class="space-y-2">`,
		pageParam, templ.EscapeString(pageID))
	b.WriteString(`<h2 class="text-lg font-semibold">Show a toast</h2>`)
	b.WriteString(`<input name="message" required class="border rounded p-2 w-full">`)
	b.WriteString(`<select name="category" class="border rounded p-2">`)
	for _, c := range toast.Categories {
		fmt.Fprintf(b, `<option value="%s">%s</option>`, c, c)
	}
	b.WriteString(`</select><button type="submit" class="bg-blue-600 text-white rounded px-4 py-2">Show</button></form>`)
}

func writeSnapshotForm(b *strings.Builder, pageID string) {
	fmt.Fprintf(b, `<form method="post" action="/api/snapshots?%s=%s" class="space-y-2">`,
		pageParam, templ.EscapeString(pageID))
	fmt.Fprintf(b, `<input type="hidden" name="%s" value="%s">`, submitguard.FormField, createSnapshotForm)
	b.WriteString(`<h2 class="text-lg font-semibold">Create a snapshot</h2>`)
	b.WriteString(`<input name="project_id" placeholder="Project id" required class="border rounded p-2 w-full">`)
	b.WriteString(`<input name="remark" placeholder="Remark" class="border rounded p-2 w-full">`)
	b.WriteString(`<button type="submit" class="bg-blue-600 text-white rounded px-4 py-2">Create</button></form>`)
}

func writeSnapshotList(b *strings.Builder, pageID string, snaps []snapshot.Snapshot) {
	b.WriteString(`<section><h2 class="text-lg font-semibold">Recent snapshots</h2><ul class="divide-y">`)
	for i, s := range snaps {
		if i == recentSnapshots {
			break
		}
		fmt.Fprintf(b, `<li class="py-2 flex justify-between"><span>%s <span class="text-gray-500">%s</span></span>`,
			templ.EscapeString(s.ProjectName), templ.EscapeString(s.Remark))
		fmt.Fprintf(b, `<button type="button" class="text-blue-600" data-on-click="@post(&#39;/snapshots/%s/view?%s=%s&#39;)">View</button></li>`,
			templ.EscapeString(s.ID), pageParam, templ.EscapeString(pageID))
	}
	b.WriteString(`</ul></section>`)
}
