package mdadapter

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	src := []byte(`---
title: "Sync 2024-05-01"
run_id: "abc"
errors: 2
---

# Outcomes

| outcome | count |
|---|---|
| downloaded | 3 |
`)

	r, err := NewRenderer()
	require.NoError(t, err)

	out, err := r.Render(src)
	require.NoError(t, err)

	require.Contains(t, out, "<title>Sync 2024-05-01</title>")
	require.Contains(t, out, "<h1>Outcomes</h1>")
	require.Contains(t, out, "<table>")
	require.Contains(t, out, "<td>downloaded</td>")
	require.NotContains(t, out, "run_id")
}

func TestRenderWithoutFrontMatter(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	out, err := r.Render([]byte("no front matter & <b>"))
	require.NoError(t, err)

	require.Contains(t, out, "<title>"+defaultTitle+"</title>")
	require.Contains(t, out, "no front matter &amp;")
}
