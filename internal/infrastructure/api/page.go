package api

import (
	"html/template"
	"net/http"

	"github.com/rs/zerolog/log"

	"tomato-demo/internal/domain/entities"
)

var pageTemplate = template.Must(template.New("index").Funcs(template.FuncMap{
	"isLoading": func(s StateResponse) bool { return s.Phase == entities.PhaseLoading },
	"isFailure": func(s StateResponse) bool { return s.Phase == entities.PhaseFailure },
	"safeURL":   func(s string) template.URL { return template.URL(s) },
}).Parse(indexHTML))

func (h *DetectionHandler) renderPage(w http.ResponseWriter, state StateResponse, statusCode int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store, max-age=0")
	w.WriteHeader(statusCode)
	if err := pageTemplate.Execute(w, state); err != nil {
		log.Error().Err(err).Msg("failed to render page")
	}
}

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8"/>
<meta name="viewport" content="width=device-width, initial-scale=1.0"/>
{{if isLoading .}}<meta http-equiv="refresh" content="1"/>{{end}}
<title>Tomato Disease Detection</title>
<script src="https://cdn.tailwindcss.com"></script>
<style>
body { font-family: Inter, system-ui, -apple-system, Segoe UI, Roboto, sans-serif; }
.preview-box{width:100%;height:300px;background:#f3f4f6;border:2px dashed #d1d5db;display:flex;align-items:center;justify-content:center;overflow:hidden}
.preview-box img{max-width:100%;max-height:100%;object-fit:contain}
.loader{border:8px solid #f3f3f3;border-top:8px solid #4caf50;border-radius:50%;width:56px;height:56px;animation:spin 1.2s linear infinite}
@keyframes spin{0%{transform:rotate(0)}100%{transform:rotate(360deg)}}
</style>
</head>
<body class="bg-gray-50 text-gray-800">
<div class="container mx-auto p-4 md:p-8 max-w-4xl">
<header class="text-center mb-8">
<h1 class="text-3xl md:text-4xl font-bold text-gray-900">Tomato Disease Detection</h1>
<p class="text-gray-600 mt-2">Upload a photo of a tomato leaf to identify diseases.</p>
</header>
<main class="bg-white p-6 md:p-8 rounded-2xl shadow-lg">

{{if .Notice}}
<div class="mb-4 p-3 rounded-lg bg-yellow-50 border border-yellow-300 text-yellow-800">{{.Notice}}</div>
{{end}}

<form action="/select" method="post" enctype="multipart/form-data" class="mb-6">
<label class="block text-lg font-semibold mb-2 text-gray-700">1. Choose an image (JPG or PNG, up to 10MB)</label>
<div class="flex gap-3">
<input type="file" name="image" accept="image/jpeg,image/png" class="flex-1" onchange="this.form.submit()"/>
<noscript><button type="submit" class="px-4 py-2 bg-gray-200 rounded-lg">Upload</button></noscript>
</div>
</form>

<div class="preview-box rounded-lg mb-6">
{{with .Candidate}}
  {{if .Preview}}<img src="{{safeURL .Preview}}" alt="{{.FileName}}"/>
  {{else if .PreviewPending}}<span class="text-gray-500">Loading preview...</span>
  {{else}}<span class="text-gray-500">no preview available</span>{{end}}
{{else}}
  <span class="text-gray-400">No image selected</span>
{{end}}
</div>
{{with .Candidate}}<p class="text-sm text-gray-500 mb-4">{{.FileName}} ({{.MimeType}}, {{.Size}} bytes)</p>{{end}}

<div class="flex gap-3 mb-6">
<form action="/detect" method="post" class="flex-1">
<button type="submit" class="w-full px-4 py-3 bg-green-600 text-white rounded-lg font-semibold disabled:opacity-50" {{if not .CanDetect}}disabled{{end}}>2. Detect Disease</button>
</form>
<form action="/reset" method="post">
<button type="submit" class="px-4 py-3 bg-gray-200 rounded-lg">Reset</button>
</form>
</div>

{{if isLoading .}}
<div class="flex flex-col items-center my-8"><div class="loader"></div><p class="mt-3 text-gray-600">Analyzing image...</p></div>
{{end}}

{{if isFailure .}}
<div class="p-4 rounded-lg bg-red-50 border border-red-300 text-red-800 flex items-center justify-between">
<span>{{.Error}}</span>
<form action="/detect" method="post"><button type="submit" class="px-3 py-1 bg-red-600 text-white rounded">Retry</button></form>
</div>
{{end}}

{{with .Result}}
<section class="mt-6">
<div class="p-5 rounded-xl border border-green-200 bg-green-50">
<div class="flex items-center justify-between">
<h2 class="text-2xl font-bold">{{.Primary.Name}}</h2>
<span class="px-3 py-1 rounded-full bg-green-600 text-white text-sm">{{.Primary.Confidence}}</span>
</div>
<h3 class="mt-4 font-semibold">Description</h3>
<p class="text-gray-700">{{.Primary.Description}}</p>
<h3 class="mt-4 font-semibold">Treatment</h3>
<p class="text-gray-700">{{.Primary.Treatment}}</p>
</div>
<div class="grid grid-cols-1 md:grid-cols-2 gap-6 mt-6">
<img src="/chart.png?v={{$.Version}}" alt="Prediction distribution" class="w-full"/>
<ol class="space-y-2">
{{range .Ranked}}<li class="flex justify-between border-b py-1"><span>{{.Rank}}. {{.Label}}</span><span class="font-mono">{{.Confidence}}</span></li>{{end}}
</ol>
</div>
</section>
{{end}}

</main>
</div>
</body>
</html>`
