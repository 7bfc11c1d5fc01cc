package httpapi

import (
	"html/template"

	"github.com/net4255/visitlog/internal/store"
)

type page struct {
	Project    string
	Name       string
	Version    string
	Hostname   string
	ClientIP   string
	Now        string
	Mode       string
	Limit      int
	NoStore    bool
	Visits     []store.Visit
	StoreError string
}

var pageTmpl = template.Must(template.New("home").Parse(`<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>{{.Project}}</title>
    <style>
      body { font-family: Arial, sans-serif; margin: 40px; }
      .card { max-width: 700px; padding: 20px; border: 1px solid #ddd; border-radius: 12px; }
      h1 { margin-top: 0; }
      code { background: #f5f5f5; padding: 2px 6px; border-radius: 6px; }
      table { border-collapse: collapse; margin-top: 8px; }
      td, th { border: 1px solid #ddd; padding: 4px 10px; text-align: left; }
    </style>
  </head>
  <body>
    <div class="card">
      <h1>{{.Project}}</h1>
      <p><b>Name:</b> {{.Name}}</p>
      <p><b>Version:</b> <code>{{.Version}}</code></p>
      <p><b>Server hostname:</b> <code>{{.Hostname}}</code></p>
      <p><b>Client IP:</b> <code>{{.ClientIP}}</code></p>
      <p><b>Current date:</b> <code>{{.Now}}</code></p>
{{- if .NoStore}}
      <p>This instance does NOT use a database.</p>
{{- else if eq .Mode "client"}}
      <h2>Last {{.Limit}} visits</h2>
      <div id="visits">Loading...</div>
      <script>
        fetch("/api/db?limit={{.Limit}}")
          .then(function (r) { return r.json(); })
          .then(function (data) {
            var el = document.getElementById("visits");
            if (!Array.isArray(data)) {
              el.textContent = "Database unavailable: " + (data.error || "unknown error");
              return;
            }
            if (data.length === 0) {
              el.textContent = "No visits yet.";
              return;
            }
            var t = document.createElement("table");
            t.innerHTML = "<tr><th>Client IP</th><th>Date</th></tr>";
            data.forEach(function (v) {
              var row = t.insertRow();
              row.insertCell().textContent = v.client_ip;
              row.insertCell().textContent = v.date;
            });
            el.replaceChildren(t);
          })
          .catch(function (e) {
            document.getElementById("visits").textContent = "Database unavailable: " + e;
          });
      </script>
{{- else}}
      <h2>Last {{.Limit}} visits</h2>
  {{- if .StoreError}}
      <p>Database unavailable: <code>{{.StoreError}}</code></p>
  {{- else if not .Visits}}
      <p>No visits yet.</p>
  {{- else}}
      <table>
        <tr><th>Client IP</th><th>Date</th></tr>
    {{- range .Visits}}
        <tr><td>{{.ClientIP}}</td><td>{{.Date}}</td></tr>
    {{- end}}
      </table>
  {{- end}}
{{- end}}
    </div>
  </body>
</html>
`))
