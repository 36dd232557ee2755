package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// uploadPageName is the template key registered on the router.
const uploadPageName = "upload"

// uploadPageHTML is the whole web UI. The tool runs on localhost for one
// user, so a single inline page beats carrying a templates directory.
const uploadPageHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>FableParser</title>
<style>
  body { font-family: -apple-system, "Segoe UI", sans-serif; max-width: 44rem; margin: 2rem auto; padding: 0 1rem; color: #1f2430; }
  h1 { font-size: 1.5rem; }
  form { border: 1px solid #d5d9e0; border-radius: 8px; padding: 1rem; margin-bottom: 1rem; }
  label { display: block; margin: 0.5rem 0; }
  button { padding: 0.4rem 1.2rem; border-radius: 6px; border: 1px solid #2c6e49; background: #2c6e49; color: #fff; cursor: pointer; }
  button:disabled { opacity: 0.5; cursor: wait; }
  table { border-collapse: collapse; width: 100%; margin-top: 1rem; }
  th, td { text-align: left; padding: 0.3rem 0.6rem; border-bottom: 1px solid #e3e6eb; font-size: 0.9rem; }
  .degraded { color: #a05a00; }
  .failed { color: #a01a00; }
  .error { color: #a01a00; margin-top: 1rem; }
  .muted { color: #6b7280; font-size: 0.85rem; }
</style>
</head>
<body>
<h1>📚 FableParser</h1>
<p class="muted">Upload a Fable bookshelf screenshot. Each detected book is matched against Open Library and written as a markdown document.</p>
<form id="upload-form">
  <label>Screenshot <input type="file" name="image" accept=".png,.jpg,.jpeg,.webp,.gif" required></label>
  {{if .RaindropEnabled}}<label><input type="checkbox" name="raindrop" value="true" checked> Mirror to Raindrop</label>{{end}}
  {{if .VaultEnabled}}<label><input type="checkbox" name="vault" value="true" checked> Mirror to Obsidian vault</label>{{end}}
  <button type="submit" id="submit-btn">Process</button>
</form>
<div id="result"></div>
<p class="muted">Run history: <a href="/api/runs">/api/runs</a> · Health: <a href="/health">/health</a></p>
<script>
const form = document.getElementById("upload-form");
const result = document.getElementById("result");
const btn = document.getElementById("submit-btn");

form.addEventListener("submit", async (e) => {
  e.preventDefault();
  const data = new FormData(form);
  for (const name of ["raindrop", "vault"]) {
    const box = form.querySelector('input[name="' + name + '"]');
    if (box && !box.checked) data.set(name, "false");
  }
  btn.disabled = true;
  result.innerHTML = '<p class="muted">Processing…</p>';
  try {
    const resp = await fetch("/api/process", { method: "POST", body: data });
    const body = await resp.json();
    if (!resp.ok) {
      result.innerHTML = '<p class="error">' + (body.error || resp.statusText) + "</p>";
      return;
    }
    let rows = "";
    for (const o of body.outcomes) {
      rows += "<tr class=\"" + o.status + "\"><td>" + (o.position + 1) + "</td><td>" +
        o.record.title + "</td><td>" + o.record.author + "</td><td>" + o.status +
        "</td><td>" + (o.identity.slug || "") + "</td></tr>";
    }
    result.innerHTML =
      "<p>" + body.outcomes.length + " books: " + body.enriched + " enriched, " +
      body.degraded + " degraded, " + body.failed + " failed.</p>" +
      "<table><tr><th>#</th><th>Title</th><th>Author</th><th>Outcome</th><th>Document</th></tr>" +
      rows + "</table>";
  } catch (err) {
    result.innerHTML = '<p class="error">' + err + "</p>";
  } finally {
    btn.disabled = false;
  }
});
</script>
</body>
</html>`

// UIController serves the upload page.
type UIController struct {
	raindropEnabled bool
	vaultEnabled    bool
}

func NewUIController(raindropEnabled, vaultEnabled bool) *UIController {
	return &UIController{
		raindropEnabled: raindropEnabled,
		vaultEnabled:    vaultEnabled,
	}
}

// UploadPage handles GET /
func (controller *UIController) UploadPage(c *gin.Context) {
	c.HTML(http.StatusOK, uploadPageName, gin.H{
		"RaindropEnabled": controller.raindropEnabled,
		"VaultEnabled":    controller.vaultEnabled,
	})
}
