// Package templates renders the confpushd web pages.
package templates

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"

	"github.com/lichlabs/confpush/internal/profile"
)

// EditorPage renders the profile editor: one table per level with every
// field, plus a small script that POSTs edited fields to /send.
func EditorPage(set profile.Set, clients int) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, pageHead); err != nil {
			return err
		}
		fmt.Fprintf(w, "<p class=\"meta\">%d device(s) connected</p>\n", clients)

		for _, level := range set.Levels() {
			t := set[level]
			fmt.Fprintf(w, "<details%s><summary>Level %d</summary>\n", openAttr(level), level)
			fmt.Fprintf(w, "<form data-level=\"level%d\"><table>\n", level)
			renderSection(w, "Base", profile.BaseFields, t)
			renderSection(w, "Draw (per 10000)", profile.DrawFields, t)
			renderSection(w, "Bonus (per 10000)", profile.BonusFields, t)
			io.WriteString(w, "</table><button type=\"submit\">Send</button></form></details>\n")
		}

		_, err := io.WriteString(w, pageFoot)
		return err
	})
}

func openAttr(level int) string {
	if level == profile.MinLevel {
		return " open"
	}
	return ""
}

func renderSection(w io.Writer, title string, fields []string, t profile.Table) {
	fmt.Fprintf(w, "<tr><th colspan=\"2\">%s</th></tr>\n", templ.EscapeString(title))
	for _, f := range fields {
		fmt.Fprintf(w, "<tr><td>%s</td><td><input name=%q type=\"number\" value=\"%d\"></td></tr>\n",
			templ.EscapeString(f), f, t[f])
	}
}

const pageHead = `<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>confpush</title>
<style>
  body { font-family: system-ui; max-width: 800px; margin: 2rem auto; padding: 0 1rem; }
  table { border-collapse: collapse; }
  td, th { padding: 0.2rem 0.6rem; text-align: left; }
  input { width: 6rem; padding: 0.2rem; }
  button { margin-top: 0.5rem; padding: 0.4rem 1rem; cursor: pointer; }
  .meta { color: #666; }
  details { margin-bottom: 1rem; }
</style>
</head><body>
<h1>confpush</h1>
`

const pageFoot = `<script>
document.querySelectorAll("form[data-level]").forEach(function (form) {
  form.addEventListener("submit", function (ev) {
    ev.preventDefault();
    var fields = {};
    form.querySelectorAll("input").forEach(function (input) {
      fields[input.name] = parseInt(input.value, 10);
    });
    var body = {};
    body[form.dataset.level] = fields;
    fetch("/send", {
      method: "POST",
      headers: { "Content-Type": "application/json" },
      body: JSON.stringify(body),
    }).then(function (resp) {
      form.querySelector("button").textContent = resp.ok ? "Sent" : "Error " + resp.status;
    });
  });
});
</script>
</body></html>
`
