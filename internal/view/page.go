package view

import (
	"net/http"

	"github.com/nexusride/nexusride-web/internal/access"
	"github.com/nexusride/nexusride-web/internal/shared"
)

// Page assembles the TemplateData every page carries: CSRF token, pending
// flash, viewer identity and the variant granted by the access gate.
func Page(r *http.Request, csrf *shared.CSRFManager, title string, data any) TemplateData {
	ctx := r.Context()
	sess := shared.SessionFromContext(ctx)
	token := ""
	if csrf != nil {
		token, _ = csrf.EnsureToken(ctx, sess)
	}
	td := TemplateData{
		Title:       title,
		CSRFToken:   token,
		Flash:       sess.PopFlash(),
		CurrentPath: r.URL.Path,
		Viewer:      sess.Restore(),
		Data:        data,
	}
	if grant, ok := access.GrantFromContext(ctx); ok {
		td.Variant = string(grant.Decision.Variant)
	}
	return td
}
