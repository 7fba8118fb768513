package app

import (
	"github.com/hyperifyio/gosite/internal/pipeline"
	"github.com/hyperifyio/gosite/internal/store"
)

// storeRun converts a finished outcome into its persisted form.
func storeRun(out pipeline.Outcome) store.Run {
	res := out.Result
	r := store.Run{
		ScopeID:      out.ScopeID,
		SiteName:     out.Request.SiteName,
		Mode:         string(res.Mode),
		RootPrompt:   out.Request.RootPrompt,
		Success:      res.Success,
		QualityScore: res.QualityScore,
		Warnings:     res.Warnings,
		Errors:       res.Errors,
	}
	if res.Files != nil {
		res.Files.Each(func(name, content string) {
			r.Files = append(r.Files, store.File{Name: name, Content: content})
		})
	}
	for _, p := range out.Pages {
		r.Pages = append(r.Pages, store.Page{
			Filename: p.Filename,
			State:    string(p.State),
			Attempts: p.Attempts,
			Score:    p.Score,
		})
	}
	return r
}
