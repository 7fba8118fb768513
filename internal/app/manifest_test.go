package app

import (
	"encoding/json"
	"testing"

	"github.com/hyperifyio/gosite/internal/pipeline"
	"github.com/hyperifyio/gosite/internal/site"
)

func TestBuildManifestEntries_DigestsAndPageReports(t *testing.T) {
	files := site.NewFileMap()
	files.Set("style.css", "body{}")
	files.Set("index.html", "<html>hello</html>")
	pages := []pipeline.PageReport{{Filename: "index.html", State: pipeline.StateAccepted, Attempts: 2, Score: 95}}

	entries := buildManifestEntries(files, pages)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries; got %d", len(entries))
	}
	if entries[0].Name != "style.css" || entries[0].Bytes != 6 || entries[0].Score != nil || entries[0].State != "" {
		t.Fatalf("unexpected asset entry: %+v", entries[0])
	}
	if entries[0].SHA256 != computeSHA256Hex("body{}") {
		t.Fatalf("digest mismatch")
	}
	idx := entries[1]
	if idx.State != "accepted" || idx.Attempts != 2 || idx.Score == nil || *idx.Score != 95 {
		t.Fatalf("unexpected page entry: %+v", idx)
	}
}

func TestMarshalManifestJSON_EmptyListsAreArrays(t *testing.T) {
	meta := manifestMeta{SiteName: "Crumb", Warnings: nonNilStrings(nil), Errors: nonNilStrings(nil)}
	data, err := marshalManifestJSON(meta, nil)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got map[string]map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := got["meta"]["warnings"].([]any); !ok {
		t.Fatalf("expected warnings array, got %s", data)
	}
}
