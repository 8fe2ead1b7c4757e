package cmd

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/quatton/kino/pkg/kapi"
	"github.com/quatton/kino/pkg/kapi/routes"
)

func TestRenderOpenAPIFormats(t *testing.T) {
	api := kapi.NewApi()
	routes.RegisterAPI(api.Api, nil)
	doc := api.Api.OpenAPI()

	data, err := renderOpenAPI(doc, "json", true)
	if err != nil {
		t.Fatalf("json: %v", err)
	}
	var parsed map[string]any
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("json output does not parse: %v", err)
	}
	if v, _ := parsed["openapi"].(string); !strings.HasPrefix(v, "3.0") {
		t.Errorf("expected a 3.0 document, got %v", parsed["openapi"])
	}

	data, err = renderOpenAPI(doc, "yaml", false)
	if err != nil {
		t.Fatalf("yaml: %v", err)
	}
	if !strings.Contains(string(data), "/render/queue") || !strings.Contains(string(data), kapi.Version) {
		t.Errorf("yaml output missing expected content")
	}

	if _, err := renderOpenAPI(doc, "toml", false); err == nil {
		t.Error("unknown format should fail")
	}
}
