package openapi

import (
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
)

func loadSpec(t *testing.T) *openapi3.T {
	t.Helper()
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(Spec)
	if err != nil {
		t.Fatalf("load spec: %v", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		t.Fatalf("spec is not a valid OpenAPI document: %v", err)
	}
	return doc
}

func TestSpecIsValid(t *testing.T) {
	loadSpec(t)
}

func TestSpecCoversServedRoutes(t *testing.T) {
	doc := loadSpec(t)

	routes := []struct {
		path   string
		method string
	}{
		{"/healthz", "GET"},
		{"/api/chat", "POST"},
		{"/api/chat/clear", "POST"},
		{"/api/search", "POST"},
		{"/api/subjects", "GET"},
		{"/api/config", "GET"},
		{"/api/index/scan", "POST"},
		{"/api/index/stats", "GET"},
		{"/api/openapi.yaml", "GET"},
	}
	for _, route := range routes {
		item := doc.Paths.Find(route.path)
		if item == nil {
			t.Errorf("path %s missing from spec", route.path)
			continue
		}
		if item.GetOperation(route.method) == nil {
			t.Errorf("operation %s %s missing from spec", route.method, route.path)
		}
	}
}

func TestChatRequestSchemaBoundsMatchValidation(t *testing.T) {
	doc := loadSpec(t)

	schema := doc.Components.Schemas["ChatRequest"]
	if schema == nil || schema.Value == nil {
		t.Fatal("ChatRequest schema missing")
	}
	question := schema.Value.Properties["question"]
	if question == nil || question.Value == nil {
		t.Fatal("ChatRequest.question schema missing")
	}
	if question.Value.MinLength != 3 {
		t.Fatalf("question minLength = %d, want 3", question.Value.MinLength)
	}
	if question.Value.MaxLength == nil || *question.Value.MaxLength != 2000 {
		t.Fatalf("question maxLength = %v, want 2000", question.Value.MaxLength)
	}
}
