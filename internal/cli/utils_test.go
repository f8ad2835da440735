package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/semprompt/internal/models"
	"github.com/hyperjump/semprompt/internal/vector"
)

var testTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func testRecord(id, prompt string) models.PromptRecord {
	return models.PromptRecord{
		ID:        id,
		Prompt:    prompt,
		Response:  "[SimResponse-42] Generated response about: " + prompt,
		CreatedAt: testTime,
	}
}

func TestParseOutputFormat(t *testing.T) {
	for _, s := range []string{"text", "json"} {
		if f, err := ParseOutputFormat(s); err != nil || string(f) != s {
			t.Errorf("ParseOutputFormat(%q) = %q, %v", s, f, err)
		}
	}
	if _, err := ParseOutputFormat("compact"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestWriteRecord(t *testing.T) {
	rec := testRecord("id-1", "how to boil an egg")
	var buf bytes.Buffer
	if err := WriteRecord(&buf, &rec, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"id-1", "how to boil an egg", "2024-03-01T12:00:00Z", "[SimResponse-42]"} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	if err := WriteRecord(&buf, &rec, OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded models.PromptRecord
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if decoded.ID != "id-1" || !decoded.CreatedAt.Equal(testTime) {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestWriteSimilarResults_text(t *testing.T) {
	results := []*models.SimilarResult{
		{PromptRecord: testRecord("a", "cats on mats"), Score: 0.98765},
		{PromptRecord: testRecord("b", "dogs on logs"), Score: 0.5},
	}
	var buf bytes.Buffer
	if err := WriteSimilarResults(&buf, "cats", results, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "Found 2 similar prompts") {
		t.Errorf("missing header:\n%s", out)
	}
	if !strings.Contains(out, "Rank: 1 | Score: 0.9877 | ID: a") {
		t.Errorf("missing first result line:\n%s", out)
	}
	if strings.Index(out, "ID: a") > strings.Index(out, "ID: b") {
		t.Error("results should keep their order")
	}
}

func TestWriteSimilarResults_JSON_empty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSimilarResults(&buf, "q", nil, OutputJSON); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("empty results should encode as [], got %q", buf.String())
	}
}

func TestWritePage(t *testing.T) {
	r1, r2 := testRecord("a", "first"), testRecord("b", "second")
	page := models.NewPromptPage([]*models.PromptRecord{&r1, &r2}, 5, models.PageQuery{Page: 1, PageSize: 2})
	var buf bytes.Buffer
	if err := WritePage(&buf, page, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "Page 1 (size 2) of 5 prompts") || !strings.Contains(out, "More: --page 2") {
		t.Errorf("unexpected page output:\n%s", out)
	}

	buf.Reset()
	if err := WritePage(&buf, page, OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded models.PromptPage
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Total != 5 || !decoded.HasNext || len(decoded.Items) != 2 {
		t.Errorf("decoded page = %+v", decoded)
	}
}

func TestWriteStatus(t *testing.T) {
	disk := int64(4096)
	st := &Status{
		TotalPrompts:   3,
		Embedder:       "hash-bow-v1",
		Dimensions:     384,
		Generator:      "simulator",
		VectorIndex:    vector.Stats{Count: 3, PendingOps: 1, Flushes: 2, FlushInterval: 10, Path: "/tmp/v.spvx", Compression: "lz4"},
		DiskUsageBytes: &disk,
	}
	var buf bytes.Buffer
	if err := WriteStatus(&buf, st, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"prompts:            3", "pending_ops:        1", "disk_usage_bytes:   4096", "hash-bow-v1 (384 dims)", "/tmp/v.spvx", "compression:        lz4"} {
		if !strings.Contains(out, want) {
			t.Errorf("status output missing %q:\n%s", want, out)
		}
	}
}

func TestTruncateWords(t *testing.T) {
	tests := []struct {
		s        string
		maxWords int
		want     string
	}{
		{"one two three", 5, "one two three"},
		{"one two three four", 2, "one two..."},
		{"", 3, ""},
	}
	for _, tt := range tests {
		if got := TruncateWords(tt.s, tt.maxWords); got != tt.want {
			t.Errorf("TruncateWords(%q, %d) = %q, want %q", tt.s, tt.maxWords, got, tt.want)
		}
	}
}
