package asr

import "testing"

func TestLookupPath(t *testing.T) {
	root := map[string]interface{}{
		"text": "hello",
		"data": map[string]interface{}{
			"items": []interface{}{
				map[string]interface{}{"value": "a"},
				map[string]interface{}{"value": "b"},
			},
		},
		"results": []interface{}{
			map[string]interface{}{
				"alternatives": []interface{}{
					map[string]interface{}{"transcript": "ok"},
				},
			},
		},
	}

	if v, ok := lookupPath(root, "data.items[1].value"); !ok || v != "b" {
		t.Fatalf("expected b, got %v (ok=%v)", v, ok)
	}
	if v, ok := lookupPath(root, "results[0].alternatives[0].transcript"); !ok || v != "ok" {
		t.Fatalf("expected ok, got %v (ok=%v)", v, ok)
	}
	if _, ok := lookupPath(root, "data.items[99].value"); ok {
		t.Fatalf("expected not found")
	}
}

func TestSplitIndexes(t *testing.T) {
	key, idxs, err := splitIndexes("foo[0][1]")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if key != "foo" || len(idxs) != 2 || idxs[0] != 0 || idxs[1] != 1 {
		t.Fatalf("unexpected parse result: key=%s idxs=%v", key, idxs)
	}
	for _, bad := range []string{"foo[", "foo[]", "foo[x]", "foo[0]x"} {
		if _, _, err := splitIndexes(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestExtractTextFallbacks(t *testing.T) {
	if got := extractText([]byte(`{"text":"direct"}`), "missing.path"); got != "direct" {
		t.Fatalf("got %q", got)
	}
	if got := extractText([]byte(`{"text":42}`), ""); got != "42" {
		t.Fatalf("got %q", got)
	}
	if got := extractText([]byte(`{"transcript":"any"}`), ""); got != "any" {
		t.Fatalf("got %q", got)
	}
	if got := extractText([]byte(`not json`), "text"); got != "" {
		t.Fatalf("got %q", got)
	}
}
