package oracle

import (
	"testing"

	"github.com/w4n9H/autocoder-nano-sub001/types"
)

func TestExtractFencedJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "json fence",
			input: "前置说明\n```json\n{\"a\": 1}\n```\n后置说明",
			want:  `{"a": 1}`,
		},
		{
			name:  "bare fence",
			input: "```\n[1, 2]\n```",
			want:  `[1, 2]`,
		},
		{
			name:  "no fence",
			input: "  {\"a\": 1}  ",
			want:  `{"a": 1}`,
		},
		{
			name:  "unterminated fence",
			input: "```json\n{\"a\": 1}",
			want:  `{"a": 1}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractFencedJSON(tt.input); got != tt.want {
				t.Fatalf("extractFencedJSON = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseFileList(t *testing.T) {
	t.Parallel()

	reply := "```json\n{\"file_list\": [" +
		"{\"file_path\": \"a/b.go\", \"reason\": \"direct match\"}," +
		"{\"file_path\": \"  \", \"reason\": \"blank path dropped\"}," +
		"{\"file_path\": \"c/d.go\", \"reason\": \"import relation\"}" +
		"]}\n```"

	got, err := parseFileList(reply)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	if got[0].Path != "a/b.go" || got[1].Path != "c/d.go" {
		t.Fatalf("unexpected paths: %+v", got)
	}

	empty, err := parseFileList("```json\n{\"file_list\": []}\n```")
	if err != nil {
		t.Fatal(err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty list, got %v", empty)
	}

	if _, err := parseFileList("这不是 JSON"); err == nil {
		t.Fatal("expected error for malformed reply")
	} else if types.CodeOf(err) != types.ErrOracleBadReply {
		t.Fatalf("expected ORACLE_BAD_REPLY, got %s", types.CodeOf(err))
	}
}

func TestParseScore(t *testing.T) {
	t.Parallel()

	score, reason, err := parseScore("```json\n{\"relevant_score\": 7, \"reason\": \"需要修改该文件\"}\n```")
	if err != nil {
		t.Fatal(err)
	}
	if score != 7 || reason == "" {
		t.Fatalf("unexpected score=%d reason=%q", score, reason)
	}

	if _, _, err := parseScore("no json here"); err == nil {
		t.Fatal("expected error")
	}
}

func TestParseLineRanges(t *testing.T) {
	t.Parallel()

	got, err := parseLineRanges("```json\n[{\"start_line\": 1, \"end_line\": 5}, {\"start_line\": 9, \"end_line\": 3}, {\"start_line\": 0, \"end_line\": 2}]\n```")
	if err != nil {
		t.Fatal(err)
	}
	// Inverted and zero-based ranges are discarded.
	if len(got) != 1 || got[0] != (types.LineRange{StartLine: 1, EndLine: 5}) {
		t.Fatalf("unexpected ranges: %+v", got)
	}

	empty, err := parseLineRanges("```json\n[]\n```")
	if err != nil {
		t.Fatal(err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected no ranges, got %+v", empty)
	}
}
