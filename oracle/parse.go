package oracle

import (
	"encoding/json"
	"strings"

	"github.com/w4n9H/autocoder-nano-sub001/types"
)

// 模型响应里的结构化负载约定放在 fenced json 代码块中；
// 容错处理裸 JSON 与无语言标注的代码块。

// extractFencedJSON 取出响应中第一个代码块的内容；
// 没有代码块时返回去除首尾空白的原文。
func extractFencedJSON(s string) string {
	start := strings.Index(s, "```")
	if start < 0 {
		return strings.TrimSpace(s)
	}
	rest := s[start+3:]
	// 跳过语言标注行（如 json）。
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		lang := strings.TrimSpace(rest[:nl])
		if lang == "" || len(lang) <= 8 && !strings.ContainsAny(lang, "{}[]") {
			rest = rest[nl+1:]
		}
	}
	if end := strings.Index(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

// fileListReply 对应 Level-1/Level-2 查询的响应负载。
type fileListReply struct {
	FileList []struct {
		FilePath string `json:"file_path"`
		Reason   string `json:"reason"`
	} `json:"file_list"`
}

func parseFileList(content string) ([]types.Candidate, error) {
	payload := extractFencedJSON(content)
	var reply fileListReply
	if err := json.Unmarshal([]byte(payload), &reply); err != nil {
		return nil, types.NewError(types.ErrOracleBadReply, "malformed file list reply").WithCause(err)
	}

	candidates := make([]types.Candidate, 0, len(reply.FileList))
	for _, f := range reply.FileList {
		path := strings.TrimSpace(f.FilePath)
		if path == "" {
			continue
		}
		candidates = append(candidates, types.Candidate{Path: path, Reason: f.Reason})
	}
	return candidates, nil
}

// scoreReply 对应相关性打分的响应负载。
type scoreReply struct {
	RelevantScore int    `json:"relevant_score"`
	Reason        string `json:"reason"`
}

func parseScore(content string) (int, string, error) {
	payload := extractFencedJSON(content)
	var reply scoreReply
	if err := json.Unmarshal([]byte(payload), &reply); err != nil {
		return 0, "", types.NewError(types.ErrOracleBadReply, "malformed score reply").WithCause(err)
	}
	return reply.RelevantScore, reply.Reason, nil
}

func parseLineRanges(content string) ([]types.LineRange, error) {
	payload := extractFencedJSON(content)
	var ranges []types.LineRange
	if err := json.Unmarshal([]byte(payload), &ranges); err != nil {
		return nil, types.NewError(types.ErrOracleBadReply, "malformed snippet reply").WithCause(err)
	}

	valid := ranges[:0]
	for _, r := range ranges {
		if r.StartLine <= 0 || r.EndLine < r.StartLine {
			continue
		}
		valid = append(valid, r)
	}
	return valid, nil
}
