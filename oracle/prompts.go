package oracle

import (
	"fmt"
	"strings"

	"github.com/w4n9H/autocoder-nano-sub001/types"
)

// 提示词模板。输出格式约定（fenced json）与解析端 parse.go 一一对应。

func promptTargetFilesByQuery(indices, query string) string {
	return fmt.Sprintf(`下面是已知文件以及对应的符号信息：

%s

用户的问题是：

%s

现在，请根据用户的问题以及前面的文件和符号信息，寻找相关文件路径。返回结果按如下格式：

`+"```json"+`
{
    "file_list": [
        {"file_path": "path/to/file.go", "reason": "The reason why the file is the target file"}
    ]
}
`+"```"+`

如果没有找到，返回如下 json 即可：

`+"```json"+`
{"file_list": []}
`+"```"+`

请严格遵循以下步骤：

1. 查找 query 中的 @ 符号，它后面的内容是用户关注的文件路径；@@ 后面的内容是用户关注的符号。
2. 路径匹配应该是部分匹配，因为用户可能只提供了路径的一部分。
3. 对于符号，在所有文件的符号信息中查找该符号。
4. 利用导入语句信息确定文件间的依赖关系，相关文件的直接依赖也应包括。
5. 使用每个文件的用途信息来判断其与查询的相关性。
6. 请严格按格式要求返回结果，无需额外的说明。`, indices, query)
}

func promptRelatedFiles(indices string, paths []string) string {
	return fmt.Sprintf(`下面是所有文件以及对应的符号信息：

%s

请参考上面的信息，找到被下列文件使用或者引用到的文件列表：

%s

请按如下格式进行输出：

`+"```json"+`
{
    "file_list": [
        {"file_path": "path/to/file.go", "reason": "The reason why the file is the target file"}
    ]
}
`+"```"+`

如果没有相关的文件，输出如下 json 即可：

`+"```json"+`
{"file_list": []}
`+"```"+`

注意，
1. 找到的文件名必须出现在上面的文件列表中
2. 原因控制在20字以内
3. 请严格按格式要求返回结果，无需额外的说明`, indices, strings.Join(paths, "\n"))
}

func promptVerifyFileRelevance(content, query string) string {
	return fmt.Sprintf(`请验证下面的文件内容是否与用户问题相关:

文件内容:
%s

用户问题:
%s

相关是指，需要依赖这个文件提供上下文，或者需要修改这个文件才能解决用户的问题。
请给出相应的可能性分数：0-10，并结合用户问题，理由控制在50字以内。
请严格按格式要求返回结果。格式如下:

`+"```json"+`
{
    "relevant_score": 0-10,
    "reason": "这是相关的原因..."
}
`+"```", content, query)
}

func promptScoreMessage(content, query string) string {
	return fmt.Sprintf(`请验证下面的内容是否与用户当前的问题相关:

内容:
%s

用户问题:
%s

相关是指，继续解决用户的问题时仍需要依赖这段内容。
请给出相应的可能性分数：0-10，理由控制在50字以内。格式如下:

`+"```json"+`
{
    "relevant_score": 0-10,
    "reason": "这是相关的原因..."
}
`+"```", content, query)
}

func promptExtractSnippets(numberedContent, query string, partial bool) string {
	note := ""
	if partial {
		note = `
<partial_content_process_note>
当前处理的是文件的局部内容，请仅基于当前可见内容判断相关性，返回标注的行号区间。
</partial_content_process_note>
`
	}
	return fmt.Sprintf(`根据提供的代码内容和用户问题提取相关代码片段。

输入:
1. 代码内容（每行行首为绝对行号）:
<code_file>
%s
</code_file>
%s
2. 用户问题:
<query>
%s
</query>

任务:
1. 在代码中找出与问题相关的一个或多个重要代码段。
2. 对每个相关代码段，确定其起始行号(start_line)和结束行号(end_line)。
3. 代码段数量不超过4个。

输出要求:
1. 返回一个JSON数组，每个元素包含"start_line"和"end_line"。
2. 行号从1开始计数。
3. 如果没有相关代码段，返回空数组[]。

输出格式: 严格的JSON数组，不包含其他文字或解释。

`+"```json"+`
[
    {"start_line": 起始行号, "end_line": 结束行号}
]
`+"```", numberedContent, note, query)
}

func promptSummarizeMessage(content, query string, maxTokens int) string {
	return fmt.Sprintf(`请围绕用户问题，将以下内容压缩为不超过 %d token 的语义摘录，
保留关键决策、代码标识符与技术细节，直接输出摘录本身，不要任何解释：

用户问题:
%s

内容:
<content>
%s
</content>`, maxTokens, query, content)
}

func promptSummarizeGroup(msgs []types.Message) string {
	var sb strings.Builder
	for _, m := range msgs {
		sb.WriteString(fmt.Sprintf("<%s>: %s\n", m.Role, m.Content))
	}
	return fmt.Sprintf(`请将以下对话浓缩为要点, 保留关键决策和技术细节, 浓缩要点字数要求为原文的 30%% 左右：

<history_conversations>
%s</history_conversations>`, sb.String())
}

func promptExtractSymbols(path, code string) string {
	return fmt.Sprintf(`你的目标是从给定的代码中获取代码里的符号，需要获取的符号类型包括：

1. 函数
2. 类型
3. 变量
4. 所有导入语句

如果没有任何符号，返回空字符串就行。
如果有符号，按如下格式返回:

{符号类型}: {符号名称}, {符号名称}, ...

注意：
1. 直接输出结果，不要尝试使用任何代码
2. 不要分析代码的内容和目的
3. 用途的长度不能超过100字符
4. 导入语句的分隔符为^^

下列是文件 %s 的源码：

%s`, path, code)
}
