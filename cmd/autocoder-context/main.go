// =============================================================================
// autocoder-context 主入口
// =============================================================================
// 上下文预算子系统的命令行外壳：文件相关性圈选与对话裁剪
//
// 使用方法:
//
//	autocoder-context select --query "..." file1.go file2.go   # 圈选相关文件
//	autocoder-context prune --input conv.json                  # 裁剪对话
//	autocoder-context version                                  # 显示版本信息
// =============================================================================

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	autocoder "github.com/w4n9H/autocoder-nano-sub001"
	"github.com/w4n9H/autocoder-nano-sub001/config"
	"github.com/w4n9H/autocoder-nano-sub001/oracle"
	"github.com/w4n9H/autocoder-nano-sub001/pruner"
	"github.com/w4n9H/autocoder-nano-sub001/types"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "select":
		runSelect(os.Args[2:])
	case "prune":
		runPrune(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// =============================================================================
// 🔍 select 命令
// =============================================================================

func runSelect(args []string) {
	fs := flag.NewFlagSet("select", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	query := fs.String("query", "", "User query driving relevance filtering")
	asJSON := fs.Bool("json", false, "Emit the full selection as JSON instead of the payload")
	fs.Parse(args)

	if *query == "" {
		fmt.Fprintln(os.Stderr, "select requires --query")
		os.Exit(1)
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "select requires at least one file path")
		os.Exit(1)
	}

	system, logger := buildSystem(*configPath)
	defer logger.Sync()

	files := make([]types.SourceFile, 0, fs.NArg())
	for _, path := range fs.Args() {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read %s: %v\n", path, err)
			os.Exit(1)
		}
		files = append(files, types.SourceFile{Path: path, Content: string(data)})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	selection, err := system.SelectFiles(ctx, files, *query)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Selection failed: %v\n", err)
		os.Exit(1)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(selection); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode selection: %v\n", err)
			os.Exit(1)
		}
		return
	}

	fmt.Print(selection.Payload)
	fmt.Fprintf(os.Stderr, "%d/%d files selected, %d payload tokens\n",
		len(selection.Files), len(files), selection.PayloadTokens)
}

// =============================================================================
// ✂️ prune 命令
// =============================================================================

func runPrune(args []string) {
	fs := flag.NewFlagSet("prune", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	input := fs.String("input", "-", "Conversation JSON file, or - for stdin")
	budget := fs.Int("budget", 0, "Token budget override (0 uses the configured budget)")
	strategy := fs.String("strategy", "", "Prune strategy override (delete/score/extract/truncate/summarize/hybrid)")
	fs.Parse(args)

	system, logger := buildSystem(*configPath)
	defer logger.Sync()

	var data []byte
	var err error
	if *input == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(*input)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read conversation: %v\n", err)
		os.Exit(1)
	}

	var msgs []types.Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid conversation JSON: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	var result *types.PruneResult
	if *budget > 0 || *strategy != "" {
		b := *budget
		if b == 0 {
			b = system.Config().Pruner.ConversationBudget
		}
		strat := pruner.Strategy(*strategy)
		if *strategy == "" {
			strat = pruner.Strategy(system.Config().Pruner.Strategy)
		}
		result, err = system.Conversation.Prune(ctx, msgs, b, strat)
	} else {
		result, err = system.PruneConversation(ctx, msgs)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Prune failed: %v\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result.Messages); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode messages: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "state=%s tokens %d -> %d, dropped %d units\n",
		result.State, result.OriginalTokens, result.FinalTokens, result.DroppedUnits)
}

// =============================================================================
// 🔧 系统装配
// =============================================================================

func buildSystem(configPath string) (*autocoder.System, *zap.Logger) {
	loader := config.NewLoader()
	if configPath != "" {
		loader = loader.WithConfigPath(configPath)
	}

	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := cfg.Log.BuildLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(1)
	}

	completer := oracle.NewHTTPCompleter(oracle.HTTPCompleterConfig{
		APIKey:  os.Getenv("AUTOCODER_API_KEY"),
		BaseURL: baseURL(),
	})

	system, err := autocoder.New(completer,
		autocoder.WithConfig(cfg),
		autocoder.WithLogger(logger),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build system: %v\n", err)
		os.Exit(1)
	}
	return system, logger
}

func baseURL() string {
	if v := os.Getenv("AUTOCODER_BASE_URL"); v != "" {
		return v
	}
	return "https://api.openai.com"
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion() {
	fmt.Printf("autocoder-context %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`autocoder-context - LLM 上下文预算工具

Usage:
  autocoder-context <command> [options]

Commands:
  select    Pick query-relevant files and emit a token-counted payload
  prune     Shrink a conversation to its token budget
  version   Show version information
  help      Show this help message

Options for 'select':
  --config <path>   Path to configuration file (YAML)
  --query <text>    User query driving relevance filtering
  --json            Emit the full selection (candidates, verdicts) as JSON

Options for 'prune':
  --config <path>   Path to configuration file (YAML)
  --input <path>    Conversation JSON file (default: stdin)
  --budget <n>      Token budget override
  --strategy <s>    delete | score | extract | truncate | summarize | hybrid

Environment:
  AUTOCODER_API_KEY    API key for the completion endpoint
  AUTOCODER_BASE_URL   OpenAI-compatible base URL (default: https://api.openai.com)

Examples:
  autocoder-context select --query "fix the upload handler" src/*.go
  autocoder-context prune --input conversation.json --strategy hybrid
  autocoder-context version`)
}
