package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/zheng/pyflow/internal/display"
	"github.com/zheng/pyflow/internal/export"
	"github.com/zheng/pyflow/internal/flow"
	"github.com/zheng/pyflow/internal/reach"
	"github.com/zheng/pyflow/internal/storage"
)

// Server implements the MCP protocol for pyflow
type Server struct {
	db       *storage.DB
	pipeline *flow.Pipeline
	exporter *export.Exporter
	defaults Defaults
	logger   *slog.Logger
	input    io.Reader
	output   io.Writer
}

// Defaults fill in tool arguments the client leaves out.
type Defaults struct {
	Depth         int
	Roots         []string
	StopFunctions []string
}

// NewServer creates a new MCP server on stdin/stdout
func NewServer(db *storage.DB, pipeline *flow.Pipeline, defaults Defaults, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		db:       db,
		pipeline: pipeline,
		exporter: export.NewExporter(logger),
		defaults: defaults,
		logger:   logger,
		input:    os.Stdin,
		output:   os.Stdout,
	}
}

// JSON-RPC types
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// MCP specific types
type InitializeResult struct {
	ProtocolVersion string       `json:"protocolVersion"`
	ServerInfo      ServerInfo   `json:"serverInfo"`
	Capabilities    Capabilities `json:"capabilities"`
}

type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type Capabilities struct {
	Tools *ToolsCapability `json:"tools,omitempty"`
}

type ToolsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"inputSchema"`
}

type InputSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties,omitempty"`
	Required   []string            `json:"required,omitempty"`
}

type Property struct {
	Type        string      `json:"type"`
	Description string      `json:"description"`
	Default     interface{} `json:"default,omitempty"`
	Enum        []string    `json:"enum,omitempty"`
}

type ToolCallParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

type ToolCallResult struct {
	Content []ContentItem `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

type ContentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Run serves requests until the input ends or ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(s.input)
	// Increase buffer size for large messages
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Text()
		if line == "" {
			continue
		}

		var req Request
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			s.sendError(nil, -32700, "Parse error")
			continue
		}

		s.handleRequest(ctx, &req)
	}

	return scanner.Err()
}

func (s *Server) handleRequest(ctx context.Context, req *Request) {
	switch req.Method {
	case "initialize":
		s.handleInitialize(req)
	case "initialized", "notifications/initialized":
		// Notification, no response needed
	case "tools/list":
		s.handleToolsList(req)
	case "tools/call":
		s.handleToolsCall(ctx, req)
	default:
		s.sendError(req.ID, -32601, fmt.Sprintf("Method not found: %s", req.Method))
	}
}

func (s *Server) handleInitialize(req *Request) {
	result := InitializeResult{
		ProtocolVersion: "2024-11-05",
		ServerInfo: ServerInfo{
			Name:    "pyflow",
			Version: "1.0.0",
		},
		Capabilities: Capabilities{
			Tools: &ToolsCapability{},
		},
	}
	s.sendResult(req.ID, result)
}

func (s *Server) handleToolsList(req *Request) {
	tools := []Tool{
		{
			Name:        "flowgraph",
			Description: "为 Python 函数生成控制流图，按深度内联被调用函数的函数体，返回文本格式的图",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"target": {
						Type:        "string",
						Description: "入口函数：path/to/file.py:func、file.py:Class.method 或 dotted.module:func",
					},
					"depth": {
						Type:        "number",
						Description: "调用展开深度",
						Default:     s.defaults.Depth,
					},
					"format": {
						Type:        "string",
						Description: "输出格式",
						Default:     string(export.FormatMermaid),
						Enum:        []string{string(export.FormatMermaid), string(export.FormatDOT), string(export.FormatJSON), string(export.FormatOutline)},
					},
					"save": {
						Type:        "boolean",
						Description: "是否保存到数据库，保存后可用 trace 查询",
						Default:     false,
					},
				},
				Required: []string{"target"},
			},
		},
		{
			Name:        "runs",
			Description: "列出已保存的运行记录",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"limit": {
						Type:        "number",
						Description: "最多返回的记录数量，默认 20",
						Default:     20,
					},
				},
			},
		},
		{
			Name:        "trace",
			Description: "在已保存的流程图中查询某个节点的前驱和后继",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"run": {
						Type:        "string",
						Description: "运行记录 ID（支持前缀）",
					},
					"node": {
						Type:        "string",
						Description: "节点 ID 或标签片段",
					},
					"up": {
						Type:        "number",
						Description: "向上追溯深度，0表示无限",
					},
					"down": {
						Type:        "number",
						Description: "向下追溯深度，0表示无限",
					},
				},
				Required: []string{"run", "node"},
			},
		},
	}

	s.sendResult(req.ID, map[string]interface{}{"tools": tools})
}

func (s *Server) handleToolsCall(ctx context.Context, req *Request) {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		s.sendError(req.ID, -32602, "Invalid params")
		return
	}

	var result string
	var isError bool

	switch params.Name {
	case "flowgraph":
		result, isError = s.toolFlowgraph(ctx, params.Arguments)
	case "runs":
		result, isError = s.toolRuns(params.Arguments)
	case "trace":
		result, isError = s.toolTrace(params.Arguments)
	default:
		result = fmt.Sprintf("Unknown tool: %s", params.Name)
		isError = true
	}

	s.sendResult(req.ID, ToolCallResult{
		Content: []ContentItem{{Type: "text", Text: result}},
		IsError: isError,
	})
}

func (s *Server) toolFlowgraph(ctx context.Context, args map[string]interface{}) (string, bool) {
	target, ok := args["target"].(string)
	if !ok || target == "" {
		return "错误：需要提供入口函数 target", true
	}
	depth := intArg(args, "depth", s.defaults.Depth)
	format := export.FormatMermaid
	if f, ok := args["format"].(string); ok && f != "" {
		parsed, err := export.ParseFormat(f)
		if err != nil || parsed.IsImage() {
			return fmt.Sprintf("错误：不支持的格式 %q", f), true
		}
		format = parsed
	}

	res, err := s.pipeline.Build(ctx, flow.Request{
		Target:        target,
		Roots:         s.defaults.Roots,
		Depth:         depth,
		StopFunctions: s.defaults.StopFunctions,
	})
	if err != nil {
		return fmt.Sprintf("错误：%v", err), true
	}

	opts := export.DefaultExportOptions()
	opts.Format = format
	opts.Title = target
	var buf bytes.Buffer
	if err := s.exporter.Export(&buf, res.Graph, opts); err != nil {
		return fmt.Sprintf("错误：%v", err), true
	}

	var sb strings.Builder
	st := res.Graph.Stats
	sb.WriteString(fmt.Sprintf("节点: %d | 边: %d | 展开: %d | 未解析: %d\n", st.Nodes, st.Edges, st.Expansions, st.Unresolved))
	if save, _ := args["save"].(bool); save {
		if s.db == nil {
			return "错误：未配置数据库，无法保存", true
		}
		id, err := s.db.SaveRun(res.Graph, storage.RunMeta{Target: target, Depth: depth, Fingerprint: res.Fingerprint})
		if err != nil {
			return fmt.Sprintf("错误：保存失败: %v", err), true
		}
		sb.WriteString(fmt.Sprintf("运行记录: %s\n", id))
	}
	if len(res.Graph.Diagnostics) > 0 {
		sb.WriteString("诊断:\n")
		sb.WriteString(display.FormatDiagnostics(res.Graph.Diagnostics))
	}
	sb.WriteString("\n")
	if format == export.FormatMermaid {
		sb.WriteString("```mermaid\n" + buf.String() + "```\n")
	} else {
		sb.WriteString(buf.String())
	}
	return sb.String(), false
}

func (s *Server) toolRuns(args map[string]interface{}) (string, bool) {
	if s.db == nil {
		return "错误：未配置数据库", true
	}
	runs, err := s.db.ListRuns(intArg(args, "limit", 20))
	if err != nil {
		return fmt.Sprintf("错误：%v", err), true
	}
	return display.FormatRuns(runs), false
}

func (s *Server) toolTrace(args map[string]interface{}) (string, bool) {
	if s.db == nil {
		return "错误：未配置数据库", true
	}
	run, _ := args["run"].(string)
	node, _ := args["node"].(string)
	if run == "" || node == "" {
		return "错误：需要提供 run 和 node", true
	}
	report, err := reach.NewAnalyzer(s.db).Analyze(run, node, intArg(args, "up", 0), intArg(args, "down", 0))
	if err != nil {
		return fmt.Sprintf("错误：%v", err), true
	}
	return report.FormatMarkdown(), false
}

// intArg reads a JSON number argument.
func intArg(args map[string]interface{}, name string, def int) int {
	if v, ok := args[name].(float64); ok {
		return int(v)
	}
	return def
}

func (s *Server) sendResult(id interface{}, result interface{}) {
	resp := Response{
		JSONRPC: "2.0",
		ID:      id,
		Result:  result,
	}
	s.send(resp)
}

func (s *Server) sendError(id interface{}, code int, message string) {
	resp := Response{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &Error{Code: code, Message: message},
	}
	s.send(resp)
}

func (s *Server) send(resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("encode response", slog.String("error", err.Error()))
		return
	}
	fmt.Fprintln(s.output, string(data))
}
