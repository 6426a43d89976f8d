package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Config represents the mock project configuration
type Config struct {
	OutputDir      string
	NumPackages    int
	NumFuncsPerPkg int
	MaxDepth       int
	CallDensity    float64 // 每个函数平均调用几个其他函数
	Seed           int64
}

// FuncInfo represents a function in the mock project
type FuncInfo struct {
	Package  string
	Name     string
	FullName string
	Depth    int
	PkgIdx   int
}

// CallInfo represents a function call
type CallInfo struct {
	Package  string
	FuncName string
}

type generator struct {
	cfg *Config
	rng *rand.Rand
}

func main() {
	cfg := Config{}
	flag.StringVar(&cfg.OutputDir, "o", "./mock-project", "输出目录")
	flag.IntVar(&cfg.NumPackages, "pkgs", 20, "包数量")
	flag.IntVar(&cfg.NumFuncsPerPkg, "funcs", 100, "每个包的函数数量")
	flag.IntVar(&cfg.MaxDepth, "depth", 10, "最大调用深度")
	flag.Float64Var(&cfg.CallDensity, "density", 3.0, "平均每个函数调用几个其他函数")
	flag.Int64Var(&cfg.Seed, "seed", 1, "随机种子")
	flag.Parse()

	fmt.Printf("正在生成 mock Python 项目...\n")
	fmt.Printf("  包数量: %d\n", cfg.NumPackages)
	fmt.Printf("  每包函数数: %d\n", cfg.NumFuncsPerPkg)
	fmt.Printf("  总函数数: %d\n", cfg.NumPackages*cfg.NumFuncsPerPkg)
	fmt.Printf("  最大深度: %d\n", cfg.MaxDepth)
	fmt.Printf("  调用密度: %.1f\n", cfg.CallDensity)

	if err := generateProject(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\n✓ 项目生成完成: %s\n", cfg.OutputDir)
	fmt.Printf("\n下一步:\n")
	fmt.Printf("  pyflow render %s:main --depth %d -f svg\n", filepath.Join(cfg.OutputDir, "main.py"), cfg.MaxDepth)
}

func generateProject(cfg *Config) error {
	g := &generator{cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed))}

	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return err
	}

	allFuncs := g.funcRegistry()
	funcsByDepth := organizeFuncsByDepth(allFuncs, cfg.MaxDepth)

	for pkgIdx := 0; pkgIdx < cfg.NumPackages; pkgIdx++ {
		pkgName := fmt.Sprintf("pkg%02d", pkgIdx)
		if err := g.generatePackage(pkgName, pkgIdx, funcsByDepth, allFuncs); err != nil {
			return err
		}
		fmt.Printf("  ✓ 生成包 %s (%d/%d)\n", pkgName, pkgIdx+1, cfg.NumPackages)
	}

	return generateEntry(cfg, funcsByDepth[0])
}

func (g *generator) funcRegistry() []*FuncInfo {
	var funcs []*FuncInfo
	for pkgIdx := 0; pkgIdx < g.cfg.NumPackages; pkgIdx++ {
		pkgName := fmt.Sprintf("pkg%02d", pkgIdx)
		for funcIdx := 0; funcIdx < g.cfg.NumFuncsPerPkg; funcIdx++ {
			funcName := fmt.Sprintf("func_%04d", funcIdx)
			funcs = append(funcs, &FuncInfo{
				Package:  pkgName,
				Name:     funcName,
				FullName: fmt.Sprintf("%s.%s", pkgName, funcName),
				PkgIdx:   pkgIdx,
			})
		}
	}
	return funcs
}

func organizeFuncsByDepth(allFuncs []*FuncInfo, maxDepth int) [][]*FuncInfo {
	funcsByDepth := make([][]*FuncInfo, maxDepth+1)

	// 均匀分配函数到各个深度层
	for i, fn := range allFuncs {
		depth := i % (maxDepth + 1)
		fn.Depth = depth
		funcsByDepth[depth] = append(funcsByDepth[depth], fn)
	}

	return funcsByDepth
}

// generatePackage writes <pkg>/__init__.py and <pkg>/code.py.
func (g *generator) generatePackage(pkgName string, pkgIdx int, funcsByDepth [][]*FuncInfo, allFuncs []*FuncInfo) error {
	pkgDir := filepath.Join(g.cfg.OutputDir, pkgName)
	if err := os.MkdirAll(pkgDir, 0755); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(pkgDir, "__init__.py"), nil, 0644); err != nil {
		return err
	}

	startIdx := pkgIdx * g.cfg.NumFuncsPerPkg
	pkgFuncs := allFuncs[startIdx : startIdx+g.cfg.NumFuncsPerPkg]

	imports := make(map[string]bool)
	callMap := make(map[string][]CallInfo)
	for _, fn := range pkgFuncs {
		calls := g.generateCalls(fn, funcsByDepth, pkgIdx)
		callMap[fn.Name] = calls
		for _, call := range calls {
			if call.Package != pkgName {
				imports[call.Package] = true
			}
		}
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("\"\"\"Mock module %s.\"\"\"\n", pkgName))
	writeImports(&sb, imports)
	for _, fn := range pkgFuncs {
		sb.WriteString("\n\n")
		sb.WriteString(g.generateFunction(fn, callMap[fn.Name], pkgName))
	}

	return os.WriteFile(filepath.Join(pkgDir, "code.py"), []byte(sb.String()), 0644)
}

func writeImports(sb *strings.Builder, imports map[string]bool) {
	pkgs := make([]string, 0, len(imports))
	for p := range imports {
		pkgs = append(pkgs, p)
	}
	sort.Strings(pkgs)
	for _, p := range pkgs {
		sb.WriteString(fmt.Sprintf("from %s import code as %s\n", p, p))
	}
}

func (g *generator) generateCalls(fn *FuncInfo, funcsByDepth [][]*FuncInfo, currentPkgIdx int) []CallInfo {
	// 叶子节点（最大深度）不调用其他函数
	if fn.Depth >= len(funcsByDepth)-1 {
		return nil
	}

	// 决定调用多少个函数（泊松分布近似）
	numCalls := g.rng.Intn(int(g.cfg.CallDensity*2)) + 1
	if numCalls > int(g.cfg.CallDensity*1.5) {
		numCalls = int(g.cfg.CallDensity)
	}

	var calls []CallInfo
	seen := make(map[string]bool)

	// 只调用更深层次的函数，避免递归
	nextDepth := fn.Depth + 1
	for i := 0; i < numCalls && len(funcsByDepth[nextDepth]) > 0; i++ {
		var target *FuncInfo
		if g.rng.Float64() < 0.8 {
			target = funcsByDepth[nextDepth][g.rng.Intn(len(funcsByDepth[nextDepth]))]
		} else {
			var deeper []*FuncInfo
			for d := nextDepth; d < len(funcsByDepth); d++ {
				deeper = append(deeper, funcsByDepth[d]...)
			}
			target = deeper[g.rng.Intn(len(deeper))]
		}

		// 同包调用或者调用更高编号的包（避免循环导入）
		if target.FullName != fn.FullName && !seen[target.FullName] && target.PkgIdx >= currentPkgIdx {
			calls = append(calls, CallInfo{Package: target.Package, FuncName: target.Name})
			seen[target.FullName] = true
		}
	}

	return calls
}

// generateFunction wraps each call in a randomly chosen control-flow shape.
func (g *generator) generateFunction(fn *FuncInfo, calls []CallInfo, currentPkg string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("def %s(value):\n", fn.Name))
	sb.WriteString(fmt.Sprintf("    \"\"\"Mock function at depth %d.\"\"\"\n", fn.Depth))
	sb.WriteString("    result = value\n")

	for i, call := range calls {
		callExpr := call.FuncName
		if call.Package != currentPkg {
			callExpr = call.Package + "." + call.FuncName
		}
		step := fmt.Sprintf("result += %s(result + %d)", callExpr, i)

		switch g.rng.Intn(5) {
		case 0:
			sb.WriteString("    " + step + "\n")
		case 1:
			sb.WriteString(fmt.Sprintf("    if result > %d:\n        %s\n    else:\n        result -= %d\n", i, step, i+1))
		case 2:
			sb.WriteString(fmt.Sprintf("    for item in [result, %d]:\n        if item < 0:\n            break\n        %s\n", i, step))
		case 3:
			sb.WriteString(fmt.Sprintf("    try:\n        %s\n    except ValueError:\n        result = 0\n", step))
		case 4:
			sb.WriteString(fmt.Sprintf("    while result < %d:\n        %s\n        if result == 0:\n            continue\n        break\n", 100+i, step))
		}
	}

	sb.WriteString("    return result\n")
	return sb.String()
}

// generateEntry writes main.py, whose main() calls into every depth-0
// function.
func generateEntry(cfg *Config, roots []*FuncInfo) error {
	imports := make(map[string]bool)
	for _, fn := range roots {
		imports[fn.Package] = true
	}

	var sb strings.Builder
	writeImports(&sb, imports)
	sb.WriteString("\n\ndef main():\n    total = 0\n")
	for _, fn := range roots {
		sb.WriteString(fmt.Sprintf("    total += %s.%s(total)\n", fn.Package, fn.Name))
	}
	sb.WriteString("    return total\n\n\nif __name__ == \"__main__\":\n    main()\n")

	return os.WriteFile(filepath.Join(cfg.OutputDir, "main.py"), []byte(sb.String()), 0644)
}
