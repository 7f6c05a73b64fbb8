package main

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/jessevdk/go-flags"
	"github.com/k0kubun/pp/v3"
	shellquote "github.com/kballard/go-shellquote"
	"golang.org/x/term"

	"github.com/k0kubun/perfettosql/config"
	"github.com/k0kubun/perfettosql/engine"
	"github.com/k0kubun/perfettosql/perfettosql"
	"github.com/k0kubun/perfettosql/util"
)

var version string

type options struct {
	File        string `short:"f" long:"file" description:"Read PerfettoSQL from the file, rather than stdin" value-name:"filename" default:"-"`
	TraceDB     string `long:"trace" description:"SQLite trace database to open" value-name:"path" default:":memory:"`
	Config      string `long:"config" description:"YAML file specifying module_roots, packages, default_sort, default_limit"`
	IncludeDirs string `long:"include-dirs" description:"Shell-quoted, space-separated list of additional module search roots"`
	Debug       bool   `long:"debug" description:"Pretty-print each statement's result"`
	Help        bool   `long:"help" description:"Show this help"`
	Version     bool   `long:"version" description:"Show this version"`
}

func parseOptions(args []string) (*options, []string) {
	var opts options
	parser := flags.NewParser(&opts, flags.None)
	parser.Usage = "[option...]"
	rest, err := parser.ParseArgs(args)
	if err != nil {
		log.Fatal(err)
	}

	if opts.Help {
		parser.WriteHelp(os.Stdout)
		os.Exit(0)
	}
	if opts.Version {
		fmt.Println(version)
		os.Exit(0)
	}
	return &opts, rest
}

func main() {
	util.InitSlog()
	opts, _ := parseOptions(os.Args[1:])

	cfg, err := config.Load(opts.Config)
	if err != nil {
		log.Fatal(err)
	}
	if opts.IncludeDirs != "" {
		fields, err := shellquote.Split(opts.IncludeDirs)
		if err != nil {
			log.Fatalf("parsing --include-dirs: %v", err)
		}
		cfg = config.Merge(cfg, config.Config{ModuleRoots: config.SplitIncludeDirs(fields)})
	}

	sqlText, err := readFile(opts.File)
	if err != nil {
		log.Fatalf("failed to read %q: %v", opts.File, err)
	}

	w, err := engine.Open(opts.TraceDB)
	if err != nil {
		log.Fatal(err)
	}
	defer w.Close()

	modules := loadModules(cfg)
	eng, s := perfettosql.NewEngine(w, modules)
	if !s.Ok() {
		log.Fatal(s.Message())
	}
	eng.LogSink = func(msg string) { log.Print(msg) }
	eng.SetDefaults(cfg.DefaultSort, cfg.DefaultLimit)

	stmt, stats, s := eng.ExecuteUntilLastStatement(sqlText)
	if !s.Ok() {
		fmt.Fprintln(os.Stderr, s.Message())
		os.Exit(1)
	}
	if stmt != nil {
		defer stmt.Close()
		printRows(stmt, opts.Debug)
	}
	if opts.Debug {
		printer := pp.New()
		printer.SetColoringEnabled(term.IsTerminal(int(os.Stdout.Fd())))
		printer.Println(stats)
	}
}

// loadModules materializes a ModuleRegistry by reading every `<root>/
// <package>/*.sql` file under the configured search roots, grouping
// files by their immediate parent directory name into one package.
func loadModules(cfg config.Config) *perfettosql.ModuleRegistry {
	reg := perfettosql.NewModuleRegistry()
	for _, root := range cfg.ModuleRoots {
		entries, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		for _, ent := range entries {
			if ent.IsDir() {
				reg.RegisterPackage(ent.Name(), readModuleDir(ent.Name(), root+string(os.PathSeparator)+ent.Name()))
			}
		}
	}
	for pkgName, dir := range cfg.Packages {
		reg.RegisterPackage(pkgName, readModuleDir(pkgName, dir))
	}
	return reg
}

func readModuleDir(pkgName, dir string) map[string]string {
	modules := make(map[string]string)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return modules
	}
	for _, ent := range entries {
		if ent.IsDir() || !strings.HasSuffix(ent.Name(), ".sql") {
			continue
		}
		body, err := os.ReadFile(dir + string(os.PathSeparator) + ent.Name())
		if err != nil {
			continue
		}
		key := pkgName + "." + strings.TrimSuffix(ent.Name(), ".sql")
		modules[key] = string(body)
	}
	return modules
}

func printRows(stmt *engine.PreparedStatement, debug bool) {
	n := stmt.ColumnCount()
	names := make([]string, n)
	for i := 0; i < n; i++ {
		names[i] = stmt.ColumnName(i)
	}
	fmt.Println(strings.Join(names, "\t"))
	if debug {
		pp.Println(names)
	}
}

// readFile mirrors the teacher's stdin-pipe detection: "-" reads from
// stdin only when it is actually piped, never from an interactive tty.
func readFile(path string) (string, error) {
	if path != "-" {
		buf, err := os.ReadFile(path)
		return string(buf), err
	}

	stat, _ := os.Stdin.Stat()
	if (stat.Mode() & os.ModeCharDevice) != 0 {
		return "", fmt.Errorf("stdin is not piped")
	}
	var buffer bytes.Buffer
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		buffer.WriteString(scanner.Text())
		buffer.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		return "", err
	}
	return buffer.String(), nil
}
