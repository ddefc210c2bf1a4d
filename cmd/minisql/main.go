// minisql is an interactive shell over the storage and indexing core:
// a readline-driven REPL that accepts the line-oriented command forms
// spec.md §6 lists (create/drop database, show databases, use,
// show/create/drop table, show/create/drop index, insert, select,
// delete, update, execfile, quit) and prints each statement's elapsed
// microseconds, mirroring the original engine's execute-engine
// timing. Flag parsing and signal-driven shutdown follow the
// teacher's cmd/treestore bootstrap (see DESIGN.md).
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/chzyer/readline"
	"github.com/olekukonko/tablewriter"

	"github.com/JerryiaL/minisql/internal/engine"
	"github.com/JerryiaL/minisql/internal/logger"
	"github.com/JerryiaL/minisql/internal/metrics"
)

var (
	rootDir  = flag.String("dir", "./minisql-data", "Database root directory")
	logLevel = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
)

func main() {
	flag.Parse()

	logger.InitGlobalLogger(logger.Config{Level: *logLevel, Pretty: true})
	log := logger.GetGlobalLogger().Component("shell")
	m := metrics.NewMetrics()

	eng, err := engine.New(*rootDir, m, log)
	if err != nil {
		log.Fatal("failed to initialize engine").Err(err).Send()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutting down").Send()
		os.Exit(0)
	}()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "minisql> ",
		HistoryFile:     filepath.Join(*rootDir, ".minisql_history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		log.Fatal("failed to initialize readline").Err(err).Send()
	}
	defer rl.Close()

	shell := &shell{engine: eng, rl: rl}
	shell.run()
}

// shell drives the read-eval-print loop: read a line, parse it into a
// Statement, execute it against the current database, render the
// result.
type shell struct {
	engine *engine.Engine
	rl     *readline.Instance
}

func (s *shell) run() {
	for {
		s.rl.SetPrompt(s.prompt())
		line, err := s.rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, "readline error:", err)
			return
		}

		line = strings.TrimSpace(strings.TrimSuffix(line, ";"))
		if line == "" {
			continue
		}
		if strings.EqualFold(line, "quit") || strings.EqualFold(line, "exit") {
			return
		}

		fields := strings.Fields(line)
		if len(fields) >= 1 && strings.EqualFold(fields[0], "execfile") && len(fields) == 2 {
			s.execFile(fields[1])
			continue
		}

		s.runLine(line)
	}
}

func (s *shell) prompt() string {
	if s.engine.CurrentDatabase() == "" {
		return "minisql> "
	}
	return fmt.Sprintf("minisql(%s)> ", s.engine.CurrentDatabase())
}

func (s *shell) execFile(path string) {
	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "execfile:", err)
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(strings.TrimSuffix(scanner.Text(), ";"))
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		s.runLine(line)
	}
}

func (s *shell) runLine(line string) {
	stmt, err := parseStatement(line)
	if err != nil {
		fmt.Fprintln(os.Stderr, "parse error:", err)
		return
	}

	start := time.Now()
	res, err := s.engine.Execute(stmt)
	elapsed := time.Since(start)

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return
	}
	renderResult(res)
	fmt.Printf("(%d microseconds)\n", elapsed.Microseconds())
}

// renderResult prints res as a table when it carries rows, otherwise
// as a one-line status message.
func renderResult(res engine.Result) {
	if len(res.Columns) == 0 {
		if res.Message != "" {
			fmt.Println(res.Message)
		}
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(res.Columns)
	for _, row := range res.Rows {
		table.Append(row)
	}
	table.Render()
}
