package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/havarnov/sandkasse"
	"github.com/havarnov/sandkasse/callback"
)

func main() {
	source := flag.String("e", "", "Script source to evaluate")
	typ := flag.String("type", "void", "Result type: void, int, bool or string")
	flag.Parse()

	// Stop running scripts on Ctrl-C
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *source, *typ, flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, "sandkasse:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, source, typ string, args []string) error {
	src, err := readSource(source, args)
	if err != nil {
		return err
	}
	kind, err := parseKind(typ)
	if err != nil {
		return err
	}

	cfg, err := sandkasse.LoadConfig()
	if err != nil {
		return err
	}
	defer cfg.Logger.Sync() //nolint:errcheck

	rt, err := sandkasse.NewRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(context.Background()); err != nil {
			cfg.Logger.Warn("close runtime", zap.Error(err))
		}
	}()

	s, err := rt.CreateSession(ctx)
	if err != nil {
		return err
	}
	if err := registerBuiltins(ctx, s); err != nil {
		return err
	}

	v, err := s.EvalValue(ctx, kind, src)
	if err != nil {
		return err
	}
	if out, ok := format(v); ok {
		fmt.Println(out)
	}
	return nil
}

func format(v sandkasse.Value) (string, bool) {
	switch v.Kind {
	case sandkasse.KindInt:
		return strconv.Itoa(int(v.Int)), true
	case sandkasse.KindBool:
		return strconv.FormatBool(v.Bool), true
	case sandkasse.KindStr:
		return v.Str, true
	}
	return "", false
}

func registerBuiltins(ctx context.Context, s *sandkasse.Session) error {
	builtins := map[string]callback.Func{
		"hello": callback.Proc0(func() { fmt.Println("Hello from the host!") }),
		"add":   callback.Func2(func(a, b int32) int32 { return a + b }),
		"upper": callback.Func1(strings.ToUpper),
	}
	for name, fn := range builtins {
		if err := s.Register(ctx, name, fn); err != nil {
			return fmt.Errorf("register %s: %w", name, err)
		}
	}
	return nil
}

func readSource(source string, args []string) (string, error) {
	switch {
	case source != "" && len(args) > 0:
		return "", fmt.Errorf("use either -e or a file argument, not both")
	case source != "":
		return source, nil
	case len(args) == 1:
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", err
		}
		return string(data), nil
	case len(args) > 1:
		return "", fmt.Errorf("expected one file, got %d", len(args))
	}
	return "", fmt.Errorf("nothing to evaluate: pass -e <source> or a file")
}

func parseKind(typ string) (sandkasse.Kind, error) {
	switch strings.ToLower(typ) {
	case "void", "":
		return sandkasse.KindVoid, nil
	case "int":
		return sandkasse.KindInt, nil
	case "bool":
		return sandkasse.KindBool, nil
	case "string", "str":
		return sandkasse.KindStr, nil
	}
	return sandkasse.KindVoid, fmt.Errorf("unknown result type %q", typ)
}
