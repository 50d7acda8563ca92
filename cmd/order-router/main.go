package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"order-router/internal/autoassign"
	"order-router/internal/notsub"
	"order-router/internal/order"
	"order-router/internal/report"
	xerrors "order-router/internal/xpkg/errors"
	"order-router/internal/xpkg/logger"
)

type executor func(ctx context.Context, mylog logger.Logger, args []string) error

type service struct {
	name string
	run  executor
}

var services = map[string]service{
	"order-service":           {"order-service", order.Execute},
	"os":                      {"order-service", order.Execute},
	"auto-assigner":           {"auto-assigner", autoassign.Execute},
	"aa":                      {"auto-assigner", autoassign.Execute},
	"notification-subscriber": {"notification-subscriber", notsub.Execute},
	"ns":                      {"notification-subscriber", notsub.Execute},
	"report":                  {"report", report.Execute},
	"rp":                      {"report", report.Execute},
}

func main() {
	fs, mode, level, rest, err := parseGlobal(os.Args[1:], os.Stderr)
	if err != nil {
		if !errors.Is(err, xerrors.ErrHelp) {
			log.Printf("failed to parse flags: %s", err)
			help(fs)
			os.Exit(2)
		}
		help(fs)
		return
	}

	mylogger, err := logger.New(level)
	if err != nil {
		log.Fatalf("log error: %v", err)
	}

	svc, err := lookup(mode)
	if err != nil {
		mylogger.Action("order_router_failed").Error("Failed to start order router", err)
		help(fs)
		os.Exit(2)
	}

	l := mylogger.With("service", svc.name)
	action := strings.ReplaceAll(svc.name, "-", "_")

	l.Action(action + "_started").Info("Successfully started")
	if err := svc.run(context.Background(), l, rest); err != nil {
		if errors.Is(err, xerrors.ErrHelp) {
			return
		}
		l.Action(action+"_failed").Error("Error in "+svc.name, err)
		log.Fatalf("failed to execute %s: %s", svc.name, err)
	}
	l.Action(action + "_completed").Info("Successfully completed")
}

// parseGlobal reads --mode and --log-level. Everything after the mode flag
// belongs to the selected service.
func parseGlobal(args []string, output io.Writer) (*flag.FlagSet, string, string, []string, error) {
	fs := flag.NewFlagSet("order-router", flag.ContinueOnError)
	fs.SetOutput(output)
	mode := fs.String("mode", "", "service to run: order-service | auto-assigner | notification-subscriber | report")
	level := fs.String("log-level", "INFO", "log level: DEBUG | INFO | WARN | ERROR")
	showHelp := fs.Bool("help", false, "Show help")

	globalArgs, rest := splitGlobalArgs(args)
	if err := fs.Parse(globalArgs); err != nil {
		return fs, "", "", nil, xerrors.ErrParseCmd
	}
	if *showHelp && *mode == "" {
		return fs, "", "", nil, xerrors.ErrHelp
	}
	if *showHelp {
		rest = append(rest, "--help")
	}
	return fs, *mode, *level, rest, nil
}

// splitGlobalArgs keeps the global flags that precede the mode (and the
// mode itself) and returns the rest for the service.
func splitGlobalArgs(args []string) (global, rest []string) {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") {
			return args[:i], args[i:]
		}
		name := strings.TrimLeft(arg, "-")
		name, _, hasValue := strings.Cut(name, "=")
		switch name {
		case "mode":
			if !hasValue && i+1 < len(args) {
				i++
			}
			return args[:i+1], args[i+1:]
		case "log-level":
			if !hasValue && i+1 < len(args) {
				i++
			}
		case "help":
		default:
			return args[:i], args[i:]
		}
	}
	return args, nil
}

func lookup(mode string) (service, error) {
	if mode == "" {
		return service{}, xerrors.ErrModeFlag
	}
	svc, ok := services[mode]
	if !ok {
		return service{}, fmt.Errorf("%w: %s", xerrors.ErrUnknownService, mode)
	}
	return svc, nil
}

func help(fs *flag.FlagSet) {
	fmt.Println("\nUsage:")
	fs.PrintDefaults()
	fmt.Println("\nExample:")
	fmt.Println("  ./order-router --mode=order-service --port=3000 --migrate")
	fmt.Println("  ./order-router --log-level=DEBUG --mode=auto-assigner --once")
	fmt.Println("  ./order-router --mode=report --store-id=<uuid>")
}
