package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"slices"
	"strings"

	"bakery-storefront/internal/mockbackend"
	"bakery-storefront/internal/orderboard"
	"bakery-storefront/internal/shopper"
	"bakery-storefront/internal/xpkg/logger"

	apperr "bakery-storefront/internal/xpkg/errors"
)

func main() {
	level := os.Getenv("STOREFRONT_LOG_LEVEL")
	if level == "" {
		level = "warn"
	}
	mylogger := logger.New("bakery-storefront", level)

	fs := flag.NewFlagSet("main", flag.ExitOnError)
	mode := fs.String("mode", "", "mode to run: catalog | cart | wishlist | login | logout | orders | backend")

	// Only the args up to --mode are parsed here, the rest go to the mode.
	args := os.Args[1:]
	modeArgs := []string{}
	for i, arg := range args {
		if strings.HasPrefix(arg, "--mode") || strings.HasPrefix(arg, "-mode") {
			modeArgs = args[:i+1]
			if !strings.Contains(arg, "=") && i+1 < len(args) {
				modeArgs = args[:i+2]
			}
			break
		}
	}
	if err := fs.Parse(modeArgs); err != nil {
		mylogger.Action("storefront_failed").Error("Failed to parse flags", err)
		help(fs)
		os.Exit(2)
	}
	if *mode == "" {
		mylogger.Action("storefront_failed").Error("Failed to start storefront", apperr.ErrModeFlag)
		help(fs)
		os.Exit(2)
	}
	remainingArgs := args[len(modeArgs):]

	ctx := context.Background()
	l := mylogger.With("mode", *mode)

	var err error
	switch {
	case slices.Contains(shopper.Modes, *mode):
		err = shopper.Execute(ctx, l, *mode, remainingArgs)
	case *mode == "orders":
		err = orderboard.Execute(ctx, l, remainingArgs)
	case *mode == "backend":
		l = mylogger.With("service", "mock-backend")
		l.Action("mock_backend_started").Info("Successfully started")
		err = mockbackend.Execute(ctx, l, remainingArgs)
	default:
		mylogger.Action("storefront_failed").Error("Failed to start storefront", apperr.ErrUnknownService)
		help(fs)
		os.Exit(2)
	}

	if err != nil && !errors.Is(err, apperr.ErrHelp) {
		l.Action("mode_failed").Error("Mode finished with an error", err)
		os.Exit(1)
	}
}

func help(fs *flag.FlagSet) {
	fmt.Println("\nUsage:")
	fs.PrintDefaults()
	fmt.Println("\nExamples:")
	fmt.Println("  ./bakery-storefront --mode=backend --port=8080 --publish")
	fmt.Println("  ./bakery-storefront --mode=catalog --category=cakes --sort=price_asc")
	fmt.Println("  ./bakery-storefront --mode=cart --action=add --id=1 --size=1kg --addon=candles=2")
	fmt.Println("  ./bakery-storefront --mode=login --user=alice")
	fmt.Println("  ./bakery-storefront --mode=orders --watch")
}
