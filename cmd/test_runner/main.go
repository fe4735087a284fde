package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// redisAddrEnv enables the Redis cache tests when set.
const redisAddrEnv = "JOURNAL_TEST_REDIS_ADDR"

type options struct {
	verbose    bool
	short      bool
	race       bool
	cover      bool
	timeout    time.Duration
	testRegexp string
	redisAddr  string
	packages   []string
}

func main() {
	var opts options
	flag.BoolVar(&opts.verbose, "v", false, "verbose output")
	flag.BoolVar(&opts.short, "short", false, "run only short tests")
	flag.BoolVar(&opts.race, "race", false, "enable the race detector")
	flag.BoolVar(&opts.cover, "cover", false, "report coverage")
	flag.DurationVar(&opts.timeout, "timeout", 5*time.Minute, "test timeout")
	flag.StringVar(&opts.testRegexp, "run", "", "run only tests matching the regular expression")
	flag.StringVar(&opts.redisAddr, "redis", "", "Redis address for the cache integration tests")
	flag.Parse()
	opts.packages = flag.Args()

	args := buildArgs(opts)
	cmd := exec.Command("go", args...)
	cmd.Env = buildEnv(os.Environ(), opts)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	fmt.Printf("Running tests with args: %s\n", strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.ExitCode())
		}
		fmt.Printf("Error running tests: %v\n", err)
		os.Exit(1)
	}
}

func buildArgs(opts options) []string {
	args := []string{"test"}
	if opts.verbose {
		args = append(args, "-v")
	}
	if opts.short {
		args = append(args, "-short")
	}
	if opts.race {
		args = append(args, "-race")
	}
	if opts.cover {
		args = append(args, "-cover")
	}
	if opts.timeout > 0 {
		args = append(args, fmt.Sprintf("-timeout=%s", opts.timeout))
	}
	if opts.testRegexp != "" {
		args = append(args, fmt.Sprintf("-run=%s", opts.testRegexp))
	}
	// Redis-backed tests share state, so results must not be cached.
	if opts.redisAddr != "" {
		args = append(args, "-count=1")
	}
	if len(opts.packages) == 0 {
		return append(args, "./...")
	}
	return append(args, opts.packages...)
}

func buildEnv(base []string, opts options) []string {
	env := make([]string, 0, len(base)+1)
	for _, kv := range base {
		if !strings.HasPrefix(kv, redisAddrEnv+"=") {
			env = append(env, kv)
		}
	}
	if opts.redisAddr != "" {
		env = append(env, redisAddrEnv+"="+opts.redisAddr)
	}
	return env
}
