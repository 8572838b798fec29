package app

import (
	"fmt"
	"os"
	"strings"
)

// Run executes the CLI command and returns a process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "health":
		return runHealth(args[1:])
	case "run":
		return runPipeline(args[1:])
	case "plan":
		return runPlan(args[1:])
	case "rescore":
		return runRescore(args[1:])
	case "seed-sectors":
		return runSeedSectors(args[1:])
	case "import-startups":
		return runImportStartups(args[1:])
	case "validate":
		return runValidate(args[1:])
	case "stats":
		return runStats(args[1:])
	case "serve":
		return runServe(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "sentiflow CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  sentiflow <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  health           Verify database connectivity and schema")
	fmt.Fprintln(os.Stderr, "  run              Fetch, match, score and store news for every startup")
	fmt.Fprintln(os.Stderr, "  plan             Print the fetch window and query per startup without fetching")
	fmt.Fprintln(os.Stderr, "  rescore          Retry recorded scoring failures")
	fmt.Fprintln(os.Stderr, "  seed-sectors     Upsert the reference sectors")
	fmt.Fprintln(os.Stderr, "  import-startups  Upsert startups from a JSON file")
	fmt.Fprintln(os.Stderr, "  validate         Validate startup JSON files against the import schema")
	fmt.Fprintln(os.Stderr, "  stats            Print pipeline totals")
	fmt.Fprintln(os.Stderr, "  serve            Start the read-only HTTP API")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Exit codes: 0 ok, 1 failure, 2 usage, 3 partial run.")
	fmt.Fprintln(os.Stderr, "Use \"sentiflow <command> -h\" for command-specific flags.")
}
