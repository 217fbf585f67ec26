package cli

import "fmt"

func Run(args []string) error {
	if len(args) == 0 {
		printRootUsage()
		return nil
	}

	switch args[0] {
	case "dashboard":
		return runDashboard(args[1:])
	case "submit":
		return runSubmit(args[1:])
	case "serve":
		return runServe(args[1:])
	case "settings":
		return runSettings(args[1:])
	case "help", "-h", "--help":
		printRootUsage()
		return nil
	default:
		printRootUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printRootUsage() {
	fmt.Println("research-tracker: company research job tracker")
	fmt.Println()
	fmt.Println("Quick Start:")
	fmt.Println("  research-tracker dashboard")
	fmt.Println("  research-tracker submit --wait \"Apple Inc.\" \"Dell Technologies Inc.\"")
	fmt.Println("  research-tracker serve --addr :8080")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  dashboard interactive research dashboard (search + live history)")
	fmt.Println("  submit    start research for one or more companies, optionally wait for completion")
	fmt.Println("  serve     HTTP API: GET/POST /v1/research, GET /v1/research/{id}, GET /health")
	fmt.Println("  settings  show/update simulation and runtime settings")
	fmt.Println()
	fmt.Println("Notes:")
	fmt.Println("  - Use --json on submit and settings for machine-readable output")
	fmt.Println("  - Every setting can be overridden with RESEARCH_* environment variables or a .env file")
	fmt.Println("  - Job history lives in memory only; use submit --export to keep a snapshot")
}
