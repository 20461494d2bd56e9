package main

import (
	"fmt"
	"os"
	"time"
)

var (
	timeout    = 30 * time.Second
	format     = "table"
	configPath = ""
)

// version metadata populated via -ldflags at build time
var (
	version = "dev"
	commit  = ""
	date    = ""
)

func main() {
	if len(os.Args) < 2 {
		showHelp()
		return
	}

	command := os.Args[1]

	// Parse global flags
	args, err := parseGlobalFlags(os.Args[2:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}

	switch command {
	case "version":
		fmt.Printf("embark %s", version)
		if commit != "" {
			fmt.Printf(" (commit %s)", commit)
		}
		if date != "" {
			fmt.Printf(" built %s", date)
		}
		fmt.Println()

	case "config":
		handleConfigCommand(args)

	// Contract commands
	case "deploy":
		handleDeployCommand(args)
	case "call":
		handleCallCommand(args)
	case "events":
		handleEventsCommand(args)
	case "send":
		handleSendCommand(args)

	// Storage commands
	case "save":
		handleSaveCommand(args)
	case "get":
		handleGetCommand(args)
	case "upload":
		handleUploadCommand(args)
	case "url":
		handleURLCommand(args)

	// Messaging commands
	case "msg":
		handleMessagesCommand(args)

	// Help
	case "help", "--help", "-h":
		showHelp()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		showHelp()
		os.Exit(1)
	}
}

// parseGlobalFlags applies the global flags and returns the remaining
// positional arguments.
func parseGlobalFlags(args []string) ([]string, error) {
	rest := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-f", "--format", "-t", "--timeout", "-c", "--config":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("flag %s needs a value", args[i])
			}
			value := args[i+1]
			i++
			switch args[i-1] {
			case "-f", "--format":
				if value != "table" && value != "json" {
					return nil, fmt.Errorf("invalid format %q: use table or json", value)
				}
				format = value
			case "-t", "--timeout":
				d, err := time.ParseDuration(value)
				if err != nil {
					return nil, fmt.Errorf("invalid timeout %q: %w", value, err)
				}
				if d <= 0 {
					return nil, fmt.Errorf("invalid timeout %q: must be positive", value)
				}
				timeout = d
			default:
				configPath = value
			}
		default:
			rest = append(rest, args[i])
		}
	}
	return rest, nil
}

func showHelp() {
	fmt.Printf("Embark CLI - contracts, content storage and messaging from one config\n\n")
	fmt.Printf("Usage: embark <command> [args...]\n\n")

	fmt.Printf("📜 Contracts:\n")
	fmt.Printf("  deploy <abi.json> <bytecode> [args...]        - Deploy a contract and print its address\n")
	fmt.Printf("  call <abi.json> <address> <method> [args...]  - Call a method; mutating calls wait for the receipt\n")
	fmt.Printf("  events <abi.json> <address> <event> [dur]     - Print event logs\n")
	fmt.Printf("  send <address> <value> [unit]                 - Send value to an address (default unit: ether)\n\n")

	fmt.Printf("🗄️  Storage:\n")
	fmt.Printf("  save <text>                                   - Store text and print its hash\n")
	fmt.Printf("  get <hash>                                    - Print stored content\n")
	fmt.Printf("  upload <file>                                 - Store a file and print its hash\n")
	fmt.Printf("  url <hash>                                    - Print the gateway URL of a hash\n\n")

	fmt.Printf("📡 Messages:\n")
	fmt.Printf("  msg send <topic> <json>                       - Send a message\n")
	fmt.Printf("  msg listen <topic>[,<topic>...] [dur]         - Print messages on a topic\n\n")

	fmt.Printf("⚙️  Config:\n")
	fmt.Printf("  config show                                   - Print the effective configuration\n")
	fmt.Printf("  config validate                               - Check the configuration file\n\n")

	fmt.Printf("Global Flags:\n")
	fmt.Printf("  -c, --config <path>           - Config file (default: ./embark.yaml or ~/.embark/embark.yaml)\n")
	fmt.Printf("  -f, --format <format>         - Output format: table, json (default: table)\n")
	fmt.Printf("  -t, --timeout <duration>      - Operation timeout (default: 30s)\n\n")

	fmt.Printf("Examples:\n")
	fmt.Printf("  embark deploy SimpleStorage.abi SimpleStorage.bin 100\n")
	fmt.Printf("  embark call SimpleStorage.abi 0x1234... set 42\n")
	fmt.Printf("  embark save \"hello world\"\n")
	fmt.Printf("  embark msg listen chat 5m\n")
}
