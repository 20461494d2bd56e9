package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/toadkicker/embark-framework/pkg/config"
	"github.com/toadkicker/embark-framework/pkg/contract"
	"github.com/toadkicker/embark-framework/pkg/embark"
	embarkerrors "github.com/toadkicker/embark-framework/pkg/errors"
	"github.com/toadkicker/embark-framework/pkg/logging"
	"github.com/toadkicker/embark-framework/pkg/messages"
	"github.com/toadkicker/embark-framework/pkg/storage"
)

func handleConfigCommand(args []string) {
	if len(args) == 0 {
		fmt.Fprintf(os.Stderr, "Usage: embark config <show|validate>\n")
		os.Exit(1)
	}

	switch args[0] {
	case "show":
		cfg := loadConfig()
		if format == "json" {
			printJSON(cfg)
			return
		}
		if err := config.Encode(os.Stdout, cfg); err != nil {
			fail("Failed to render config", err)
		}

	case "validate":
		path, err := config.DefaultPath(configPath)
		if err != nil {
			fail("Failed to locate config", err)
		}
		cfg, err := config.Load(path)
		if err != nil {
			fail("Failed to load config", err)
		}
		if errs := cfg.Validate(); len(errs) > 0 {
			for _, e := range errs {
				fmt.Fprintf(os.Stderr, "❌ %v\n", e)
			}
			os.Exit(1)
		}
		if path == "" {
			path = "defaults"
		}
		fmt.Printf("✅ Config OK (%s)\n", path)

	default:
		fmt.Fprintf(os.Stderr, "Unknown config command: %s\n", args[0])
		os.Exit(1)
	}
}

func handleDeployCommand(args []string) {
	if len(args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: embark deploy <abi.json> <bytecode> [args...]\n")
		os.Exit(1)
	}

	bytecode, err := os.ReadFile(args[1])
	if err != nil {
		fail("Failed to read bytecode", err)
	}
	desc := loadDescriptor(args[0], strings.TrimSpace(string(bytecode)), "")
	ctorArgs, err := desc.ParseArgs("", args[2:])
	if err != nil {
		fail("Invalid constructor arguments", err)
	}

	e := newEmbark()
	defer e.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	fmt.Printf("🚀 Deploying %s...\n", args[0])
	deployed, err := e.Template(desc).Deploy(ctx, ctorArgs, contract.DeployOptions{}).Await(ctx)
	if err != nil {
		fail("Deploy failed", err)
	}
	if format == "json" {
		printJSON(map[string]string{"address": deployed.Address().Hex()})
		return
	}
	fmt.Printf("✅ Deployed at %s\n", deployed.Address().Hex())
}

func handleCallCommand(args []string) {
	if len(args) < 3 {
		fmt.Fprintf(os.Stderr, "Usage: embark call <abi.json> <address> <method> [args...]\n")
		os.Exit(1)
	}

	desc := loadDescriptor(args[0], "", args[1])
	callArgs, err := desc.ParseArgs(args[2], args[3:])
	if err != nil {
		fail("Invalid arguments", err)
	}

	e := newEmbark()
	defer e.Close()

	proxy, err := e.Contract(desc)
	if err != nil {
		fail("Failed to bind contract", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	result, err := proxy.Call(ctx, args[2], callArgs...).Await(ctx)
	if err != nil {
		fail("Call failed", err)
	}

	receipt, ok := result.(*types.Receipt)
	switch {
	case format == "json":
		printJSON(result)
	case ok:
		printReceipt(receipt)
	default:
		fmt.Printf("%v\n", result)
	}
}

func handleEventsCommand(args []string) {
	if len(args) < 3 {
		fmt.Fprintf(os.Stderr, "Usage: embark events <abi.json> <address> <event> [duration]\n")
		os.Exit(1)
	}

	desc := loadDescriptor(args[0], "", args[1])
	e := newEmbark()
	defer e.Close()

	proxy, err := e.Contract(desc)
	if err != nil {
		fail("Failed to bind contract", err)
	}

	ctx, cancel := listenContext(args[3:])
	defer cancel()

	stream, err := proxy.Subscribe(ctx, args[2])
	if err != nil {
		fail("Subscribe failed", err)
	}
	defer stream.Cancel()

	fmt.Printf("🔔 Watching %s on %s...\n", args[2], args[1])
	stream.Then(func(log contract.EventLog) {
		if format == "json" {
			printJSON(log.Args)
			return
		}
		fmt.Printf("📨 [block %d] %s %v\n", log.BlockNumber, log.Event, log.Args)
	}).Error(func(err error) {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
	})

	select {
	case <-ctx.Done():
	case <-stream.Done():
	}
	fmt.Printf("✅ Subscription ended\n")
}

func handleSendCommand(args []string) {
	if len(args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: embark send <address> <value> [unit]\n")
		os.Exit(1)
	}
	unit := "ether"
	if len(args) > 2 {
		unit = args[2]
	}
	if !common.IsHexAddress(args[0]) {
		fmt.Fprintf(os.Stderr, "Invalid address: %s\n", args[0])
		os.Exit(1)
	}

	desc, err := contract.ParseDescriptor([]byte("[]"), "", args[0])
	if err != nil {
		fail("Invalid address", err)
	}

	e := newEmbark()
	defer e.Close()

	proxy, err := e.Contract(desc)
	if err != nil {
		fail("Failed to bind address", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	hash, err := proxy.Send(ctx, args[1], unit, contract.TxOptions{})
	if err != nil {
		fail("Send failed", err)
	}
	fmt.Printf("✅ Sent %s %s to %s (tx %s)\n", args[1], unit, args[0], hash)
}

func handleSaveCommand(args []string) {
	if len(args) == 0 {
		fmt.Fprintf(os.Stderr, "Usage: embark save <text>\n")
		os.Exit(1)
	}

	e, ctx, cancel := storageSession()
	defer e.Close()
	defer cancel()

	hash, err := e.Storage.SaveText(ctx, strings.Join(args, " ")).Await(ctx)
	if err != nil {
		fail("Save failed", err)
	}
	fmt.Println(hash)
}

func handleGetCommand(args []string) {
	if len(args) == 0 {
		fmt.Fprintf(os.Stderr, "Usage: embark get <hash>\n")
		os.Exit(1)
	}

	e, ctx, cancel := storageSession()
	defer e.Close()
	defer cancel()

	content, err := e.Storage.Get(ctx, args[0]).Await(ctx)
	if err != nil {
		fail("Get failed", err)
	}
	fmt.Println(content)
}

func handleUploadCommand(args []string) {
	if len(args) == 0 {
		fmt.Fprintf(os.Stderr, "Usage: embark upload <file>\n")
		os.Exit(1)
	}

	e, ctx, cancel := storageSession()
	defer e.Close()
	defer cancel()

	pending, err := e.Storage.UploadFile(ctx, []storage.Input{{Files: []storage.File{storage.PathFile(args[0])}}})
	if err != nil {
		fail("Upload failed", err)
	}
	hash, err := pending.Await(ctx)
	if err != nil {
		fail("Upload failed", err)
	}
	fmt.Println(hash)
}

func handleURLCommand(args []string) {
	if len(args) == 0 {
		fmt.Fprintf(os.Stderr, "Usage: embark url <hash>\n")
		os.Exit(1)
	}

	e, _, cancel := storageSession()
	defer e.Close()
	defer cancel()

	url, err := e.Storage.GetURL(args[0])
	if err != nil {
		fail("Invalid hash", err)
	}
	fmt.Println(url)
}

func handleMessagesCommand(args []string) {
	if len(args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: embark msg <send|listen> <topic> [args...]\n")
		os.Exit(1)
	}

	e := newEmbark()
	defer e.Close()

	startCtx, cancelStart := context.WithTimeout(context.Background(), timeout)
	defer cancelStart()
	if err := e.StartMessages(startCtx); err != nil {
		fail("Failed to select messaging provider", err)
	}

	topics := strings.Split(args[1], ",")

	switch args[0] {
	case "send":
		if len(args) < 3 {
			fmt.Fprintf(os.Stderr, "Usage: embark msg send <topic> <json>\n")
			os.Exit(1)
		}
		var data any
		if err := json.Unmarshal([]byte(args[2]), &data); err != nil {
			// Plain text is sent as a JSON string.
			data = args[2]
		}
		if err := e.Messages.SendMessage(startCtx, messages.SendOptions{Topics: topics, Data: data}); err != nil {
			fail("Send failed", err)
		}
		fmt.Printf("✅ Sent message to %s\n", args[1])

	case "listen":
		ctx, cancel := listenContext(args[2:])
		defer cancel()

		stream, err := e.Messages.ListenTo(ctx, messages.ListenOptions{Topics: topics})
		if err != nil {
			fail("Listen failed", err)
		}
		defer stream.Cancel()

		fmt.Printf("🔔 Listening on %s...\n", args[1])
		stream.Then(func(msg messages.Message) {
			if format == "json" {
				printJSON(msg.Data)
				return
			}
			fmt.Printf("📨 [%s] %s: %v\n", time.Now().Format("15:04:05"), strings.Join(msg.Topics, ","), msg.Data)
		}).Error(func(err error) {
			fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		})

		<-ctx.Done()
		fmt.Printf("✅ Subscription ended\n")

	default:
		fmt.Fprintf(os.Stderr, "Unknown msg command: %s\n", args[0])
		os.Exit(1)
	}
}

// Helper functions

func loadConfig() *config.Config {
	path, err := config.DefaultPath(configPath)
	if err != nil {
		fail("Failed to locate config", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		fail("Failed to load config", err)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		fail("Invalid config", errors.Join(errs...))
	}
	return cfg
}

func newEmbark() *embark.Embark {
	cfg := loadConfig()
	log, err := logging.NewColoredLogger(logging.Options{
		Level:        cfg.Logging.Level,
		Format:       cfg.Logging.Format,
		OutputFile:   cfg.Logging.OutputFile,
		EnableColors: cfg.Logging.OutputFile == "",
	})
	if err != nil {
		fail("Failed to create logger", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	e, err := embark.New(ctx, cfg, log)
	if err != nil {
		fail("Failed to connect", err)
	}
	return e
}

func storageSession() (*embark.Embark, context.Context, context.CancelFunc) {
	e := newEmbark()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	if err := e.StartStorage(ctx); err != nil {
		cancel()
		e.Close()
		fail("Failed to select storage provider", err)
	}
	return e, ctx, cancel
}

func loadDescriptor(abiPath, bytecode, address string) contract.Descriptor {
	abiJSON, err := os.ReadFile(abiPath)
	if err != nil {
		fail("Failed to read ABI", err)
	}
	desc, err := contract.ParseDescriptor(abiJSON, bytecode, address)
	if err != nil {
		fail("Invalid contract", err)
	}
	return desc
}

// listenContext ends on Ctrl+C or, when args holds a duration, when it
// elapses.
func listenContext(args []string) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	if len(args) == 0 {
		return ctx, stop
	}
	d, err := time.ParseDuration(args[0])
	if err != nil {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	return ctx, func() {
		cancel()
		stop()
	}
}

func printReceipt(r *types.Receipt) {
	status := "failed"
	if r.Status == types.ReceiptStatusSuccessful {
		status = "success"
	}
	fmt.Printf("✅ Transaction confirmed\n")
	fmt.Printf("  Hash:     %s\n", r.TxHash.Hex())
	fmt.Printf("  Block:    %s\n", r.BlockNumber)
	fmt.Printf("  Gas used: %d\n", r.GasUsed)
	fmt.Printf("  Status:   %s\n", status)
}

func printJSON(data interface{}) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to marshal JSON: %v\n", err)
		return
	}
	fmt.Println(string(jsonData))
}

func fail(msg string, err error) {
	fmt.Fprintf(os.Stderr, "❌ %s: %v\n", msg, err)
	if code := embarkerrors.GetErrorCode(err); code != embarkerrors.CodeInternal {
		fmt.Fprintf(os.Stderr, "   code: %s\n", code)
	}
	if embarkerrors.ShouldRetry(err) {
		fmt.Fprintf(os.Stderr, "   The node or daemon may be unreachable; check the config and retry.\n")
	}
	os.Exit(1)
}
