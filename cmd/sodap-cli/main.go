package main

import (
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	defaultRPCEndpoint = "http://127.0.0.1:8545"
	rpcURLEnv          = "SODAP_RPC_URL"
	rpcTokenEnv        = "SODAP_RPC_TOKEN"
	keyPassEnv         = "SODAP_KEY_PASS"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	c := &cli{
		endpoint: envOr(rpcURLEnv, defaultRPCEndpoint),
		token:    strings.TrimSpace(os.Getenv(rpcTokenEnv)),
		stdout:   stdout,
		stderr:   stderr,
	}
	args, err := c.applyGlobalFlags(args)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	return c.dispatch(args)
}

func (c *cli) dispatch(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(c.stderr, usage())
		return 1
	}

	switch args[0] {
	case "generate-key":
		return c.runGenerateKey(args[1:])
	case "whoami":
		return c.runWhoami(args[1:])
	case "status":
		return c.query("sodap_status")
	case "balance":
		return c.runOneArgQuery("balance", "sodap_getBalance", args[1:])
	case "tx":
		return c.runOneArgQuery("tx", "sodap_getTransaction", args[1:])
	case "derive":
		return c.runDerive(args[1:])
	case "transfer":
		return c.runTransfer(args[1:])
	case "store":
		return c.runStoreCommand(args[1:])
	case "product":
		return c.runProductCommand(args[1:])
	case "buy":
		return c.runBuy(args[1:])
	case "receipt":
		return c.runReceipt(args[1:])
	case "escrow":
		return c.runEscrowCommand(args[1:])
	case "loyalty":
		return c.runLoyaltyCommand(args[1:])
	case "admin":
		return c.runAdminCommand(args[1:])
	case "profile":
		return c.runProfileCommand(args[1:])
	case "help", "-h", "--help":
		fmt.Fprintln(c.stdout, usage())
		return 0
	default:
		fmt.Fprintf(c.stderr, "Unknown command: %s\n", args[0])
		fmt.Fprintln(c.stderr, usage())
		return 1
	}
}

// applyGlobalFlags consumes --rpc and --token ahead of the command name.
func (c *cli) applyGlobalFlags(args []string) ([]string, error) {
	for len(args) > 0 {
		arg := args[0]
		switch {
		case arg == "--rpc" || arg == "--token":
			if len(args) < 2 {
				return nil, fmt.Errorf("%s requires a value", arg)
			}
			c.setGlobal(arg, args[1])
			args = args[2:]
		case strings.HasPrefix(arg, "--rpc="):
			c.setGlobal("--rpc", strings.TrimPrefix(arg, "--rpc="))
			args = args[1:]
		case strings.HasPrefix(arg, "--token="):
			c.setGlobal("--token", strings.TrimPrefix(arg, "--token="))
			args = args[1:]
		default:
			return args, nil
		}
	}
	return args, nil
}

func (c *cli) setGlobal(name, value string) {
	value = strings.TrimSpace(value)
	if name == "--rpc" {
		c.endpoint = value
		return
	}
	c.token = value
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func usage() string {
	return `Usage: sodap-cli [--rpc URL] [--token TOKEN] <command> [args]

Keys:
  generate-key --out FILE            create an encrypted key file
  whoami --key FILE                  print the key's credential

Queries:
  status | balance ADDR | tx HASH
  derive --kind KIND [--owner C] [--store S] [--uuid U] [--buyer C]
  receipt --store S --buyer C

Operations (all take --key FILE):
  transfer --to C --amount N
  store register|update|add-admin|remove-admin|set-active|get
  product register|update|deactivate|get|list
  buy --store S --item UUID=QTY [--item ...] --total N
  escrow get|release|refund
  loyalty init|mint|redeem|points|get
  admin add|remove|pause|list
  profile create|update|get

Amounts are decimal strings in display units (e.g. 12.5).
Environment: SODAP_RPC_URL, SODAP_RPC_TOKEN, SODAP_KEY_PASS.`
}
