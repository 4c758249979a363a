package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/lnxk/noisexk/internal/identity"
	"github.com/lnxk/noisexk/internal/protocol"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	os.Args = append(os.Args[:1], os.Args[2:]...)

	switch cmd {
	case "identity":
		cmdIdentity()
	case "login":
		cmdLogin()
	case "register":
		cmdRegister()
	case "nodes":
		cmdNodes()
	case "version":
		fmt.Printf("noisexk-cli %s\n", version)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Usage: noisexk-cli <command> [options]

Commands:
  identity    Show or generate a node identity
  login       Authenticate against a directory service, printing a token
  register    Announce this node's address to a directory service
  nodes       List/lookup/remove directory entries (admin)
  version     Show version
  help        Show this help`)
}

// --- Identity command ---

func cmdIdentity() {
	fs := flag.NewFlagSet("identity", flag.ExitOnError)
	path := fs.String("identity", "/etc/noisexk/identity.key", "identity key path")
	generate := fs.Bool("generate", false, "generate a new identity, ignoring any existing file")
	fs.Parse(os.Args[1:])

	if *generate {
		id, err := identity.Generate()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Public Key: %s\n", id.PublicKeyHex())
		return
	}

	id, err := identity.LoadOrGenerate(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Public Key: %s\n", id.PublicKeyHex())
}

// --- Login command ---

func cmdLogin() {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	directoryURL := fs.String("directory", "http://localhost:9394", "directory service URL")
	username := fs.String("username", "admin", "admin username")
	password := fs.String("password", "", "admin password")
	fs.Parse(os.Args[1:])

	client := &apiClient{base: *directoryURL}
	var resp protocol.LoginResponse
	body := protocol.LoginRequest{Username: *username, Password: *password}
	if err := client.post("/api/v1/auth/login", body, &resp); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Token:      %s\n", resp.Token)
	fmt.Printf("Expires at: %s\n", resp.ExpiresAt.Format(time.RFC3339))
}

// --- Register command ---

func cmdRegister() {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	directoryURL := fs.String("directory", "http://localhost:9394", "directory service URL")
	identityPath := fs.String("identity", "/etc/noisexk/identity.key", "identity key path")
	address := fs.String("address", "", "host:port a peer can dial to reach this node")
	platform := fs.String("platform", "", "optional platform label")
	fs.Parse(os.Args[1:])

	if *address == "" {
		fmt.Fprintln(os.Stderr, "error: --address is required")
		os.Exit(1)
	}

	id, err := identity.LoadOrGenerate(*identityPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading identity: %v\n", err)
		os.Exit(1)
	}

	client := &apiClient{base: *directoryURL}
	var result protocol.NodeInfo
	body := protocol.RegisterNodeRequest{
		PublicKey: id.PublicKeyHex(),
		Address:   *address,
		Platform:  *platform,
	}
	if err := client.post("/api/v1/nodes", body, &result); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Registered: %s at %s\n", result.PublicKey[:16]+"...", result.Address)
}

// --- Nodes command ---

func cmdNodes() {
	fs := flag.NewFlagSet("nodes", flag.ExitOnError)
	directoryURL := fs.String("directory", "http://localhost:9394", "directory service URL")
	token := fs.String("token", "", "JWT admin token")
	lookup := fs.String("lookup", "", "look up a single node by public key")
	remove := fs.String("remove", "", "remove a node by public key (admin)")
	fs.Parse(os.Args[1:])

	client := &apiClient{base: *directoryURL, token: *token}

	if *lookup != "" {
		var info protocol.NodeInfo
		if err := client.get("/api/v1/nodes/"+*lookup, &info); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Public Key: %s\nAddress:    %s\nPlatform:   %s\nLast Seen:  %s\n",
			info.PublicKey, info.Address, info.Platform, info.LastSeen.Format(time.RFC3339))
		return
	}

	if *remove != "" {
		if err := client.delete("/api/v1/nodes/" + *remove); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Node removed")
		return
	}

	var nodes []protocol.NodeInfo
	if err := client.get("/api/v1/nodes", &nodes); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PUBLIC KEY\tADDRESS\tPLATFORM\tLAST SEEN")
	for _, n := range nodes {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", n.PublicKey, n.Address, n.Platform, n.LastSeen.Format(time.RFC3339))
	}
	w.Flush()
}

// --- HTTP client helper ---

type apiClient struct {
	base  string
	token string
}

func (c *apiClient) get(path string, out interface{}) error {
	req, err := http.NewRequest("GET", c.base+path, nil)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *apiClient) post(path string, body interface{}, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest("POST", c.base+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *apiClient) delete(path string) error {
	req, err := http.NewRequest("DELETE", c.base+path, nil)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
