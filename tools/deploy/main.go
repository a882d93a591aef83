// verge/tools/deploy/main.go

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"verge/pkg/compiler"
	"verge/pkg/deploy"
	"verge/pkg/graph"
	"verge/pkg/logging"
	"verge/pkg/payload"
	"verge/pkg/platform"
	"verge/pkg/session"
)

const devChannelURL = "http://127.0.0.1:7676"

func main() {
	graphFile := flag.String("graph", "", "Path to the graph JSON file")
	serviceID := flag.String("service", "", "Target service id (defaults to the last deployed one)")
	sessionFile := flag.String("session", defaultSessionPath(), "Path to the session file")
	apiURL := flag.String("api", platform.DefaultBaseURL, "Platform API base URL")
	dryRun := flag.Bool("dry-run", false, "Compile and describe the rule set without deploying")
	remoteOnly := flag.Bool("remote-only", false, "Skip the local development channel")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	if err := logging.ConfigureLogger(*logLevel, "console"); err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring logger: %v\n", err)
		os.Exit(1)
	}

	if *graphFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: deploy -graph <file.json> [-service <id>] [-dry-run]")
		os.Exit(1)
	}

	data, err := os.ReadFile(*graphFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading graph file: %v\n", err)
		os.Exit(1)
	}

	g, err := graph.Parse(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing graph: %v\n", err)
		os.Exit(1)
	}

	if problems := graph.Validate(g); len(problems) > 0 {
		fmt.Fprintf(os.Stderr, "Graph has %d validation problem(s):\n", len(problems))
		for _, p := range problems {
			fmt.Fprintf(os.Stderr, "  - %s\n", p)
		}
		os.Exit(1)
	}

	rs := compiler.Compile(g)
	fmt.Printf("Compiled %d rule(s) from %d node(s):\n%s\n", len(rs.Rules), len(g.Nodes), compiler.Describe(rs))

	canonical, err := graph.Marshal(graph.Canonicalize(g))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error canonicalizing graph: %v\n", err)
		os.Exit(1)
	}
	packed, err := payload.Pack(canonical)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error packing payload: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Payload: %d bytes raw, %d packed, hash %s\n", packed.OriginalSize, packed.CompressedSize, packed.Hash)

	if *dryRun {
		return
	}

	// Prefer the local development channel when it is up.
	if !*remoteOnly && devChannelAlive() {
		if err := deployLocal(packed); err != nil {
			fmt.Fprintf(os.Stderr, "Error deploying to development channel: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Deployed to the local development channel.")
		return
	}

	sess, err := session.Load(*sessionFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading session: %v\n", err)
		os.Exit(1)
	}
	if sess.APIToken == "" {
		fmt.Fprintln(os.Stderr, "No API token: set VERGE_API_TOKEN or add api_token to the session file")
		os.Exit(1)
	}

	target := *serviceID
	if target == "" {
		target = sess.LastServiceID
	}
	if target == "" {
		fmt.Fprintln(os.Stderr, "No target service: pass -service or deploy once to remember it")
		os.Exit(1)
	}

	client := platform.NewClient(sess.APIToken)
	client.BaseURL = *apiURL
	orch := deploy.New(client, sess)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	state, err := orch.Deploy(ctx, target, g)
	if err != nil {
		if state != nil {
			fmt.Fprintf(os.Stderr, "Deployment failed (%s): %v\n", state.Status, err)
			if state.Status == deploy.StatusTimeout {
				os.Exit(2)
			}
		} else {
			fmt.Fprintf(os.Stderr, "Deployment failed: %v\n", err)
		}
		os.Exit(1)
	}
	fmt.Printf("Deployed to service %s, version %d, verified hash %s\n",
		state.ServiceID, state.CurrentVersion, packed.Hash)
}

func devChannelAlive() bool {
	client := &http.Client{Timeout: 500 * time.Millisecond}
	resp, err := client.Get(devChannelURL + "/health")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func deployLocal(packed *payload.Packed) error {
	body, err := json.Marshal(map[string]string{"rules_packed": packed.RulesPacked})
	if err != nil {
		return err
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Post(devChannelURL+"/rules", "application/json", strings.NewReader(string(body)))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("development channel answered %d", resp.StatusCode)
	}
	return nil
}

func defaultSessionPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".verge_session.json"
	}
	return filepath.Join(home, ".verge", "session.json")
}
