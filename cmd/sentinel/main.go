package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/armoriq/sentinel/internal/agent"
	"github.com/armoriq/sentinel/internal/alert"
	"github.com/armoriq/sentinel/internal/api"
	"github.com/armoriq/sentinel/internal/approval"
	"github.com/armoriq/sentinel/internal/auth"
	"github.com/armoriq/sentinel/internal/config"
	"github.com/armoriq/sentinel/internal/gateway"
	"github.com/armoriq/sentinel/internal/killswitch"
	"github.com/armoriq/sentinel/internal/mdloader"
	"github.com/armoriq/sentinel/internal/policy"
	"github.com/armoriq/sentinel/internal/reasoning"
	"github.com/armoriq/sentinel/internal/tirs"
	"github.com/armoriq/sentinel/internal/trace"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "sentinel",
		Short: "Runtime guardrail for multi-agent AI workflows",
		Long:  "Sentinel — TIRS behavioral risk detection, Compliance policy enforcement, and Orchestrator routing for multi-agent AI systems.",
	}

	var configFile string
	var port int
	var devMode bool

	// --- serve ---
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Sentinel runtime and management API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configFile, port, devMode)
		},
	}
	serveCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to config file (default: sentinel.yaml)")
	serveCmd.Flags().IntVarP(&port, "port", "p", 0, "Override HTTP port (default: 6777)")
	serveCmd.Flags().BoolVar(&devMode, "dev", false, "Dev mode: verbose logs, CORS *")

	// --- init ---
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Generate starter config and directory structure",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit()
		},
	}

	initPolicyCmd := &cobra.Command{
		Use:   "policy [policy-name]",
		Short: "Scaffold policies/<name>/POLICY.md",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInitPolicy(args[0])
		},
	}

	initPlaybookCmd := &cobra.Command{
		Use:   "playbook [tirs-status]",
		Short: "Scaffold playbooks/<STATUS>.md from template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInitPlaybook(args[0])
		},
	}

	initCmd.AddCommand(initPolicyCmd, initPlaybookCmd)

	// --- status ---
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show system status: request count, agents, TIRS dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(port)
		},
	}

	// --- version ---
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Sentinel %s\n", version)
			fmt.Printf("  Commit:  %s\n", commit)
			fmt.Printf("  Built:   %s\n", buildDate)
		},
	}

	// --- policy ---
	policyCmd := &cobra.Command{
		Use:   "policy",
		Short: "Compliance policy management commands",
	}

	policyValidateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate config and check referenced POLICY.md/playbook files exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPolicyValidate(configFile)
		},
	}
	policyValidateCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to config file")

	policyReloadCmd := &cobra.Command{
		Use:   "reload",
		Short: "Hot-reload policy config without restart",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := resolvePort(port)
			resp, err := http.Post(fmt.Sprintf("http://localhost:%d/v1/policies/reload", p), "application/json", nil)
			if err != nil {
				return fmt.Errorf("failed to connect to sentinel: %w", err)
			}
			defer func() { _ = resp.Body.Close() }()
			if resp.StatusCode == 200 {
				fmt.Println("policies reloaded")
			} else {
				fmt.Printf("reload failed (HTTP %d)\n", resp.StatusCode)
			}
			return nil
		},
	}

	policyListCmd := &cobra.Command{
		Use:   "list",
		Short: "Show all declared policies",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := resolvePort(port)
			resp, err := http.Get(fmt.Sprintf("http://localhost:%d/v1/policies", p))
			if err != nil {
				return fmt.Errorf("failed to connect: %w", err)
			}
			defer func() { _ = resp.Body.Close() }()
			var result map[string]interface{}
			_ = decodeJSON(resp, &result)
			policies, _ := result["policies"].([]interface{})
			if len(policies) == 0 {
				fmt.Println("no policies declared")
				return nil
			}
			fmt.Printf("%-25s %-15s %-12s %s\n", "NAME", "CATEGORY", "TIMEOUT", "APPROVERS")
			fmt.Println(strings.Repeat("-", 80))
			for _, p := range policies {
				m := p.(map[string]interface{})
				fmt.Printf("%-25v %-15v %-12v %v\n", m["Name"], m["Category"], m["Timeout"], m["Approvers"])
			}
			return nil
		},
	}

	policyCmd.AddCommand(policyValidateCmd, policyReloadCmd, policyListCmd)

	// --- trace ---
	traceCmd := &cobra.Command{
		Use:   "trace",
		Short: "Audit trace inspection commands",
	}

	var traceAgent string
	traceListCmd := &cobra.Command{
		Use:   "list",
		Short: "List recent traces",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTraceList(port, traceAgent)
		},
	}
	traceListCmd.Flags().StringVar(&traceAgent, "agent", "", "Filter by agent ID")

	traceShowCmd := &cobra.Command{
		Use:   "show [trace-id]",
		Short: "Show a single trace record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTraceShow(port, args[0])
		},
	}

	traceSearchCmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Full-text search across traces",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTraceSearch(port, args[0])
		},
	}

	traceCmd.AddCommand(traceListCmd, traceShowCmd, traceSearchCmd)

	// --- agent ---
	agentCmd := &cobra.Command{
		Use:   "agent",
		Short: "Domain agent administration commands",
	}

	agentListCmd := &cobra.Command{
		Use:   "list",
		Short: "List all registered agents and their TIRS status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgentList(port)
		},
	}

	agentShowCmd := &cobra.Command{
		Use:   "status [agent-id]",
		Short: "Show an agent's current TIRS status and risk score",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgentStatus(port, args[0])
		},
	}

	agentKillCmd := &cobra.Command{
		Use:   "kill [agent-id]",
		Short: "Force-kill an agent (blocks all further actions)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgentAction(port, args[0], "kill")
		},
	}

	agentResumeCmd := &cobra.Command{
		Use:   "resume [agent-id]",
		Short: "Resume a throttled or paused agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgentAction(port, args[0], "resume")
		},
	}

	agentResurrectCmd := &cobra.Command{
		Use:   "resurrect [agent-id]",
		Short: "Resurrect a killed agent, resetting its TIRS history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgentAction(port, args[0], "resurrect")
		},
	}

	agentCmd.AddCommand(agentListCmd, agentShowCmd, agentKillCmd, agentResumeCmd, agentResurrectCmd)

	// --- snapshot ---
	snapshotCmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Forensic snapshot commands",
	}

	snapshotVerifyCmd := &cobra.Command{
		Use:   "verify [agent-id]",
		Short: "Verify the hash chain integrity of an agent's forensic snapshots",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := resolvePort(port)
			resp, err := http.Get(fmt.Sprintf("http://localhost:%d/v1/snapshots/%s/verify", p, args[0]))
			if err != nil {
				return fmt.Errorf("failed to connect: %w", err)
			}
			defer func() { _ = resp.Body.Close() }()
			var result map[string]interface{}
			if err := decodeJSON(resp, &result); err != nil {
				return fmt.Errorf("failed to decode response: %w", err)
			}
			if valid, _ := result["valid"].(bool); valid {
				fmt.Printf("hash chain intact for agent %s\n", args[0])
			} else {
				fmt.Printf("hash chain broken for agent %s at snapshot index %v\n", args[0], result["failure_index"])
			}
			return nil
		},
	}

	snapshotCmd.AddCommand(snapshotVerifyCmd)

	// --- doctor ---
	doctorCmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check config, connectivity, and MD integrity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(port, configFile)
		},
	}

	rootCmd.AddCommand(serveCmd, initCmd, statusCmd, versionCmd, policyCmd, traceCmd, agentCmd, snapshotCmd, doctorCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runServe wires every subsystem and starts the management API: config
// loader, hash-chained trace store, alert manager, approval queue, TIRS,
// Compliance policy engine, the Gateway (Router/HandoffVerifier/
// WorkflowEngine around the reference domain agents), and finally the
// chi-routed HTTP API with its live trace WebSocket feed.
func runServe(configFile string, portOverride int, devMode bool) error {
	cfgLoader := config.NewLoader()
	if configFile == "" {
		configFile = findConfigFile()
	}
	if configFile != "" {
		if err := cfgLoader.Load(configFile); err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
	}

	cfg := cfgLoader.Get()

	if portOverride > 0 {
		cfg.Server.Port = portOverride
	}
	if devMode {
		cfg.Server.CORS = true
		cfg.Server.LogLevel = "debug"
	}

	logLevel := slog.LevelInfo
	switch strings.ToLower(cfg.Server.LogLevel) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))

	store, err := trace.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	if err := store.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	mdLoader := mdloader.NewLoader(cfg.PoliciesDir, cfg.PlaybooksDir)
	mdWatcher, err := mdloader.NewWatcher(mdLoader, logger)
	if err != nil {
		logger.Warn("failed to create MD file watcher", "error", err)
	} else {
		if err := mdWatcher.Start(); err != nil {
			logger.Warn("failed to start MD file watcher", "error", err)
		} else {
			defer func() { _ = mdWatcher.Stop() }()
		}
	}

	cfgWatcher, err := config.NewWatcher(cfgLoader, logger)
	if err != nil {
		logger.Warn("failed to create config file watcher", "error", err)
	} else if configFile != "" {
		if err := cfgWatcher.Start(); err != nil {
			logger.Warn("failed to start config file watcher", "error", err)
		} else {
			defer func() { _ = cfgWatcher.Stop() }()
		}
	}

	alertMgr := alert.NewManager(cfg.Alerts, logger)
	approvalQueue := approval.NewQueue(store, alertMgr, logger)

	celEvaluator, err := policy.NewCELEvaluator(logger)
	if err != nil {
		return fmt.Errorf("failed to create CEL evaluator: %w", err)
	}

	policyEngine := policy.NewEngine(logger)
	registerPolicies(policyEngine, celEvaluator, cfg.Policies, logger)

	ks := killswitch.New(logger)

	t, err := tirs.New(tirs.Config{
		Detector:   cfg.TIRS.Detector,
		Dimension:  cfg.TIRS.Dimension,
		StorageDir: cfg.TIRS.StorageDir,
		KillSwitch: ks,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize TIRS: %w", err)
	}

	gw := gateway.New(gateway.Config{
		MaxConcurrentWorkflows: cfg.Gateway.MaxConcurrentWorkflows,
		DefaultTimeout:         cfg.Gateway.DefaultTimeout,
	}, policyEngine, t, logger)
	gw.SetApprovals(approvalQueue)
	gw.SetStore(store)

	if cfg.Reasoning.Enabled {
		gw.SetOracle(reasoning.New(cfg.Reasoning.APIKey, cfg.Reasoning.Timeout))
		logger.Info("reasoning oracle enabled")
	}

	tokenManager := auth.NewTokenManager(cfg.Server.Auth.TokenTTL, logger)

	apiServer := api.NewServer(cfg.Server, gw, store, cfgLoader, approvalQueue, tokenManager, logger)

	fmt.Println()
	fmt.Println("  Sentinel " + version)
	fmt.Println("  Guardrail runtime for multi-agent AI workflows")
	fmt.Println()
	fmt.Printf("  -> HTTP:      http://localhost:%d\n", cfg.Server.Port)
	fmt.Printf("  -> API:       http://localhost:%d/v1\n", cfg.Server.Port)
	fmt.Printf("  -> Metrics:   http://localhost:%d/metrics\n", cfg.Server.Port)
	fmt.Printf("  -> Storage:   %s (%s)\n", cfg.Storage.Driver, cfg.Storage.Path)
	fmt.Printf("  -> Policies:  %d registered\n", len(policyEngine.Policies()))
	fmt.Printf("  -> Fail mode: %s\n", cfg.Server.FailMode)
	fmt.Println()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		if err := apiServer.Start(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-sigCh:
		logger.Info("shutting down...")
		shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutCancel()
		return apiServer.Shutdown(shutCtx)
	case err := <-errCh:
		return fmt.Errorf("HTTP server error: %w", err)
	}
}

// registerPolicies maps each declared config.PolicyConfig.Name onto its
// domain policy constructor in package policy. Unknown names are logged and
// skipped. With no policies declared, the full reference bundle is
// registered so a zero-config start still enforces something.
func registerPolicies(engine *policy.Engine, celEvaluator *policy.CELEvaluator, declared []config.PolicyConfig, logger *slog.Logger) {
	known := map[string]func() []policy.Policy{
		"ExpenseApproval": func() []policy.Policy {
			threshold, rule := policy.NewExpenseApprovalPolicy()
			return []policy.Policy{threshold, rule}
		},
		"Compensation":     func() []policy.Policy { return []policy.Policy{policy.NewCompensationPolicy()} },
		"HiringCompliance": func() []policy.Policy { return []policy.Policy{policy.NewHiringCompliancePolicy()} },
		"Termination":      func() []policy.Policy { return []policy.Policy{policy.NewTerminationPolicy()} },
		"LeaveManagement":  func() []policy.Policy { return []policy.Policy{policy.NewLeaveManagementPolicy()} },
		"ContractReview":   func() []policy.Policy { return []policy.Policy{policy.NewContractReviewPolicy()} },
		"NDAEnforcement":   func() []policy.Policy { return []policy.Policy{policy.NewNDAEnforcementPolicy()} },
		"IPProtection":     func() []policy.Policy { return []policy.Policy{policy.NewIPProtectionPolicy()} },
		"LitigationHold":   func() []policy.Policy { return []policy.Policy{policy.NewLitigationHoldPolicy()} },
		"VendorApproval":   func() []policy.Policy { return []policy.Policy{policy.NewVendorApprovalPolicy()} },
		"Redaction":        func() []policy.Policy { return []policy.Policy{policy.NewRedactionPolicy()} },
		"RateLimit":        func() []policy.Policy { return []policy.Policy{policy.NewRateLimitPolicy(100)} },
		"ConflictOfInterest": func() []policy.Policy {
			p, err := policy.NewConflictOfInterestPolicy(celEvaluator)
			if err != nil {
				logger.Error("failed to compile ConflictOfInterestPolicy", "error", err)
				return nil
			}
			return []policy.Policy{p}
		},
	}

	if len(declared) == 0 {
		for _, ctor := range known {
			engine.Register(ctor()...)
		}
		return
	}

	for _, p := range declared {
		ctor, ok := known[p.Name]
		if !ok {
			logger.Warn("unknown policy name in config, skipping", "name", p.Name)
			continue
		}
		engine.Register(ctor()...)
	}
}

// --- init commands ---

func runInit() error {
	configPath := "sentinel.yaml"
	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("  %s already exists (skipping)\n", configPath)
	} else {
		if err := config.GenerateDefault(configPath); err != nil {
			return err
		}
		fmt.Printf("  generated %s\n", configPath)
	}

	dirs := []string{"policies", "playbooks"}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0755); err != nil {
			return fmt.Errorf("failed to create %s/: %w", d, err)
		}
		fmt.Printf("  created %s/\n", d)
	}

	fmt.Println()
	fmt.Println("  Next steps:")
	fmt.Println("    sentinel init policy <policy-name>   # document a Compliance policy")
	fmt.Println("    sentinel init playbook paused         # create a TIRS status playbook")
	fmt.Println("    sentinel serve                        # start the server")
	return nil
}

func runInitPolicy(policyName string) error {
	dir := filepath.Join("policies", policyName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	mdPath := filepath.Join(dir, "POLICY.md")
	if err := os.WriteFile(mdPath, []byte(mdloader.PolicyMDTemplate(policyName)), 0644); err != nil {
		return err
	}
	fmt.Printf("  created %s\n", mdPath)
	fmt.Printf("\n  Policy %q scaffolded. Edit POLICY.md, then add it to sentinel.yaml's policies list.\n", policyName)
	return nil
}

func runInitPlaybook(status string) error {
	if err := os.MkdirAll("playbooks", 0755); err != nil {
		return err
	}

	filename := strings.ToUpper(status) + ".md"
	path := filepath.Join("playbooks", filename)
	content := mdloader.PlaybookTemplate(status)

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return err
	}
	fmt.Printf("  created %s\n", path)
	return nil
}

// --- policy validate ---

func runPolicyValidate(configFile string) error {
	path := configFile
	if path == "" {
		path = findConfigFile()
	}
	if path == "" {
		return fmt.Errorf("no config file found, run 'sentinel init' to create one")
	}

	loader := config.NewLoader()
	if err := loader.Load(path); err != nil {
		fmt.Printf("invalid config: %s\n", err)
		return err
	}

	cfg := loader.Get()
	fmt.Printf("config file valid: %s\n", path)
	fmt.Printf("  policies: %d\n", len(cfg.Policies))
	fmt.Printf("  storage:  %s\n", cfg.Storage.Driver)
	fmt.Printf("  port:     %d\n", cfg.Server.Port)

	var policyRefs []mdloader.PolicyRef
	for _, p := range cfg.Policies {
		policyRefs = append(policyRefs, mdloader.PolicyRef{Name: p.Name, Context: p.Context})
	}

	var statusRefs []mdloader.StatusPlaybookRef
	for _, s := range []string{"throttled", "paused", "killed", "resurrected"} {
		statusRefs = append(statusRefs, mdloader.StatusPlaybookRef{Status: s, HasPlaybook: true})
	}

	result := mdloader.ValidateAll(cfg.PoliciesDir, cfg.PlaybooksDir, policyRefs, statusRefs)
	fmt.Print(result.Summary())
	return nil
}

// --- doctor ---

func runDoctor(port int, configFile string) error {
	fmt.Println("Sentinel Doctor")
	fmt.Println("---------------")

	path := configFile
	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		fmt.Printf("config file found: %s\n", path)
	} else {
		fmt.Println("no config file found (will use defaults)")
	}

	for _, dir := range []string{"policies", "playbooks"} {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			fmt.Printf("directory exists: %s/\n", dir)
		} else {
			fmt.Printf("missing directory: %s/ (run 'sentinel init')\n", dir)
		}
	}

	p := resolvePort(port)
	resp, err := http.Get(fmt.Sprintf("http://localhost:%d/healthz", p))
	if err != nil {
		fmt.Printf("sentinel not running on port %d\n", p)
	} else {
		_ = resp.Body.Close()
		fmt.Printf("HTTP server running on port %d\n", p)
	}

	if path != "" {
		loader := config.NewLoader()
		if err := loader.Load(path); err == nil {
			cfg := loader.Get()
			var policyRefs []mdloader.PolicyRef
			for _, p := range cfg.Policies {
				policyRefs = append(policyRefs, mdloader.PolicyRef{Name: p.Name, Context: p.Context})
			}
			result := mdloader.ValidateAll(cfg.PoliciesDir, cfg.PlaybooksDir, policyRefs, nil)
			fmt.Print(result.Summary())
		}
	}

	return nil
}

// --- status / trace / agent commands ---

func runStatus(port int) error {
	p := resolvePort(port)
	resp, err := http.Get(fmt.Sprintf("http://localhost:%d/v1/system/status", p))
	if err != nil {
		fmt.Printf("sentinel is not running on port %d\n", p)
		return nil
	}
	defer func() { _ = resp.Body.Close() }()

	var status gateway.SystemStatus
	if err := decodeJSON(resp, &status); err != nil {
		return err
	}

	fmt.Println("Sentinel Status")
	fmt.Println("---------------")
	fmt.Printf("  requests processed: %d\n", status.RequestCount)
	fmt.Printf("  workflows:          %s\n", strings.Join(status.Workflows, ", "))
	fmt.Printf("  agents:             %d\n", len(status.Agents))
	for id, a := range status.Agents {
		fmt.Printf("    %-20s %-12s risk=%.2f blocked=%d/%d\n", id, a.TIRSStatus, a.RiskScore, a.BlockedCount, a.ActionCount)
	}
	return nil
}

func runAgentList(port int) error {
	p := resolvePort(port)
	resp, err := http.Get(fmt.Sprintf("http://localhost:%d/v1/agents", p))
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var result struct {
		Agents map[string]agent.Status `json:"agents"`
	}
	if err := decodeJSON(resp, &result); err != nil {
		return err
	}
	if len(result.Agents) == 0 {
		fmt.Println("no agents registered")
		return nil
	}

	fmt.Printf("%-20s %-10s %-12s %-8s %s\n", "ID", "TYPE", "STATUS", "RISK", "CAPABILITIES")
	fmt.Println(strings.Repeat("-", 80))
	for id, a := range result.Agents {
		fmt.Printf("%-20s %-10s %-12s %-8.2f %s\n", id, a.Type, a.TIRSStatus, a.RiskScore, strings.Join(a.Capabilities, ","))
	}
	return nil
}

func runAgentStatus(port int, agentID string) error {
	p := resolvePort(port)
	resp, err := http.Get(fmt.Sprintf("http://localhost:%d/v1/agents/%s/status", p, agentID))
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var a agent.Status
	if err := decodeJSON(resp, &a); err != nil {
		return err
	}

	fmt.Printf("Agent:        %s\n", a.AgentID)
	fmt.Printf("Type:         %s\n", a.Type)
	fmt.Printf("TIRS status:  %s\n", a.TIRSStatus)
	fmt.Printf("Risk score:   %.4f\n", a.RiskScore)
	fmt.Printf("Actions:      %d (blocked %d, rate %.2f%%)\n", a.ActionCount, a.BlockedCount, a.BlockRate*100)
	fmt.Printf("Capabilities: %s\n", strings.Join(a.Capabilities, ", "))
	return nil
}

func runAgentAction(port int, agentID, action string) error {
	p := resolvePort(port)
	resp, err := http.Post(fmt.Sprintf("http://localhost:%d/v1/agents/%s/%s", p, agentID, action), "application/json", nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		var errResult map[string]string
		_ = decodeJSON(resp, &errResult)
		return fmt.Errorf("%s failed: %s", action, errResult["error"])
	}
	fmt.Printf("agent %s: %s\n", agentID, action)
	return nil
}

func runTraceList(port int, agentFilter string) error {
	p := resolvePort(port)
	url := fmt.Sprintf("http://localhost:%d/v1/traces?limit=20", p)
	if agentFilter != "" {
		url += "&agent_id=" + agentFilter
	}

	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var result struct {
		Traces []trace.Trace `json:"traces"`
		Total  int           `json:"total"`
	}
	if err := decodeJSON(resp, &result); err != nil {
		return err
	}
	if len(result.Traces) == 0 {
		fmt.Println("no traces found")
		return nil
	}

	fmt.Printf("%-26s %-15s %-10s %-8s %-6s %s\n", "TIMESTAMP", "TYPE", "STATUS", "RISK", "LEVEL", "AGENT")
	fmt.Println(strings.Repeat("-", 80))
	for _, t := range result.Traces {
		fmt.Printf("%-26s %-15s %-10s %-8.2f %-6s %s\n", t.Timestamp.Format(time.RFC3339), t.ActionType, t.Status, t.RiskScore, t.RiskLevel, t.AgentID)
	}
	return nil
}

func runTraceShow(port int, traceID string) error {
	p := resolvePort(port)
	resp, err := http.Get(fmt.Sprintf("http://localhost:%d/v1/traces/%s", p, traceID))
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var t trace.Trace
	if err := decodeJSON(resp, &t); err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(t)
}

func runTraceSearch(port int, query string) error {
	p := resolvePort(port)
	resp, err := http.Get(fmt.Sprintf("http://localhost:%d/v1/traces/search?q=%s&limit=20", p, query))
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var result struct {
		Traces []trace.Trace `json:"traces"`
	}
	_ = decodeJSON(resp, &result)
	if len(result.Traces) == 0 {
		fmt.Println("no results found")
		return nil
	}

	fmt.Printf("found %d matching traces:\n\n", len(result.Traces))
	for _, t := range result.Traces {
		fmt.Printf("  [%s] %s %s (agent: %s)\n", t.Timestamp.Format(time.RFC3339), t.ActionType, t.ActionName, t.AgentID)
	}
	return nil
}

// --- shared helpers ---

func findConfigFile() string {
	candidates := []string{
		"sentinel.yaml",
		"sentinel.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "sentinel", "config.yaml"),
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

func resolvePort(port int) int {
	if port == 0 {
		return 6777
	}
	return port
}

func decodeJSON(resp *http.Response, v interface{}) error {
	return json.NewDecoder(resp.Body).Decode(v)
}
